package blocktolinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/locate"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/schema"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

// analysis is what discovery found, kept for the conversion that follows.
type analysis struct {
	result  *AnalysisResult
	source  models.ItemType
	paths   []schema.NestedPath
	locales models.Locales
	// instances holds the blocks found along paths[i].
	instances [][]locate.BlockInstance
}

// Analyze reports the fields and records a conversion of the block type
// would touch. It changes nothing.
func (c *Converter) Analyze(ctx context.Context, sourceTypeID string) (*AnalysisResult, error) {
	a, err := c.analyze(ctx, sourceTypeID)
	if err != nil {
		return nil, err
	}
	return a.result, nil
}

func (c *Converter) analyze(ctx context.Context, sourceTypeID string) (*analysis, error) {
	cache := schema.NewCache(c.conn)
	source, err := cache.ItemType(ctx, sourceTypeID)
	if err != nil {
		if errors.Is(err, constants.ErrTypeNotFound) {
			return nil, &DiscoveryError{SourceTypeID: sourceTypeID, Err: err}
		}
		return nil, err
	}
	if !source.ModularBlock {
		return nil, &DiscoveryError{
			SourceTypeID: sourceTypeID,
			Err:          fmt.Errorf("%w: %s", constants.ErrNotEmbeddable, source.APIKey),
		}
	}
	fields, err := cache.Fields(ctx, sourceTypeID)
	if err != nil {
		return nil, err
	}
	paths, err := schema.NewResolver(cache, c.logger).Resolve(ctx, sourceTypeID)
	if err != nil {
		return nil, &DiscoveryError{SourceTypeID: sourceTypeID, Err: err}
	}
	for _, p := range paths {
		if ft := p.Last().FieldType; !ft.IsBlockContainer() {
			return nil, &DiscoveryError{
				SourceTypeID: sourceTypeID,
				Err:          fmt.Errorf("%w: %s is %s", constants.ErrUnexpectedFieldType, p.String(), ft),
			}
		}
	}
	locales, err := c.conn.ListLocales(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list locales: %w", err)
	}

	a := &analysis{
		source:    source,
		paths:     paths,
		locales:   locales,
		instances: make([][]locate.BlockInstance, len(paths)),
	}
	locator := locate.NewLocator(c.conn, locales, c.logger)
	affected := map[string]bool{}
	count := 0
	for i, p := range paths {
		instances, err := locator.Locate(ctx, p, sourceTypeID)
		if err != nil {
			return nil, fmt.Errorf("failed to read records along %s: %w", p.String(), err)
		}
		a.instances[i] = instances
		count += len(instances)
		for _, inst := range instances {
			affected[inst.RecordID] = true
		}
	}

	a.result = &AnalysisResult{
		SourceType:           source,
		Fields:               fields,
		ReferencingFields:    referencingFields(paths),
		TotalAffectedRecords: len(affected),
		InstanceCount:        count,
	}
	c.logger.Info("analyzed block type",
		"source", source.APIKey,
		"paths", len(paths),
		"instances", count,
		"records", len(affected))
	return a, nil
}

func referencingFields(paths []schema.NestedPath) []ReferencingField {
	refs := schema.FieldRefs(paths)
	out := make([]ReferencingField, 0, len(refs))
	for _, ref := range refs {
		rf := ReferencingField{
			OwnerTypeID: ref.OwnerTypeID,
			FieldID:     ref.FieldID,
			FieldKey:    ref.FieldKey,
			FieldType:   ref.FieldType,
			Localized:   ref.Localized,
			Nested:      ref.Nested,
		}
		for _, p := range schema.PathsFor(paths, ref.FieldID) {
			rf.Paths = append(rf.Paths, p.String())
		}
		out = append(out, rf)
	}
	return out
}
