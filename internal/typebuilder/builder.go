// Package typebuilder derives a record type from a block type: same fields,
// validators rewritten to the new field ids, unique api key.
package typebuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/connection"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/logger"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

type Options struct {
	// Localized creates every field localized. Default values of fields
	// that were not localized are skipped.
	Localized bool
	// NameSuffix is appended to the name and api key of the new type.
	NameSuffix string
}

type Result struct {
	ItemType models.ItemType
	Fields   []models.Field
	// FieldIDs maps source field ids to the ids of their copies.
	FieldIDs map[string]string
	// PreLocalized lists the api keys of source fields that already were
	// localized.
	PreLocalized map[string]bool
	Warnings     []string
}

type Builder struct {
	conn   connection.Connection
	logger logger.Logger
}

func New(conn connection.Connection, log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop{}
	}
	return &Builder{conn: conn, logger: log}
}

// Build creates the record type replacing source and copies its fields.
func (b *Builder) Build(ctx context.Context, source models.ItemType, opts Options) (*Result, error) {
	existing, err := b.conn.ListItemTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list item types: %w", err)
	}
	taken := map[string]bool{}
	for _, it := range existing {
		taken[strings.ToLower(it.APIKey)] = true
	}
	key, err := GenerateKey(source.APIKey+opts.NameSuffix, func(k string) bool { return taken[k] })
	if err != nil {
		return nil, err
	}

	sourceFields, err := b.conn.ListFields(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields of %s: %w", source.APIKey, err)
	}

	created, err := b.conn.CreateItemType(ctx, models.ItemType{
		Name:   source.Name + opts.NameSuffix,
		APIKey: key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create item type %s: %w", key, err)
	}
	b.logger.Info("created item type", "api_key", created.APIKey, "source", source.APIKey)

	res := &Result{
		ItemType:     *created,
		FieldIDs:     map[string]string{},
		PreLocalized: map[string]bool{},
	}

	order, err := creationOrder(sourceFields)
	if err != nil {
		res.warn(b.logger, fmt.Sprintf("field references could not be ordered, keeping source order: %v", err))
		order = make([]int, len(sourceFields))
		for i := range order {
			order[i] = i
		}
	}

	for _, i := range order {
		sf := sourceFields[i]
		copied, err := b.conn.CreateField(ctx, created.ID, res.copyField(b.logger, sf, opts))
		if err != nil {
			return res, fmt.Errorf("failed to copy field %s: %w", sf.APIKey, err)
		}
		res.FieldIDs[sf.ID] = copied.ID
		res.Fields = append(res.Fields, *copied)
		if sf.Localized {
			res.PreLocalized[sf.APIKey] = true
		}
	}

	if titleID := res.titleField(source, sourceFields); titleID != "" {
		next := res.ItemType
		next.TitleField = titleID
		updated, err := b.conn.UpdateItemType(ctx, next)
		if err != nil {
			return res, fmt.Errorf("failed to set title field: %w", err)
		}
		res.ItemType = *updated
	}
	return res, nil
}

// creationOrder puts fields referenced by another field's validators
// before the referencing field.
func creationOrder(fields []models.Field) ([]int, error) {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		index[f.ID] = i
	}
	return topoSort(len(fields), func(i int) []int {
		var deps []int
		if ref := fields[i].Validators.TitleFieldID(); ref != "" {
			if j, ok := index[ref]; ok && j != i {
				deps = append(deps, j)
			}
		}
		return deps
	})
}

func (res *Result) copyField(log logger.Logger, sf models.Field, opts Options) models.Field {
	f := models.Field{
		Label:        sf.Label,
		APIKey:       sf.APIKey,
		FieldType:    sf.FieldType,
		Localized:    sf.Localized || opts.Localized,
		Validators:   sf.Validators.Clone(),
		Position:     sf.Position,
		Appearance:   sanitizeAppearance(sf.Appearance),
		Hint:         sf.Hint,
		DefaultValue: sf.DefaultValue,
	}

	if f.Localized && !sf.Localized && sf.DefaultValue != nil {
		f.DefaultValue = nil
		res.warn(log, fmt.Sprintf("default value of %s skipped: the field is now localized", sf.APIKey))
	}

	if ref := sf.Validators.TitleFieldID(); ref != "" {
		if newID, ok := res.FieldIDs[ref]; ok {
			params := map[string]any{}
			if old, ok := sf.Validators[models.ValidatorSlugTitleField].(map[string]any); ok {
				for k, v := range old {
					params[k] = v
				}
			}
			params["title_field_id"] = newID
			f.Validators[models.ValidatorSlugTitleField] = params
		} else {
			f.Validators = f.Validators.Without(models.ValidatorSlugTitleField)
			res.warn(log, fmt.Sprintf("validator %s of %s dropped: it references unknown field %s", models.ValidatorSlugTitleField, sf.APIKey, ref))
		}
	}
	return f
}

func sanitizeAppearance(a *models.Appearance) *models.Appearance {
	if a == nil {
		return nil
	}
	out := &models.Appearance{Editor: a.Editor}
	if a.Parameters != nil {
		out.Parameters = make(map[string]any, len(a.Parameters))
		for k, v := range a.Parameters {
			out.Parameters[k] = v
		}
	}
	return out
}

// titleField picks the copy of the source title field, else the first
// copied string field.
func (res *Result) titleField(source models.ItemType, sourceFields []models.Field) string {
	if source.TitleField != "" {
		if id, ok := res.FieldIDs[source.TitleField]; ok {
			return id
		}
	}
	for _, sf := range sourceFields {
		if sf.FieldType == models.FieldTypeString {
			return res.FieldIDs[sf.ID]
		}
	}
	return ""
}

func (res *Result) warn(log logger.Logger, msg string) {
	log.Warn(msg, "item_type", res.ItemType.APIKey)
	res.Warnings = append(res.Warnings, msg)
}
