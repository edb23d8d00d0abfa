// Package schema discovers where a block type is used: every path from a
// record type, through any depth of nested blocks, to a field that holds
// the block type directly.
package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/logger"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

type Resolver struct {
	cache  *Cache
	logger logger.Logger
}

func NewResolver(cache *Cache, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop{}
	}
	return &Resolver{cache: cache, logger: log}
}

// Resolve returns one NestedPath per route from a record type to a field
// allowing targetTypeID. A block type nested within itself, directly or
// through other blocks, is a dead end rather than an error.
func (r *Resolver) Resolve(ctx context.Context, targetTypeID string) ([]NestedPath, error) {
	target, err := r.cache.ItemType(ctx, targetTypeID)
	if err != nil {
		return nil, err
	}
	if !target.ModularBlock {
		return nil, fmt.Errorf("%w: %s", constants.ErrNotEmbeddable, target.APIKey)
	}

	routes, err := r.routesTo(ctx, targetTypeID, visited{targetTypeID: true})
	if err != nil {
		return nil, err
	}

	paths := make([]NestedPath, 0, len(routes))
	for _, rt := range routes {
		p := newPath(rt.root.ID, rt.root.APIKey, rt.steps)
		r.logger.Debug("found path", "target", target.APIKey, "path", p.String())
		paths = append(paths, p)
	}
	sort.SliceStable(paths, func(i, j int) bool {
		if paths[i].RootTypeKey != paths[j].RootTypeKey {
			return paths[i].RootTypeKey < paths[j].RootTypeKey
		}
		return stepKeys(paths[i]) < stepKeys(paths[j])
	})
	return paths, nil
}

// visited is never modified once passed down; each branch extends a copy.
type visited map[string]bool

func (v visited) with(id string) visited {
	out := make(visited, len(v)+1)
	for k := range v {
		out[k] = true
	}
	out[id] = true
	return out
}

type route struct {
	root  models.ItemType
	steps []PathStep
}

// routesTo returns the routes from record types to every field allowing
// blockTypeID.
func (r *Resolver) routesTo(ctx context.Context, blockTypeID string, seen visited) ([]route, error) {
	itemTypes, err := r.cache.ItemTypes(ctx)
	if err != nil {
		return nil, err
	}

	var routes []route
	for _, owner := range itemTypes {
		fields, err := r.cache.Fields(ctx, owner.ID)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			validator := f.FieldType.BlocksValidator()
			if validator == "" || !f.Validators.Allows(validator, blockTypeID) {
				continue
			}
			step := PathStep{
				OwnerTypeID: owner.ID,
				FieldID:     f.ID,
				FieldKey:    f.APIKey,
				FieldType:   f.FieldType,
				Localized:   f.Localized,
				BlockTypeID: blockTypeID,
			}

			if !owner.ModularBlock {
				routes = append(routes, route{root: owner, steps: []PathStep{step}})
				continue
			}
			if seen[owner.ID] {
				r.logger.Debug("cycle, skipping", "block", owner.APIKey, "field", f.APIKey)
				continue
			}
			upward, err := r.routesTo(ctx, owner.ID, seen.with(owner.ID))
			if err != nil {
				return nil, err
			}
			for _, up := range upward {
				steps := make([]PathStep, 0, len(up.steps)+1)
				steps = append(steps, up.steps...)
				steps = append(steps, step)
				routes = append(routes, route{root: up.root, steps: steps})
			}
		}
	}
	return routes, nil
}

func stepKeys(p NestedPath) string {
	keys := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		keys = append(keys, s.FieldKey)
	}
	return strings.Join(keys, ".")
}

// FieldRef identifies a field directly holding the target block type.
type FieldRef struct {
	OwnerTypeID string
	FieldID     string
	FieldKey    string
	FieldType   models.FieldType
	Localized   bool
	// Nested is true when the owner is a block type.
	Nested bool
}

// FieldRefs returns the distinct target fields of paths, in path order.
func FieldRefs(paths []NestedPath) []FieldRef {
	var out []FieldRef
	seen := map[string]bool{}
	for _, p := range paths {
		last := p.Last()
		if seen[last.FieldID] {
			continue
		}
		seen[last.FieldID] = true
		out = append(out, FieldRef{
			OwnerTypeID: last.OwnerTypeID,
			FieldID:     last.FieldID,
			FieldKey:    last.FieldKey,
			FieldType:   last.FieldType,
			Localized:   last.Localized,
			Nested:      p.Nested(),
		})
	}
	return out
}

// PathsFor returns the paths ending in the given field.
func PathsFor(paths []NestedPath, fieldID string) []NestedPath {
	var out []NestedPath
	for _, p := range paths {
		if p.Last().FieldID == fieldID {
			out = append(out, p)
		}
	}
	return out
}
