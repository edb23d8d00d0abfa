package convert

import (
	"context"
	"maps"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/locate"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/schema"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/connection"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/dast"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

// cursor locates a block owner inside a record: the record and the
// positions taken in every container on the way down.
type cursor struct {
	recordID string
	trail    []int
}

func (c cursor) at(i int) cursor {
	trail := make([]int, len(c.trail), len(c.trail)+1)
	copy(trail, c.trail)
	return cursor{recordID: c.recordID, trail: append(trail, i)}
}

// instanceID is the id the locator gave a block: its own id, or the
// synthetic id derived from its position.
func (c cursor) instanceID(b models.Block, locale string) string {
	if b.ID != "" {
		return b.ID
	}
	return locate.SyntheticID(c.recordID, locale, c.trail)
}

// leafFunc rewrites the owner of the converted field. It returns the
// attributes to write on that owner.
type leafFunc func(c cursor, attrs map[string]any, locale string) (map[string]any, bool)

// migrate rewrites every record reachable through the plan's paths. The
// top container of a nested path is written back whole.
func (r *fieldRun) migrate(ctx context.Context, leaf leafFunc) error {
	updated := map[string]bool{}
	for _, path := range r.plan.Paths {
		r.engine.logger.Debug("migrating records", "path", path.String())
		q := connection.ItemQuery{TypeID: path.RootTypeID, Nested: true}
		err := r.engine.conn.EachItem(ctx, q, func(item models.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			patch, changed := r.rewriteOwner(cursor{recordID: item.ID}, item.Attributes, path.Steps, "", leaf)
			if !changed {
				return nil
			}
			if _, err := r.engine.conn.UpdateItem(ctx, item.ID, patch); err != nil {
				r.engine.logger.Error("failed to update record",
					"record", item.ID, "field", r.field.APIKey, "error", err)
				r.result.Failed = append(r.result.Failed, RecordFailure{RecordID: item.ID, Err: err})
				return nil
			}
			updated[item.ID] = true
			return nil
		})
		if err != nil {
			return err
		}
	}
	r.result.UpdatedRecords = len(updated)
	return nil
}

func (r *fieldRun) rewriteOwner(c cursor, attrs map[string]any, steps []schema.PathStep, locale string, leaf leafFunc) (map[string]any, bool) {
	if len(steps) == 1 {
		return leaf(c, attrs, locale)
	}
	step := steps[0]
	value, changed := r.perLocale(step.Localized, attrs[step.FieldKey], locale, func(v any, loc string) (any, bool) {
		return rewriteContainer(c, step, v, func(c cursor, blockAttrs map[string]any) (map[string]any, bool) {
			return r.rewriteOwner(c, blockAttrs, steps[1:], loc, leaf)
		})
	})
	if !changed {
		return nil, false
	}
	return map[string]any{step.FieldKey: value}, true
}

// perLocale applies fn to a field value, once per locale when the field is
// localized. A locale chosen further up restricts the rewrite to it. The
// value of a localized field always carries every project locale.
func (r *fieldRun) perLocale(localized bool, raw any, locale string, fn func(v any, locale string) (any, bool)) (any, bool) {
	if !localized {
		return fn(raw, locale)
	}
	values, _ := raw.(map[string]any)
	out := r.engine.opts.Locales.Complete(values, nil)
	changed := false
	for _, loc := range r.engine.opts.Locales {
		if locale != "" && loc != locale {
			continue
		}
		if v, ok := fn(values[loc], loc); ok {
			out[loc] = v
			changed = true
		}
	}
	return out, changed
}

// rewriteContainer applies inner to the blocks of the step's type held by
// a container value.
func rewriteContainer(c cursor, step schema.PathStep, v any, inner func(cursor, map[string]any) (map[string]any, bool)) (any, bool) {
	apply := func(c cursor, b models.Block) (models.Block, bool) {
		if b.ItemType != step.BlockTypeID {
			return b, false
		}
		patch, changed := inner(c, b.Attributes)
		if !changed {
			return b, false
		}
		b.Attributes = merge(b.Attributes, patch)
		return b, true
	}

	switch step.FieldType {
	case models.FieldTypeRichText:
		list, _ := v.([]any)
		out := make([]any, len(list))
		changed := false
		pos := 0
		for i, el := range list {
			out[i] = el
			b, ok := models.BlockFromValue(el)
			if !ok {
				continue
			}
			if next, ok := apply(c.at(pos), b); ok {
				out[i] = next.Value()
				changed = true
			}
			pos++
		}
		return out, changed
	case models.FieldTypeSingleBlock:
		b, ok := models.BlockFromValue(v)
		if !ok {
			return v, false
		}
		next, ok := apply(c.at(0), b)
		if !ok {
			return v, false
		}
		return next.Value(), true
	case models.FieldTypeStructuredText:
		value, err := dast.DecodeValue(v)
		if err != nil || value == nil {
			return v, false
		}
		i := -1
		next, changed := value.MapBlocks(func(b models.Block) (models.Block, bool) {
			i++
			return apply(c.at(i), b)
		})
		if !changed {
			return v, false
		}
		return next.Encode(), true
	default:
		return v, false
	}
}

func merge(attrs, patch map[string]any) map[string]any {
	out := maps.Clone(attrs)
	if out == nil {
		out = map[string]any{}
	}
	maps.Copy(out, patch)
	return out
}
