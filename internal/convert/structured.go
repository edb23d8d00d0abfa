package convert

import (
	"context"
	"slices"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/dast"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

// convertStructuredText rewrites block nodes of the target type into
// references. The field keeps its type: links are allowed first, the
// documents are rewritten, then the target stops being an allowed block.
func (r *fieldRun) convertStructuredText(ctx context.Context) error {
	e := r.engine
	f := r.field
	r.result.Action = ActionStructuredText
	r.result.ReferenceFieldID = f.ID

	links := f.Validators.ItemTypes(models.ValidatorStructuredTextLinks)
	if !slices.Contains(links, r.plan.DestinationTypeID) {
		updated, err := e.setAllowed(ctx, f, models.ValidatorStructuredTextLinks, withID(links, r.plan.DestinationTypeID))
		if err != nil {
			return err
		}
		f = updated
	}

	if err := r.migrate(ctx, r.structuredLeaf()); err != nil {
		return err
	}

	if e.opts.Mode != dast.Replace || !r.canTouchOriginal() {
		return nil
	}
	blocks := f.Validators.ItemTypes(models.ValidatorStructuredTextBlocks)
	_, err := e.setAllowed(ctx, f, models.ValidatorStructuredTextBlocks, without(blocks, r.plan.TargetTypeID))
	return err
}

func (r *fieldRun) structuredLeaf() leafFunc {
	opts := dast.TransformOptions{
		Mode:         r.engine.opts.Mode,
		TargetTypeID: r.plan.TargetTypeID,
		Mapping:      r.engine.mapping,
	}
	key := r.field.APIKey
	return func(_ cursor, attrs map[string]any, locale string) (map[string]any, bool) {
		value, changed := r.perLocale(r.field.Localized, attrs[key], locale, func(v any, _ string) (any, bool) {
			doc, err := dast.DecodeValue(v)
			if err != nil {
				r.engine.logger.Warn("skipping unreadable structured text", "field", key, "error", err)
				return v, false
			}
			if doc == nil {
				return v, false
			}
			r.countUnmapped(doc)
			next, ok := dast.Transform(doc, opts)
			if !ok {
				return v, false
			}
			return next.Encode(), true
		})
		if !changed {
			return nil, false
		}
		return map[string]any{key: value}, true
	}
}

// countUnmapped records target blocks of a document that have no record.
func (r *fieldRun) countUnmapped(doc *dast.Value) {
	for _, b := range doc.EmbeddedBlocks() {
		if b.ItemType != r.plan.TargetTypeID {
			continue
		}
		if _, ok := r.engine.mapping.Lookup(b.ID); !ok {
			r.unmapped++
			r.engine.logger.Warn("no record for block, leaving it in place", "block", b.ID, "field", r.field.APIKey)
		}
	}
}
