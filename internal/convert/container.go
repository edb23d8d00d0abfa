package convert

import (
	"context"
	"fmt"
	"slices"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

// convertContainer converts a rich_text or single_block field.
func (r *fieldRun) convertContainer(ctx context.Context) error {
	e := r.engine
	orig := r.field
	target := r.plan.TargetTypeID
	remaining := without(orig.Validators.ItemTypes(orig.FieldType.BlocksValidator()), target)

	companion, exists, err := e.fieldByKey(ctx, r.plan.OwnerTypeID, orig.APIKey+constants.CompanionSuffix)
	if err != nil {
		return err
	}
	switch {
	case exists:
		return r.appendToCompanion(ctx, companion, remaining)
	case len(remaining) == 0:
		return r.replaceWithTemp(ctx)
	default:
		return r.splitToCompanion(ctx, remaining)
	}
}

// appendToCompanion adds references to a companion left by an earlier
// conversion of the same container.
func (r *fieldRun) appendToCompanion(ctx context.Context, companion models.Field, remaining []string) error {
	e := r.engine
	if companion.FieldType != r.field.FieldType.ReferenceType() {
		return fmt.Errorf("%w: companion %s is %s", constants.ErrUnexpectedFieldType, companion.APIKey, companion.FieldType)
	}
	companion, err := r.allowDestination(ctx, companion)
	if err != nil {
		return err
	}
	r.result.Action = ActionAppended
	r.result.ReferenceFieldID = companion.ID

	if err := r.migrate(ctx, r.containerLeaf(companion.APIKey, true)); err != nil {
		return err
	}
	if !r.canTouchOriginal() {
		return nil
	}
	orig, err := e.setAllowed(ctx, r.field, r.field.FieldType.BlocksValidator(), remaining)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return nil
	}
	if err := r.promote(ctx, orig, companion); err != nil {
		return err
	}
	r.result.Action = ActionMerged
	return nil
}

// replaceWithTemp converts a container that only allows the target type.
// The references are written to a temp field which then takes over the
// container's key.
func (r *fieldRun) replaceWithTemp(ctx context.Context) error {
	e := r.engine
	tempKey := r.field.APIKey + constants.TempSuffix
	temp, exists, err := e.fieldByKey(ctx, r.plan.OwnerTypeID, tempKey)
	if err != nil {
		return err
	}
	if exists {
		// A previous run stopped before the rename.
		e.logger.Info("reusing temp field", "field", tempKey)
		temp, err = r.allowDestination(ctx, temp)
	} else {
		temp, err = r.createReference(ctx, tempKey, r.field.Label)
	}
	if err != nil {
		return err
	}
	r.result.Action = ActionPartial
	r.result.ReferenceFieldID = temp.ID

	if err := r.migrate(ctx, r.containerLeaf(temp.APIKey, false)); err != nil {
		return err
	}
	if !r.canTouchOriginal() {
		return nil
	}
	if err := r.promote(ctx, r.field, temp); err != nil {
		return err
	}
	r.result.Action = ActionReplaced
	return nil
}

// splitToCompanion moves the target blocks of a container allowing other
// types too into a new companion reference field.
func (r *fieldRun) splitToCompanion(ctx context.Context, remaining []string) error {
	e := r.engine
	label := r.field.Label + " (links)"
	companion, err := r.createReference(ctx, r.field.APIKey+constants.CompanionSuffix, label)
	if err != nil {
		return err
	}
	r.result.Action = ActionPartial
	r.result.ReferenceFieldID = companion.ID

	if err := r.migrate(ctx, r.containerLeaf(companion.APIKey, true)); err != nil {
		return err
	}
	if !r.canTouchOriginal() {
		return nil
	}
	_, err = e.setAllowed(ctx, r.field, r.field.FieldType.BlocksValidator(), remaining)
	return err
}

// canTouchOriginal reports whether the original container may have its
// validators changed, deleted, or renamed.
func (r *fieldRun) canTouchOriginal() bool {
	if r.engine.opts.SkipDestructive {
		r.engine.logger.Info("leaving original field in place", "field", r.field.APIKey)
		return false
	}
	if r.leftovers() {
		r.warn(fmt.Sprintf("%s still holds unmigrated blocks, its validators are left unchanged", r.field.APIKey))
		return false
	}
	return true
}

func (r *fieldRun) createReference(ctx context.Context, apiKey, label string) (models.Field, error) {
	refType := r.field.FieldType.ReferenceType()
	f := models.Field{
		Label:      label,
		APIKey:     apiKey,
		FieldType:  refType,
		Localized:  r.field.Localized,
		Validators: models.Validators{}.WithItemTypes(refType.LinksValidator(), []string{r.plan.DestinationTypeID}),
		Position:   r.field.Position + 1,
		Hint:       r.field.Hint,
	}
	created, err := r.engine.conn.CreateField(ctx, r.plan.OwnerTypeID, f)
	if err != nil {
		return models.Field{}, fmt.Errorf("failed to create field %s: %w", apiKey, err)
	}
	r.engine.logger.Info("created reference field", "field", apiKey, "type", string(refType))
	return *created, nil
}

func (r *fieldRun) allowDestination(ctx context.Context, ref models.Field) (models.Field, error) {
	validator := ref.FieldType.LinksValidator()
	ids := ref.Validators.ItemTypes(validator)
	if slices.Contains(ids, r.plan.DestinationTypeID) {
		return ref, nil
	}
	return r.engine.setAllowed(ctx, ref, validator, withID(ids, r.plan.DestinationTypeID))
}

// promote deletes orig and gives ref its key, label, and position.
func (r *fieldRun) promote(ctx context.Context, orig, ref models.Field) error {
	e := r.engine
	if err := e.conn.DestroyField(ctx, orig.ID); err != nil {
		return fmt.Errorf("failed to delete field %s: %w", orig.APIKey, err)
	}
	ref.APIKey = orig.APIKey
	ref.Label = orig.Label
	ref.Position = orig.Position
	ref.Hint = orig.Hint
	renamed, err := e.conn.UpdateField(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to rename field to %s: %w", orig.APIKey, err)
	}
	e.logger.Info("replaced container field", "field", orig.APIKey, "id", renamed.ID)
	r.result.ReferenceFieldID = renamed.ID
	return nil
}

// containerLeaf moves target blocks of the converted container into the
// reference field refKey. With strip the container loses them in the same
// write.
func (r *fieldRun) containerLeaf(refKey string, strip bool) leafFunc {
	orig := r.field
	return func(c cursor, attrs map[string]any, locale string) (map[string]any, bool) {
		one := func(origV, refV any, loc string) (any, any, bool) {
			return r.convertContainerValue(c, origV, refV, loc)
		}
		var origOut, refOut any
		changed := false
		if !orig.Localized {
			origOut, refOut, changed = one(attrs[orig.APIKey], attrs[refKey], locale)
		} else {
			origValues, _ := attrs[orig.APIKey].(map[string]any)
			refValues, _ := attrs[refKey].(map[string]any)
			origMap := r.engine.opts.Locales.Complete(origValues, nil)
			refMap := r.engine.opts.Locales.Complete(refValues, nil)
			for _, loc := range r.engine.opts.Locales {
				if locale != "" && loc != locale {
					continue
				}
				o, ref, ok := one(origValues[loc], refValues[loc], loc)
				if !ok {
					continue
				}
				origMap[loc], refMap[loc] = o, ref
				changed = true
			}
			origOut, refOut = origMap, refMap
		}
		if !changed {
			return nil, false
		}
		patch := map[string]any{refKey: refOut}
		if strip {
			patch[orig.APIKey] = origOut
		}
		return patch, true
	}
}

// convertContainerValue converts one locale of a container value. It
// returns the container without its migrated blocks and the reference
// value with the new references appended.
func (r *fieldRun) convertContainerValue(c cursor, origV, refV any, locale string) (any, any, bool) {
	target := r.plan.TargetTypeID
	lookup := func(pos int, b models.Block) (string, bool) {
		if b.ItemType != target {
			return "", false
		}
		id := c.at(pos).instanceID(b, locale)
		recordID, ok := r.engine.mapping.Lookup(id)
		if !ok {
			r.unmapped++
			r.engine.logger.Warn("no record for block, leaving it in place", "block", id, "field", r.field.APIKey)
		}
		return recordID, ok
	}

	if r.field.FieldType == models.FieldTypeSingleBlock {
		b, ok := models.BlockFromValue(origV)
		if !ok {
			return origV, refV, false
		}
		recordID, ok := lookup(0, b)
		if !ok {
			return origV, refV, false
		}
		return nil, recordID, true
	}

	list, _ := origV.([]any)
	refs := refIDs(refV)
	kept := make([]any, 0, len(list))
	changed := false
	pos := 0
	for _, el := range list {
		b, ok := models.BlockFromValue(el)
		if !ok {
			kept = append(kept, el)
			continue
		}
		recordID, ok := lookup(pos, b)
		pos++
		if !ok {
			kept = append(kept, keepRef(el, b))
			continue
		}
		if !slices.Contains(refs, recordID) {
			refs = append(refs, recordID)
		}
		changed = true
	}
	if !changed {
		return origV, refV, false
	}
	out := make([]any, len(refs))
	for i, id := range refs {
		out[i] = id
	}
	return kept, out, true
}

// keepRef reduces a kept block to its id so that the write leaves it as is.
func keepRef(el any, b models.Block) any {
	if b.ID != "" {
		return b.ID
	}
	return el
}

func refIDs(v any) []string {
	list, _ := v.([]any)
	var out []string
	for _, el := range list {
		if id := models.RefID(el); id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
