// Package convert moves the fields holding a migrated block type over to
// record references. Every schema change is ordered against the data
// migration so that the content API never sees data its validators reject.
package convert

import (
	"context"
	"fmt"
	"slices"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/mapping"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/schema"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/connection"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/dast"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/logger"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

type Options struct {
	// Mode applies to structured-text fields.
	Mode dast.Mode
	// SkipDestructive never deletes or renames fields.
	SkipDestructive bool
	Locales         models.Locales
}

// FieldPlan is one field holding the target block type, with every path
// leading to it.
type FieldPlan struct {
	OwnerTypeID       string
	FieldID           string
	Paths             []schema.NestedPath
	TargetTypeID      string
	DestinationTypeID string
}

// Action names what a conversion did to the schema.
type Action string

const (
	// ActionReplaced: the container only allowed the target and was
	// replaced by a reference field with the same api key.
	ActionReplaced Action = "replaced"
	// ActionPartial: a companion reference field now holds the references,
	// the container keeps its other block types.
	ActionPartial Action = "partial"
	// ActionAppended: references were appended to an existing companion.
	ActionAppended Action = "appended"
	// ActionMerged: the companion took over the key of a container left
	// without allowed block types.
	ActionMerged Action = "merged"
	// ActionStructuredText: structured-text nodes were rewritten.
	ActionStructuredText Action = "structured_text"
)

type RecordFailure struct {
	RecordID string
	Err      error
}

func (f RecordFailure) Error() string {
	return fmt.Sprintf("record %s: %v", f.RecordID, f.Err)
}

type FieldResult struct {
	FieldID  string
	FieldKey string
	// ReferenceFieldID is the field now holding the references.
	ReferenceFieldID string
	Action           Action
	UpdatedRecords   int
	Failed           []RecordFailure
	Warnings         []string
}

type Engine struct {
	conn    connection.Connection
	mapping *mapping.Mapping
	opts    Options
	logger  logger.Logger
}

func New(conn connection.Connection, m *mapping.Mapping, opts Options, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop{}
	}
	return &Engine{conn: conn, mapping: m, opts: opts, logger: log}
}

// Convert converts one field. Schema errors are returned; record update
// failures are collected in the result.
func (e *Engine) Convert(ctx context.Context, plan FieldPlan) (*FieldResult, error) {
	field, err := e.field(ctx, plan.OwnerTypeID, plan.FieldID)
	if err != nil {
		return nil, err
	}
	run := &fieldRun{
		engine: e,
		plan:   plan,
		field:  field,
		result: &FieldResult{FieldID: field.ID, FieldKey: field.APIKey},
	}

	switch field.FieldType {
	case models.FieldTypeRichText, models.FieldTypeSingleBlock:
		err = run.convertContainer(ctx)
	case models.FieldTypeStructuredText:
		err = run.convertStructuredText(ctx)
	default:
		err = fmt.Errorf("%w: %s is %s", constants.ErrUnexpectedFieldType, field.APIKey, field.FieldType)
	}
	if err != nil {
		return run.result, err
	}
	e.logger.Info("converted field",
		"field", field.APIKey,
		"action", string(run.result.Action),
		"updated", run.result.UpdatedRecords,
		"failed", len(run.result.Failed))
	return run.result, nil
}

func (e *Engine) fields(ctx context.Context, itemTypeID string) ([]models.Field, error) {
	fields, err := e.conn.ListFields(ctx, itemTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields of %s: %w", itemTypeID, err)
	}
	return fields, nil
}

func (e *Engine) field(ctx context.Context, itemTypeID, fieldID string) (models.Field, error) {
	fields, err := e.fields(ctx, itemTypeID)
	if err != nil {
		return models.Field{}, err
	}
	for _, f := range fields {
		if f.ID == fieldID {
			return f, nil
		}
	}
	return models.Field{}, fmt.Errorf("%w: %s", constants.ErrFieldNotFound, fieldID)
}

func (e *Engine) fieldByKey(ctx context.Context, itemTypeID, apiKey string) (models.Field, bool, error) {
	fields, err := e.fields(ctx, itemTypeID)
	if err != nil {
		return models.Field{}, false, err
	}
	for _, f := range fields {
		if f.APIKey == apiKey {
			return f, true, nil
		}
	}
	return models.Field{}, false, nil
}

// setAllowed writes the item types a field's validator lists.
func (e *Engine) setAllowed(ctx context.Context, f models.Field, validator string, ids []string) (models.Field, error) {
	f.Validators = f.Validators.WithItemTypes(validator, ids)
	updated, err := e.conn.UpdateField(ctx, f)
	if err != nil {
		return models.Field{}, fmt.Errorf("failed to update %s of %s: %w", validator, f.APIKey, err)
	}
	return *updated, nil
}

// fieldRun holds the state of one Convert call.
type fieldRun struct {
	engine *Engine
	plan   FieldPlan
	field  models.Field
	result *FieldResult
	// unmapped counts target blocks left in place for lack of a record.
	unmapped int
}

func (r *fieldRun) warn(msg string) {
	r.engine.logger.Warn(msg, "field", r.field.APIKey)
	r.result.Warnings = append(r.result.Warnings, msg)
}

// leftovers reports whether target blocks may remain in the field, in
// which case removing the target from its validators would be rejected.
func (r *fieldRun) leftovers() bool {
	return r.unmapped > 0 || len(r.result.Failed) > 0
}

func without(ids []string, id string) []string {
	return slices.DeleteFunc(slices.Clone(ids), func(s string) bool { return s == id })
}

func withID(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return slices.Clone(ids)
	}
	return append(slices.Clone(ids), id)
}
