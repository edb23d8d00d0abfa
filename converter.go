package blocktolinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/batch"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/convert"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/locate"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/mapping"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/schema"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/typebuilder"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/checkpoint"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/connection"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/dast"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/logger"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/progress"
)

// destinationEntry is the checkpoint entry remembering the record type a
// run created. Block ids never start with "@".
const destinationEntry = "@destination"

// Converter converts block types into record types. It holds no state
// between calls.
type Converter struct {
	conn        connection.Connection
	opts        Options
	logger      logger.Logger
	progress    progress.Func
	checkpoints checkpoint.Store
}

type Option func(*Converter)

func WithLogger(log logger.Logger) Option {
	return func(c *Converter) {
		if log != nil {
			c.logger = log
		}
	}
}

func WithProgress(f progress.Func) Option {
	return func(c *Converter) {
		c.progress = f
	}
}

// WithCheckpoints persists the block to record mapping in s.
func WithCheckpoints(s checkpoint.Store) Option {
	return func(c *Converter) {
		c.checkpoints = s
	}
}

func NewConverter(conn connection.Connection, opts Options, options ...Option) *Converter {
	c := &Converter{conn: conn, opts: opts.withDefaults(), logger: logger.Nop{}}
	for _, o := range options {
		o(c)
	}
	if !c.opts.Verbose {
		c.logger = quiet{c.logger}
	}
	return c
}

// Convert runs a full conversion of the block type. Failures are reported
// in the result, never as an error.
func (c *Converter) Convert(ctx context.Context, sourceTypeID string) *ConversionResult {
	res := &ConversionResult{}
	if err := c.convert(ctx, sourceTypeID, res); err != nil {
		c.logger.Error("conversion failed", "source", sourceTypeID, "error", err)
		res.Error = err.Error()
		return res
	}
	res.Success = true
	c.logger.Info("conversion finished",
		"destination", res.DestinationTypeKey,
		"records", res.MigratedRecordCount,
		"fields", res.ConvertedFieldCount,
		"failed", len(res.FailedRecords))
	return res
}

func (c *Converter) convert(ctx context.Context, sourceTypeID string, res *ConversionResult) error {
	total := 4
	if c.opts.DeleteSourceType {
		total++
	}
	report := steps{f: c.progress, total: total}

	report.start(1, "Analyzing block type", "")
	a, err := c.analyze(ctx, sourceTypeID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	report.start(2, "Creating record type", a.source.APIKey)
	entries, err := c.loadCheckpoint(ctx, sourceTypeID)
	if err != nil {
		return err
	}
	dest, err := c.destination(ctx, a, entries)
	if err != nil {
		return err
	}
	res.DestinationTypeID = dest.itemType.ID
	res.DestinationTypeKey = dest.itemType.APIKey
	res.Warnings = append(res.Warnings, dest.warnings...)
	m := mapping.FromEntries(entries)
	if err := c.saveCheckpoint(ctx, sourceTypeID, dest.itemType.ID, m); err != nil {
		return err
	}

	report.start(3, "Creating records", "")
	for i, p := range a.paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.mapPath(ctx, a, i, dest, m, report, res); err != nil {
			return err
		}
		if err := c.saveCheckpoint(ctx, sourceTypeID, dest.itemType.ID, m); err != nil {
			return err
		}
		c.logger.Debug("mapped path", "path", p.String(), "mapped", m.Len())
	}
	res.MigratedRecordCount = m.RecordCount()

	report.start(4, "Converting fields", "")
	engine := convert.New(c.conn, m, convert.Options{
		Mode:            c.opts.Mode,
		SkipDestructive: c.opts.SkipDestructive,
		Locales:         a.locales,
	}, c.logger)
	refs := schema.FieldRefs(a.paths)
	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.sub(4, "Converting fields", ref.FieldKey, i, len(refs))
		fr, err := engine.Convert(ctx, convert.FieldPlan{
			OwnerTypeID:       ref.OwnerTypeID,
			FieldID:           ref.FieldID,
			Paths:             schema.PathsFor(a.paths, ref.FieldID),
			TargetTypeID:      sourceTypeID,
			DestinationTypeID: dest.itemType.ID,
		})
		if fr != nil {
			res.Warnings = append(res.Warnings, fr.Warnings...)
			for _, f := range fr.Failed {
				res.FailedRecords = append(res.FailedRecords, &RecordError{
					Op:       OpUpdate,
					RecordID: f.RecordID,
					FieldKey: fr.FieldKey,
					Err:      f.Err,
				})
			}
		}
		if err != nil {
			return fmt.Errorf("failed to convert field %s: %w", ref.FieldKey, err)
		}
		res.ConvertedFieldCount++
	}

	if c.opts.DeleteSourceType {
		report.start(5, "Deleting block type", a.source.APIKey)
		if err := c.deleteSource(ctx, a.source, res); err != nil {
			return err
		}
	}
	report.finish("Done")
	return nil
}

func (c *Converter) mapPath(ctx context.Context, a *analysis, i int, dest *destination, m *mapping.Mapping, report steps, res *ConversionResult) error {
	path := a.paths[i]
	mapper := mapping.NewMapper(c.conn, m, mapping.Options{
		DestinationTypeID: dest.itemType.ID,
		Localized:         dest.localized,
		Locales:           a.locales,
		PreLocalized:      dest.preLocalized,
		Batch:             batch.Options{Size: c.opts.BatchSize, Pause: c.opts.BatchPause},
		Progress: func(done, total int) {
			report.sub(3, "Creating records", path.String(), done, total)
		},
	}, c.logger)

	var (
		rep mapping.Report
		err error
	)
	if dest.localized && path.Localized {
		rep, err = mapper.MapGroups(ctx, locate.GroupInstances(a.instances[i], a.locales))
	} else {
		rep, err = mapper.MapInstances(ctx, a.instances[i])
	}
	for _, f := range rep.Failed {
		res.FailedRecords = append(res.FailedRecords, &RecordError{
			Op:          OpCreate,
			RecordID:    f.RecordID,
			InstanceIDs: f.InstanceIDs,
			Err:         f.Err,
		})
	}
	return err
}

type destination struct {
	itemType     models.ItemType
	localized    bool
	preLocalized map[string]bool
	warnings     []string
}

// destination creates the record type, or reuses the one a checkpointed
// run created.
func (c *Converter) destination(ctx context.Context, a *analysis, entries map[string]string) (*destination, error) {
	localized := c.opts.ForceLocalized
	for _, p := range a.paths {
		localized = localized || p.Localized
	}

	if id := entries[destinationEntry]; id != "" {
		delete(entries, destinationEntry)
		itemType, err := schema.NewCache(c.conn).ItemType(ctx, id)
		switch {
		case err == nil:
			c.logger.Info("resuming into existing record type", "api_key", itemType.APIKey, "mapped", len(entries))
			pre := map[string]bool{}
			for _, f := range a.result.Fields {
				if f.Localized {
					pre[f.APIKey] = true
				}
			}
			return &destination{itemType: itemType, localized: localized, preLocalized: pre}, nil
		case errors.Is(err, constants.ErrTypeNotFound):
			c.logger.Warn("checkpointed record type is gone, starting over", "id", id)
			clear(entries)
			if err := c.checkpoints.Clear(ctx, a.source.ID); err != nil {
				return nil, fmt.Errorf("failed to clear checkpoint: %w", err)
			}
		default:
			return nil, err
		}
	}

	built, err := typebuilder.New(c.conn, c.logger).Build(ctx, a.source, typebuilder.Options{
		Localized:  localized,
		NameSuffix: c.opts.NameSuffix,
	})
	if err != nil {
		return nil, err
	}
	return &destination{
		itemType:     built.ItemType,
		localized:    localized,
		preLocalized: built.PreLocalized,
		warnings:     built.Warnings,
	}, nil
}

func (c *Converter) loadCheckpoint(ctx context.Context, sourceTypeID string) (map[string]string, error) {
	if c.checkpoints == nil {
		return map[string]string{}, nil
	}
	entries, err := c.checkpoints.Load(ctx, sourceTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if entries == nil {
		entries = map[string]string{}
	}
	return entries, nil
}

func (c *Converter) saveCheckpoint(ctx context.Context, sourceTypeID, destinationID string, m *mapping.Mapping) error {
	if c.checkpoints == nil {
		return nil
	}
	entries := m.Entries()
	entries[destinationEntry] = destinationID
	if err := c.checkpoints.Save(ctx, sourceTypeID, entries); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// deleteSource destroys the block type unless a field still accepts it.
func (c *Converter) deleteSource(ctx context.Context, source models.ItemType, res *ConversionResult) error {
	if c.opts.Mode != dast.Replace || c.opts.SkipDestructive {
		res.Warnings = append(res.Warnings, fmt.Sprintf("kept block type %s: conversion was not destructive", source.APIKey))
		return nil
	}
	itemTypes, err := c.conn.ListItemTypes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list item types: %w", err)
	}
	for _, it := range itemTypes {
		if it.ID == source.ID {
			continue
		}
		fields, err := c.conn.ListFields(ctx, it.ID)
		if err != nil {
			return fmt.Errorf("failed to list fields of %s: %w", it.APIKey, err)
		}
		for _, f := range fields {
			if f.Validators.Allows(f.FieldType.BlocksValidator(), source.ID) {
				msg := fmt.Sprintf("kept block type %s: %s.%s still accepts it", source.APIKey, it.APIKey, f.APIKey)
				c.logger.Warn(msg)
				res.Warnings = append(res.Warnings, msg)
				return nil
			}
		}
	}
	if err := c.conn.DestroyItemType(ctx, source.ID); err != nil {
		return fmt.Errorf("failed to delete block type %s: %w", source.APIKey, err)
	}
	c.logger.Info("deleted block type", "api_key", source.APIKey)
	return nil
}

// steps reports pipeline progress.
type steps struct {
	f     progress.Func
	total int
}

func (s steps) start(step int, description, detail string) {
	s.f.Report(progress.Event{
		Step:        step,
		Total:       s.total,
		Description: description,
		Percentage:  progress.Percent(step-1, s.total),
		Detail:      detail,
	})
}

// sub reports done out of count within a step.
func (s steps) sub(step int, description, detail string, done, count int) {
	s.f.Report(progress.Event{
		Step:        step,
		Total:       s.total,
		Description: description,
		Percentage:  ((step-1)*100 + progress.Percent(done, count)) / s.total,
		Detail:      detail,
	})
}

func (s steps) finish(description string) {
	s.f.Report(progress.Event{Step: s.total, Total: s.total, Description: description, Percentage: 100})
}

// quiet drops debug messages.
type quiet struct {
	logger.Logger
}

func (quiet) Debug(string, ...any) {}
