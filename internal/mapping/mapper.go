package mapping

import (
	"context"
	"fmt"
	"sync"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/batch"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/locate"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/connection"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/logger"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

type Options struct {
	DestinationTypeID string
	// Localized is true when the destination fields are localized.
	Localized bool
	Locales   models.Locales
	// PreLocalized lists attribute keys whose values already are per-locale
	// hashes and must not be wrapped again.
	PreLocalized map[string]bool
	Batch        batch.Options
	// Progress, if set, is called after every record creation attempt.
	Progress func(done, total int)
}

// Failure is a record creation that failed. The instances stay unmapped.
type Failure struct {
	InstanceIDs []string
	RecordID    string
	Err         error
}

type Report struct {
	Created int
	// Skipped counts instance ids that were already mapped.
	Skipped int
	Failed  []Failure
}

type Mapper struct {
	conn    connection.Connection
	mapping *Mapping
	opts    Options
	logger  logger.Logger
}

func NewMapper(conn connection.Connection, mapping *Mapping, opts Options, log logger.Logger) *Mapper {
	if log == nil {
		log = logger.Nop{}
	}
	return &Mapper{conn: conn, mapping: mapping, opts: opts, logger: log}
}

// unit is one record to create and the instance ids it replaces.
type unit struct {
	ids        []string
	recordID   string
	attributes map[string]any
}

// MapInstances creates one record per unmapped instance of a path without
// localized steps.
func (m *Mapper) MapInstances(ctx context.Context, instances []locate.BlockInstance) (Report, error) {
	var report Report
	var units []unit
	queued := map[string]bool{}
	for _, inst := range instances {
		if _, ok := m.mapping.Lookup(inst.ID); ok || queued[inst.ID] {
			report.Skipped++
			continue
		}
		queued[inst.ID] = true
		units = append(units, unit{
			ids:        []string{inst.ID},
			recordID:   inst.RecordID,
			attributes: m.attributes(inst.Attributes),
		})
	}
	return m.create(ctx, units, report)
}

// MapGroups creates one record per group. A group with an already mapped
// member maps the remaining members to that member's record.
func (m *Mapper) MapGroups(ctx context.Context, groups []locate.Group) (Report, error) {
	var report Report
	var units []unit
	queued := map[string]bool{}
	for _, g := range groups {
		if existing, ok := m.mappedMember(g.InstanceIDs); ok {
			for _, id := range g.InstanceIDs {
				if !m.mapping.Set(id, existing) {
					report.Skipped++
				}
			}
			continue
		}
		if queued[g.Key()] {
			continue
		}
		queued[g.Key()] = true
		units = append(units, unit{
			ids:        g.InstanceIDs,
			recordID:   g.RecordID,
			attributes: m.groupAttributes(g),
		})
	}
	return m.create(ctx, units, report)
}

func (m *Mapper) mappedMember(ids []string) (string, bool) {
	for _, id := range ids {
		if recordID, ok := m.mapping.Lookup(id); ok {
			return recordID, true
		}
	}
	return "", false
}

func (m *Mapper) create(ctx context.Context, units []unit, report Report) (Report, error) {
	var mu sync.Mutex
	done := 0

	err := batch.Run(ctx, units, m.opts.Batch, func(ctx context.Context, _ int, u unit) error {
		created, err := m.conn.CreateItem(ctx, models.Item{
			ItemType:   m.opts.DestinationTypeID,
			Attributes: u.attributes,
		})

		mu.Lock()
		defer mu.Unlock()
		done++
		if m.opts.Progress != nil {
			m.opts.Progress(done, len(units))
		}
		if err != nil {
			m.logger.Error("failed to create record", "record", u.recordID, "instances", len(u.ids), "error", err)
			report.Failed = append(report.Failed, Failure{InstanceIDs: u.ids, RecordID: u.recordID, Err: err})
			return nil
		}
		for _, id := range u.ids {
			m.mapping.Set(id, created.ID)
		}
		report.Created++
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("record creation interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	m.logger.Info("created records", "created", report.Created, "skipped", report.Skipped, "failed", len(report.Failed))
	return report, nil
}

// attributes prepares the attributes of one block read without locale.
func (m *Mapper) attributes(attrs map[string]any) map[string]any {
	clean := Sanitize(attrs)
	if !m.opts.Localized {
		return clean
	}
	out := make(map[string]any, len(clean))
	for k, v := range clean {
		if m.opts.PreLocalized[k] {
			out[k] = m.completeLocales(v)
			continue
		}
		out[k] = m.opts.Locales.Complete(nil, func(string) any { return sanitizeValue(v) })
	}
	return out
}

// groupAttributes builds per-locale values from the copies of a group.
func (m *Mapper) groupAttributes(g locate.Group) map[string]any {
	if !m.opts.Localized {
		return Sanitize(g.Attributes[g.Fallback])
	}

	keys := map[string]bool{}
	for _, attrs := range g.Attributes {
		for k := range attrs {
			if !isBookkeeping(k) {
				keys[k] = true
			}
		}
	}

	out := make(map[string]any, len(keys))
	for k := range keys {
		if m.opts.PreLocalized[k] {
			out[k] = m.completeLocales(sanitizeValue(g.Attributes[g.Fallback][k]))
			continue
		}
		out[k] = m.opts.Locales.Complete(nil, func(locale string) any {
			return sanitizeValue(m.localeValue(g, locale, k))
		})
	}
	return out
}

// localeValue is the value of key in the copy of locale. A copy without the
// key, or holding nil, takes the fallback copy's value, else the first
// non-nil value in locale order.
func (m *Mapper) localeValue(g locate.Group, locale, key string) any {
	if v := g.Attributes[locale][key]; v != nil {
		return v
	}
	if v := g.Attributes[g.Fallback][key]; v != nil {
		return v
	}
	for _, other := range m.opts.Locales {
		if v := g.Attributes[other][key]; v != nil {
			return v
		}
	}
	return nil
}

// completeLocales gives a per-locale hash every project locale.
func (m *Mapper) completeLocales(v any) any {
	perLocale, _ := v.(map[string]any)
	return m.opts.Locales.Complete(perLocale, nil)
}
