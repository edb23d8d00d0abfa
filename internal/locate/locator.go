// Package locate finds the concrete block instances a schema.NestedPath
// leads to and merges the per-locale copies of the same block slot.
package locate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofrs/uuid"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/schema"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/connection"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/dast"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/logger"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

// syntheticNamespace scopes the ids given to blocks read without one.
var syntheticNamespace = uuid.NewV5(uuid.NamespaceURL, "urn:blocktolinks:instance")

// BlockInstance is one occurrence of the target block type.
type BlockInstance struct {
	RecordID   string
	RootTypeID string
	// Locale is empty when no step of the path is localized.
	Locale string
	// ID is the block id, or a synthetic id stable across runs when the
	// block was read without one.
	ID         string
	Synthetic  bool
	Attributes map[string]any
	// Trail holds the position of the block in each container along the
	// path.
	Trail []int
}

// TrailKey renders Trail as "0.2.1".
func (b BlockInstance) TrailKey() string {
	return trailKey(b.Trail)
}

func trailKey(trail []int) string {
	parts := make([]string, len(trail))
	for i, n := range trail {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

type Locator struct {
	conn    connection.Connection
	locales models.Locales
	logger  logger.Logger
}

func NewLocator(conn connection.Connection, locales models.Locales, log logger.Logger) *Locator {
	if log == nil {
		log = logger.Nop{}
	}
	return &Locator{conn: conn, locales: locales, logger: log}
}

// Locate reads every record of the path's root type and returns the
// instances of targetTypeID found along the path, record by record.
func (l *Locator) Locate(ctx context.Context, path schema.NestedPath, targetTypeID string) ([]BlockInstance, error) {
	var out []BlockInstance
	q := connection.ItemQuery{TypeID: path.RootTypeID, Nested: true}
	err := l.conn.EachItem(ctx, q, func(item models.Item) error {
		out = append(out, l.Extract(item, path, targetTypeID)...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read records of %s: %w", path.RootTypeKey, err)
	}
	l.logger.Debug("located instances", "path", path.String(), "count", len(out))
	return out, nil
}

// Extract returns the instances held by one nested read of a record.
func (l *Locator) Extract(item models.Item, path schema.NestedPath, targetTypeID string) []BlockInstance {
	w := walker{locator: l, item: item, target: targetTypeID}
	w.walk(item.Attributes, path.Steps, "", nil)
	return w.out
}

type walker struct {
	locator *Locator
	item    models.Item
	target  string
	out     []BlockInstance
}

func (w *walker) walk(attrs map[string]any, steps []schema.PathStep, locale string, trail []int) {
	step := steps[0]
	for _, lv := range w.locator.values(step, attrs[step.FieldKey], locale) {
		for i, b := range w.locator.containerItems(step, lv.value) {
			if b.ItemType != step.BlockTypeID {
				continue
			}
			next := append(append([]int(nil), trail...), i)
			if len(steps) > 1 {
				w.walk(b.Attributes, steps[1:], lv.locale, next)
				continue
			}
			if b.ItemType != w.target {
				continue
			}
			w.out = append(w.out, w.instance(b, lv.locale, next))
		}
	}
}

func (w *walker) instance(b models.Block, locale string, trail []int) BlockInstance {
	inst := BlockInstance{
		RecordID:   w.item.ID,
		RootTypeID: w.item.ItemType,
		Locale:     locale,
		ID:         b.ID,
		Attributes: b.Attributes,
		Trail:      trail,
	}
	if inst.ID == "" {
		inst.ID = SyntheticID(w.item.ID, locale, trail)
		inst.Synthetic = true
	}
	return inst
}

// SyntheticID derives the id given to a block read without one.
func SyntheticID(recordID, locale string, trail []int) string {
	return uuid.NewV5(syntheticNamespace, recordID+"/"+locale+"/"+trailKey(trail)).String()
}

type localeValue struct {
	locale string
	value  any
}

// values splits a field value into its per-locale values. A localized step
// reached with a locale already chosen (by an outer localized step) reads
// that locale only.
func (l *Locator) values(step schema.PathStep, raw any, locale string) []localeValue {
	if !step.Localized {
		return []localeValue{{locale: locale, value: raw}}
	}
	perLocale, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	if locale != "" {
		return []localeValue{{locale: locale, value: perLocale[locale]}}
	}
	var out []localeValue
	for _, loc := range l.locales.Present(perLocale) {
		out = append(out, localeValue{locale: loc, value: perLocale[loc]})
	}
	return out
}

// containerItems returns the blocks of a container value, in order.
func (l *Locator) containerItems(step schema.PathStep, v any) []models.Block {
	return ContainerBlocks(step.FieldType, v, l.logger)
}

// ContainerBlocks returns the blocks a nested read of a container field
// holds. Entries that are not block objects are skipped.
func ContainerBlocks(fieldType models.FieldType, v any, log logger.Logger) []models.Block {
	switch fieldType {
	case models.FieldTypeRichText:
		list, _ := v.([]any)
		out := make([]models.Block, 0, len(list))
		for _, el := range list {
			if b, ok := models.BlockFromValue(el); ok {
				out = append(out, b)
			}
		}
		return out
	case models.FieldTypeSingleBlock:
		if b, ok := models.BlockFromValue(v); ok {
			return []models.Block{b}
		}
		return nil
	case models.FieldTypeStructuredText:
		value, err := dast.DecodeValue(v)
		if err != nil {
			if log != nil {
				log.Warn("skipping unreadable structured text", "error", err)
			}
			return nil
		}
		if value == nil {
			return nil
		}
		return value.EmbeddedBlocks()
	default:
		return nil
	}
}
