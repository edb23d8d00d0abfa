package mapping

import (
	"slices"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/dast"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

// bookkeeping lists the members a read adds next to the attributes proper.
var bookkeeping = []string{"id", "item_type", "type", "relationships", "meta", "created_at", "updated_at"}

// Sanitize returns a copy of block attributes fit for creating a record:
// bookkeeping members are dropped and nested blocks lose their ids, so that
// they are created anew with the record. Structured-text values get their
// blocks inlined into the document.
func Sanitize(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if isBookkeeping(k) {
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func isBookkeeping(key string) bool {
	return slices.Contains(bookkeeping, key)
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, el := range val {
			out[i] = sanitizeValue(el)
		}
		return out
	case map[string]any:
		if b, ok := models.BlockFromValue(val); ok {
			return sanitizeBlock(b).Value()
		}
		if isStructuredText(val) {
			return sanitizeStructuredText(val)
		}
		out := make(map[string]any, len(val))
		for k, el := range val {
			out[k] = sanitizeValue(el)
		}
		return out
	default:
		return v
	}
}

func sanitizeBlock(b models.Block) models.Block {
	return models.Block{ItemType: b.ItemType, Attributes: Sanitize(b.Attributes)}
}

func isStructuredText(m map[string]any) bool {
	doc, ok := m["document"].(map[string]any)
	return ok && doc["type"] == string(dast.TypeRoot)
}

func sanitizeStructuredText(raw map[string]any) any {
	v, err := dast.DecodeValue(raw)
	if err != nil || v == nil {
		return raw
	}
	inlined, _ := v.MapBlocks(func(b models.Block) (models.Block, bool) {
		return sanitizeBlock(b), true
	})
	return inlined.Encode()
}
