package models

// Block is an embedded record decoded from a nested read. Writing a Block
// without an ID creates a new block; with an ID it updates the existing one.
type Block struct {
	ID         string
	ItemType   string
	Attributes map[string]any
}

// BlockFromValue decodes a block object ({"id","item_type","attributes"}).
// Plain ids and other values report false.
func BlockFromValue(v any) (Block, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Block{}, false
	}
	itemType, ok := m["item_type"].(string)
	if !ok || itemType == "" {
		return Block{}, false
	}
	b := Block{ItemType: itemType}
	b.ID, _ = m["id"].(string)
	b.Attributes, _ = m["attributes"].(map[string]any)
	if b.Attributes == nil {
		b.Attributes = map[string]any{}
	}
	return b, true
}

// Value encodes b back to its wire object.
func (b Block) Value() map[string]any {
	out := map[string]any{
		"item_type":  b.ItemType,
		"attributes": b.Attributes,
	}
	if b.ID != "" {
		out["id"] = b.ID
	}
	return out
}

// RefID returns the id carried by a reference value: a plain string, or the
// "id" of an object such as {id} or an expanded record.
func RefID(v any) string {
	switch ref := v.(type) {
	case string:
		return ref
	case map[string]any:
		id, _ := ref["id"].(string)
		return id
	default:
		return ""
	}
}
