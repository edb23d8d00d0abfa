package dast

import (
	"fmt"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

// Value is a structured-text field value: the document plus the companion
// lists of embedded blocks and linked records. The list entries are kept as
// read: ids, {id} objects or full records.
type Value struct {
	Document *Root
	Blocks   []any
	Links    []any
}

// DecodeValue decodes a structured-text field value. A nil value decodes
// to nil.
func DecodeValue(raw any) (*Value, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: value must be an object, got %T", constants.ErrInvalidDocument, raw)
	}
	if schema, ok := m["schema"].(string); ok && schema != constants.DastSchema {
		return nil, fmt.Errorf("%w: unsupported schema %q", constants.ErrInvalidDocument, schema)
	}
	doc, err := Decode(m["document"])
	if err != nil {
		return nil, err
	}
	root, ok := doc.(*Root)
	if !ok {
		return nil, fmt.Errorf("%w: document must be a root node", constants.ErrInvalidDocument)
	}
	v := &Value{Document: root}
	v.Blocks, _ = m["blocks"].([]any)
	v.Links, _ = m["links"].([]any)
	return v, nil
}

// Encode renders the value for a write. Both lists are reduced to {id}
// objects.
func (v *Value) Encode() map[string]any {
	return map[string]any{
		"schema":   constants.DastSchema,
		"document": Encode(v.Document),
		"blocks":   minimal(v.Blocks),
		"links":    minimal(v.Links),
	}
}

func minimal(list []any) []any {
	out := make([]any, 0, len(list))
	for _, el := range list {
		if id := models.RefID(el); id != "" {
			out = append(out, map[string]any{"id": id})
		}
	}
	return out
}

// blockIndex maps block ids to the full block objects of the blocks list.
func (v *Value) blockIndex() map[string]models.Block {
	index := map[string]models.Block{}
	for _, el := range v.Blocks {
		if b, ok := models.BlockFromValue(el); ok && b.ID != "" {
			index[b.ID] = b
		}
	}
	return index
}

// resolveBlock returns the block a block or inlineBlock node embeds, when
// it is known either inline or through the blocks list.
func resolveBlock(index map[string]models.Block, item string, record map[string]any) (models.Block, bool) {
	if record != nil {
		return models.BlockFromValue(record)
	}
	b, ok := index[item]
	return b, ok
}

// EmbeddedBlocks returns the blocks the document embeds, in document order.
// Only blocks whose content is known (inline or in the blocks list) are
// returned.
func (v *Value) EmbeddedBlocks() []models.Block {
	index := v.blockIndex()
	var out []models.Block
	Walk(v.Document, func(n Node) {
		var b models.Block
		var ok bool
		switch n := n.(type) {
		case *Block:
			b, ok = resolveBlock(index, n.Item, n.Record)
		case *InlineBlock:
			b, ok = resolveBlock(index, n.Item, n.Record)
		}
		if ok {
			out = append(out, b)
		}
	})
	return out
}

// LinkIDs returns the record ids referenced by inlineItem and itemLink
// nodes, without duplicates.
func (v *Value) LinkIDs() []string {
	seen := map[string]bool{}
	var out []string
	Walk(v.Document, func(n Node) {
		var id string
		switch n := n.(type) {
		case *InlineItem:
			id = n.Item
		case *ItemLink:
			id = n.Item
		}
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	})
	return out
}

// MapBlocks returns a copy of v in which every embedded block for which fn
// reports true is replaced by the block fn returned, written inline in the
// document. The blocks list drops the replaced blocks only when they lose
// their id. changed is false when fn never reported true.
func (v *Value) MapBlocks(fn func(models.Block) (models.Block, bool)) (*Value, bool) {
	m := &blockMapper{index: v.blockIndex(), fn: fn, dropped: map[string]bool{}}
	root := Visit[Node](v.Document, m).(*Root)
	if !m.changed {
		return v, false
	}

	out := &Value{Document: root, Links: v.Links}
	for _, el := range v.Blocks {
		if !m.dropped[models.RefID(el)] {
			out.Blocks = append(out.Blocks, el)
		}
	}
	return out, true
}

type blockMapper struct {
	index   map[string]models.Block
	fn      func(models.Block) (models.Block, bool)
	dropped map[string]bool
	changed bool
}

func (m *blockMapper) children(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Visit[Node](n, m))
	}
	return out
}

func (m *blockMapper) replace(item string, record map[string]any) (string, map[string]any) {
	b, ok := resolveBlock(m.index, item, record)
	if !ok {
		return item, record
	}
	next, ok := m.fn(b)
	if !ok {
		return item, record
	}
	m.changed = true
	if next.ID == "" && item != "" {
		m.dropped[item] = true
	}
	return next.ID, next.Value()
}

func (m *blockMapper) Root(n *Root) Node {
	return &Root{Children: m.children(n.Children), Attrs: n.Attrs}
}

func (m *blockMapper) Paragraph(n *Paragraph) Node {
	return &Paragraph{Children: m.children(n.Children), Attrs: n.Attrs}
}

func (m *blockMapper) Heading(n *Heading) Node {
	return &Heading{Children: m.children(n.Children), Attrs: n.Attrs}
}

func (m *blockMapper) List(n *List) Node {
	return &List{Children: m.children(n.Children), Attrs: n.Attrs}
}

func (m *blockMapper) ListItem(n *ListItem) Node {
	return &ListItem{Children: m.children(n.Children), Attrs: n.Attrs}
}

func (m *blockMapper) Blockquote(n *Blockquote) Node {
	return &Blockquote{Children: m.children(n.Children), Attrs: n.Attrs}
}

func (m *blockMapper) Code(n *Code) Node { return n }

func (m *blockMapper) Span(n *Span) Node { return n }

func (m *blockMapper) Link(n *Link) Node {
	return &Link{Children: m.children(n.Children), Attrs: n.Attrs}
}

func (m *blockMapper) ItemLink(n *ItemLink) Node {
	return &ItemLink{Item: n.Item, Children: m.children(n.Children), Attrs: n.Attrs}
}

func (m *blockMapper) InlineItem(n *InlineItem) Node { return n }

func (m *blockMapper) Block(n *Block) Node {
	item, record := m.replace(n.Item, n.Record)
	return &Block{Item: item, Record: record, Attrs: n.Attrs}
}

func (m *blockMapper) InlineBlock(n *InlineBlock) Node {
	item, record := m.replace(n.Item, n.Record)
	return &InlineBlock{Item: item, Record: record, Attrs: n.Attrs}
}

func (m *blockMapper) ThematicBreak(n *ThematicBreak) Node { return n }
