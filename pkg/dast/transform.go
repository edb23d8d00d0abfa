package dast

import (
	"slices"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

// Mode selects what happens to a block node whose block was migrated.
type Mode int

const (
	// Replace swaps the block node for a reference to the new record.
	Replace Mode = iota
	// Augment keeps the block node and inserts the reference after it.
	Augment
)

func (m Mode) String() string {
	if m == Augment {
		return "augment"
	}
	return "replace"
}

// Lookup resolves a block id to the id of the record it was migrated to.
type Lookup interface {
	Lookup(blockID string) (string, bool)
}

// MapLookup is a Lookup over a plain map.
type MapLookup map[string]string

func (m MapLookup) Lookup(blockID string) (string, bool) {
	id, ok := m[blockID]
	return id, ok
}

type TransformOptions struct {
	Mode         Mode
	TargetTypeID string
	Mapping      Lookup
}

// Transform rewrites every block and inlineBlock node of the target type
// that has a mapping entry. The input is never modified. The result has
// every node item reduced to its id; changed is false, and v is returned as
// is, when no node was rewritten and no link was added.
func Transform(v *Value, opts TransformOptions) (*Value, bool) {
	if v == nil {
		return nil, false
	}
	t := &transformer{
		opts:     opts,
		index:    v.blockIndex(),
		replaced: map[string]bool{},
	}
	root := t.Root(v.Document)[0].(*Root)

	links := linkIDs(v.Links)
	for _, id := range t.added {
		if !slices.Contains(links, id) {
			links = append(links, id)
			t.changed = true
		}
	}
	if !t.changed {
		return v, false
	}

	out := &Value{Document: root}
	for _, el := range v.Blocks {
		id := models.RefID(el)
		if id != "" && !t.replaced[id] {
			out.Blocks = append(out.Blocks, map[string]any{"id": id})
		}
	}
	for _, id := range links {
		out.Links = append(out.Links, map[string]any{"id": id})
	}
	return out, true
}

func linkIDs(list []any) []string {
	var out []string
	for _, el := range list {
		if id := models.RefID(el); id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

type transformer struct {
	opts     TransformOptions
	index    map[string]models.Block
	replaced map[string]bool
	added    []string
	changed  bool

	// inline and next describe the position of the node being visited: the
	// kind of its parent and its following sibling.
	inline bool
	next   Node
}

func (t *transformer) children(nodes []Node, inline bool) []Node {
	savedInline, savedNext := t.inline, t.next
	defer func() { t.inline, t.next = savedInline, savedNext }()

	out := make([]Node, 0, len(nodes))
	for i, n := range nodes {
		t.inline = inline
		t.next = nil
		if i+1 < len(nodes) {
			t.next = nodes[i+1]
		}
		out = append(out, Visit[[]Node](n, t)...)
	}
	return out
}

// reference builds the node pointing at recordID that is valid at the
// current position.
func (t *transformer) reference(recordID string) Node {
	item := &InlineItem{Item: recordID}
	if t.inline {
		return item
	}
	return &Paragraph{Children: []Node{&Span{Value: ""}, item}}
}

func isReferenceTo(n Node, recordID string) bool {
	switch n := n.(type) {
	case *InlineItem:
		return n.Item == recordID
	case *Paragraph:
		var items []string
		for _, child := range n.Children {
			switch child := child.(type) {
			case *InlineItem:
				items = append(items, child.Item)
			case *Span:
				if child.Value != "" {
					return false
				}
			default:
				return false
			}
		}
		return len(items) == 1 && items[0] == recordID
	default:
		return false
	}
}

// rewrite handles a block or inlineBlock node; keep is the node with its
// item reduced to an id.
func (t *transformer) rewrite(item string, record map[string]any, keep Node) []Node {
	b, ok := resolveBlock(t.index, item, record)
	if !ok || b.ItemType != t.opts.TargetTypeID || t.opts.Mapping == nil {
		return []Node{keep}
	}
	recordID, ok := t.opts.Mapping.Lookup(b.ID)
	if !ok {
		return []Node{keep}
	}
	t.added = append(t.added, recordID)

	if t.opts.Mode == Replace {
		t.replaced[b.ID] = true
		t.changed = true
		return []Node{t.reference(recordID)}
	}
	if t.next != nil && isReferenceTo(t.next, recordID) {
		return []Node{keep}
	}
	t.changed = true
	return []Node{keep, t.reference(recordID)}
}

// referencedItem reduces the item a block node references to its id, keeping
// the inlined record only when the node carries no id.
func referencedItem(item string, record map[string]any) (string, map[string]any) {
	if item != "" {
		return item, nil
	}
	return item, record
}

func (t *transformer) Root(n *Root) []Node {
	return []Node{&Root{Children: t.children(n.Children, false), Attrs: n.Attrs}}
}

func (t *transformer) Paragraph(n *Paragraph) []Node {
	return []Node{&Paragraph{Children: t.children(n.Children, true), Attrs: n.Attrs}}
}

func (t *transformer) Heading(n *Heading) []Node {
	return []Node{&Heading{Children: t.children(n.Children, true), Attrs: n.Attrs}}
}

func (t *transformer) List(n *List) []Node {
	return []Node{&List{Children: t.children(n.Children, false), Attrs: n.Attrs}}
}

func (t *transformer) ListItem(n *ListItem) []Node {
	return []Node{&ListItem{Children: t.children(n.Children, false), Attrs: n.Attrs}}
}

func (t *transformer) Blockquote(n *Blockquote) []Node {
	return []Node{&Blockquote{Children: t.children(n.Children, false), Attrs: n.Attrs}}
}

func (t *transformer) Code(n *Code) []Node { return []Node{n} }

func (t *transformer) Span(n *Span) []Node { return []Node{n} }

func (t *transformer) Link(n *Link) []Node {
	return []Node{&Link{Children: t.children(n.Children, true), Attrs: n.Attrs}}
}

func (t *transformer) ItemLink(n *ItemLink) []Node {
	return []Node{&ItemLink{Item: n.Item, Children: t.children(n.Children, true), Attrs: n.Attrs}}
}

func (t *transformer) InlineItem(n *InlineItem) []Node { return []Node{n} }

func (t *transformer) Block(n *Block) []Node {
	item, record := referencedItem(n.Item, n.Record)
	return t.rewrite(n.Item, n.Record, &Block{Item: item, Record: record, Attrs: n.Attrs})
}

func (t *transformer) InlineBlock(n *InlineBlock) []Node {
	item, record := referencedItem(n.Item, n.Record)
	return t.rewrite(n.Item, n.Record, &InlineBlock{Item: item, Record: record, Attrs: n.Attrs})
}

func (t *transformer) ThematicBreak(n *ThematicBreak) []Node { return []Node{n} }
