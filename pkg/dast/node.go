// Package dast models structured-text documents: a closed set of node types
// rooted at Root, the value wrapper carrying the companion blocks and links
// lists, and the Transformer that rewrites block nodes into record
// references.
package dast

// NodeType is the "type" member of a document node.
type NodeType string

const (
	TypeRoot          NodeType = "root"
	TypeParagraph     NodeType = "paragraph"
	TypeHeading       NodeType = "heading"
	TypeList          NodeType = "list"
	TypeListItem      NodeType = "listItem"
	TypeBlockquote    NodeType = "blockquote"
	TypeCode          NodeType = "code"
	TypeSpan          NodeType = "span"
	TypeLink          NodeType = "link"
	TypeItemLink      NodeType = "itemLink"
	TypeInlineItem    NodeType = "inlineItem"
	TypeBlock         NodeType = "block"
	TypeInlineBlock   NodeType = "inlineBlock"
	TypeThematicBreak NodeType = "thematicBreak"
)

// Node is implemented by the node types of this package only.
type Node interface {
	Type() NodeType
	node()
}

// Attrs holds the node members this package does not interpret (level,
// style, url, meta, marks, code, language, ...). They round-trip verbatim.
type Attrs map[string]any

type Root struct {
	Children []Node
	Attrs    Attrs
}

type Paragraph struct {
	Children []Node
	Attrs    Attrs
}

type Heading struct {
	Children []Node
	Attrs    Attrs
}

type List struct {
	Children []Node
	Attrs    Attrs
}

type ListItem struct {
	Children []Node
	Attrs    Attrs
}

type Blockquote struct {
	Children []Node
	Attrs    Attrs
}

type Code struct {
	Attrs Attrs
}

type Span struct {
	Value string
	Attrs Attrs
}

type Link struct {
	Children []Node
	Attrs    Attrs
}

// ItemLink is a hyperlink to a record listed in the value's links.
type ItemLink struct {
	Item     string
	Children []Node
	Attrs    Attrs
}

// InlineItem references a record listed in the value's links. It is only
// valid inside an inline context.
type InlineItem struct {
	Item  string
	Attrs Attrs
}

// Block embeds a block. Record holds the block object when the node carries
// it inline instead of an id into the value's blocks.
type Block struct {
	Item   string
	Record map[string]any
	Attrs  Attrs
}

// InlineBlock is the inline counterpart of Block.
type InlineBlock struct {
	Item   string
	Record map[string]any
	Attrs  Attrs
}

type ThematicBreak struct {
	Attrs Attrs
}

func (*Root) Type() NodeType          { return TypeRoot }
func (*Paragraph) Type() NodeType     { return TypeParagraph }
func (*Heading) Type() NodeType       { return TypeHeading }
func (*List) Type() NodeType          { return TypeList }
func (*ListItem) Type() NodeType      { return TypeListItem }
func (*Blockquote) Type() NodeType    { return TypeBlockquote }
func (*Code) Type() NodeType          { return TypeCode }
func (*Span) Type() NodeType          { return TypeSpan }
func (*Link) Type() NodeType          { return TypeLink }
func (*ItemLink) Type() NodeType      { return TypeItemLink }
func (*InlineItem) Type() NodeType    { return TypeInlineItem }
func (*Block) Type() NodeType         { return TypeBlock }
func (*InlineBlock) Type() NodeType   { return TypeInlineBlock }
func (*ThematicBreak) Type() NodeType { return TypeThematicBreak }

func (*Root) node()          {}
func (*Paragraph) node()     {}
func (*Heading) node()       {}
func (*List) node()          {}
func (*ListItem) node()      {}
func (*Blockquote) node()    {}
func (*Code) node()          {}
func (*Span) node()          {}
func (*Link) node()          {}
func (*ItemLink) node()      {}
func (*InlineItem) node()    {}
func (*Block) node()         {}
func (*InlineBlock) node()   {}
func (*ThematicBreak) node() {}

// Visitor has one method per node type. Adding a node type adds a method
// here, so every visitor must handle it before the package compiles again.
type Visitor[T any] interface {
	Root(*Root) T
	Paragraph(*Paragraph) T
	Heading(*Heading) T
	List(*List) T
	ListItem(*ListItem) T
	Blockquote(*Blockquote) T
	Code(*Code) T
	Span(*Span) T
	Link(*Link) T
	ItemLink(*ItemLink) T
	InlineItem(*InlineItem) T
	Block(*Block) T
	InlineBlock(*InlineBlock) T
	ThematicBreak(*ThematicBreak) T
}

// Visit dispatches n to the matching method of v.
func Visit[T any](n Node, v Visitor[T]) T {
	switch n := n.(type) {
	case *Root:
		return v.Root(n)
	case *Paragraph:
		return v.Paragraph(n)
	case *Heading:
		return v.Heading(n)
	case *List:
		return v.List(n)
	case *ListItem:
		return v.ListItem(n)
	case *Blockquote:
		return v.Blockquote(n)
	case *Code:
		return v.Code(n)
	case *Span:
		return v.Span(n)
	case *Link:
		return v.Link(n)
	case *ItemLink:
		return v.ItemLink(n)
	case *InlineItem:
		return v.InlineItem(n)
	case *Block:
		return v.Block(n)
	case *InlineBlock:
		return v.InlineBlock(n)
	case *ThematicBreak:
		return v.ThematicBreak(n)
	default:
		panic("dast: unknown node type")
	}
}

// Children returns the child nodes of n, or nil for leaves.
func Children(n Node) []Node {
	return Visit[[]Node](n, children{})
}

type children struct{}

func (children) Root(n *Root) []Node                 { return n.Children }
func (children) Paragraph(n *Paragraph) []Node       { return n.Children }
func (children) Heading(n *Heading) []Node           { return n.Children }
func (children) List(n *List) []Node                 { return n.Children }
func (children) ListItem(n *ListItem) []Node         { return n.Children }
func (children) Blockquote(n *Blockquote) []Node     { return n.Children }
func (children) Code(*Code) []Node                   { return nil }
func (children) Span(*Span) []Node                   { return nil }
func (children) Link(n *Link) []Node                 { return n.Children }
func (children) ItemLink(n *ItemLink) []Node         { return n.Children }
func (children) InlineItem(*InlineItem) []Node       { return nil }
func (children) Block(*Block) []Node                 { return nil }
func (children) InlineBlock(*InlineBlock) []Node     { return nil }
func (children) ThematicBreak(*ThematicBreak) []Node { return nil }

// Walk calls fn for n and every descendant, parents before children.
func Walk(n Node, fn func(Node)) {
	fn(n)
	for _, child := range Children(n) {
		Walk(child, fn)
	}
}
