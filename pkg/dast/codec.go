package dast

import (
	"fmt"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

// Decode builds a node tree from its decoded JSON form.
func Decode(raw any) (Node, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: node must be an object, got %T", constants.ErrInvalidDocument, raw)
	}
	typ, _ := m["type"].(string)

	attrs := Attrs{}
	for k, v := range m {
		switch k {
		case "type", "children", "item":
		default:
			attrs[k] = v
		}
	}

	var children []Node
	if rawChildren, ok := m["children"].([]any); ok {
		children = make([]Node, 0, len(rawChildren))
		for _, rc := range rawChildren {
			child, err := Decode(rc)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
	}

	switch NodeType(typ) {
	case TypeRoot:
		return &Root{Children: children, Attrs: attrs}, nil
	case TypeParagraph:
		return &Paragraph{Children: children, Attrs: attrs}, nil
	case TypeHeading:
		return &Heading{Children: children, Attrs: attrs}, nil
	case TypeList:
		return &List{Children: children, Attrs: attrs}, nil
	case TypeListItem:
		return &ListItem{Children: children, Attrs: attrs}, nil
	case TypeBlockquote:
		return &Blockquote{Children: children, Attrs: attrs}, nil
	case TypeCode:
		return &Code{Attrs: attrs}, nil
	case TypeSpan:
		value, _ := attrs["value"].(string)
		delete(attrs, "value")
		return &Span{Value: value, Attrs: attrs}, nil
	case TypeLink:
		return &Link{Children: children, Attrs: attrs}, nil
	case TypeItemLink:
		return &ItemLink{Item: models.RefID(m["item"]), Children: children, Attrs: attrs}, nil
	case TypeInlineItem:
		return &InlineItem{Item: models.RefID(m["item"]), Attrs: attrs}, nil
	case TypeBlock:
		item, record := decodeBlockItem(m["item"])
		return &Block{Item: item, Record: record, Attrs: attrs}, nil
	case TypeInlineBlock:
		item, record := decodeBlockItem(m["item"])
		return &InlineBlock{Item: item, Record: record, Attrs: attrs}, nil
	case TypeThematicBreak:
		return &ThematicBreak{Attrs: attrs}, nil
	default:
		return nil, fmt.Errorf("%w: unknown node type %q", constants.ErrInvalidDocument, typ)
	}
}

func decodeBlockItem(raw any) (string, map[string]any) {
	if _, ok := models.BlockFromValue(raw); ok {
		return models.RefID(raw), raw.(map[string]any)
	}
	return models.RefID(raw), nil
}

// Encode renders n back to its JSON form. Block nodes carrying a Record
// write it inline, every other item is written as its id.
func Encode(n Node) map[string]any {
	return Visit[map[string]any](n, encoder{})
}

type encoder struct{}

func (e encoder) object(typ NodeType, attrs Attrs, children []Node) map[string]any {
	out := make(map[string]any, len(attrs)+2)
	for k, v := range attrs {
		out[k] = v
	}
	out["type"] = string(typ)
	if children != nil {
		list := make([]any, 0, len(children))
		for _, child := range children {
			list = append(list, Encode(child))
		}
		out["children"] = list
	}
	return out
}

func (e encoder) Root(n *Root) map[string]any {
	return e.object(TypeRoot, n.Attrs, nonNil(n.Children))
}

func (e encoder) Paragraph(n *Paragraph) map[string]any {
	return e.object(TypeParagraph, n.Attrs, nonNil(n.Children))
}

func (e encoder) Heading(n *Heading) map[string]any {
	return e.object(TypeHeading, n.Attrs, nonNil(n.Children))
}

func (e encoder) List(n *List) map[string]any {
	return e.object(TypeList, n.Attrs, nonNil(n.Children))
}

func (e encoder) ListItem(n *ListItem) map[string]any {
	return e.object(TypeListItem, n.Attrs, nonNil(n.Children))
}

func (e encoder) Blockquote(n *Blockquote) map[string]any {
	return e.object(TypeBlockquote, n.Attrs, nonNil(n.Children))
}

func (e encoder) Code(n *Code) map[string]any {
	return e.object(TypeCode, n.Attrs, nil)
}

func (e encoder) Span(n *Span) map[string]any {
	out := e.object(TypeSpan, n.Attrs, nil)
	out["value"] = n.Value
	return out
}

func (e encoder) Link(n *Link) map[string]any {
	return e.object(TypeLink, n.Attrs, nonNil(n.Children))
}

func (e encoder) ItemLink(n *ItemLink) map[string]any {
	out := e.object(TypeItemLink, n.Attrs, nonNil(n.Children))
	out["item"] = n.Item
	return out
}

func (e encoder) InlineItem(n *InlineItem) map[string]any {
	out := e.object(TypeInlineItem, n.Attrs, nil)
	out["item"] = n.Item
	return out
}

func (e encoder) Block(n *Block) map[string]any {
	out := e.object(TypeBlock, n.Attrs, nil)
	out["item"] = blockItem(n.Item, n.Record)
	return out
}

func (e encoder) InlineBlock(n *InlineBlock) map[string]any {
	out := e.object(TypeInlineBlock, n.Attrs, nil)
	out["item"] = blockItem(n.Item, n.Record)
	return out
}

func (e encoder) ThematicBreak(n *ThematicBreak) map[string]any {
	return e.object(TypeThematicBreak, n.Attrs, nil)
}

func blockItem(id string, record map[string]any) any {
	if record != nil {
		return record
	}
	return id
}

func nonNil(children []Node) []Node {
	if children == nil {
		return []Node{}
	}
	return children
}
