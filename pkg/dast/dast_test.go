package dast

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

func span(value string) map[string]any {
	return map[string]any{"type": "span", "value": value}
}

func paragraph(children ...any) map[string]any {
	return map[string]any{"type": "paragraph", "children": children}
}

func blockNode(typ, item string) map[string]any {
	return map[string]any{"type": typ, "item": item}
}

func blockObject(id, itemType string) map[string]any {
	return map[string]any{"id": id, "item_type": itemType, "attributes": map[string]any{"title": id}}
}

func value(children []any, blocks []any, links []any) map[string]any {
	return map[string]any{
		"schema":   "dast",
		"document": map[string]any{"type": "root", "children": children},
		"blocks":   blocks,
		"links":    links,
	}
}

func mustDecode(t *testing.T, raw any) *Value {
	t.Helper()
	v, err := DecodeValue(raw)
	require.NoError(t, err)
	return v
}

func TestCodecRoundTrip(t *testing.T) {
	doc := map[string]any{
		"type": "root",
		"children": []any{
			map[string]any{"type": "heading", "level": float64(2), "children": []any{span("Title")}},
			paragraph(
				map[string]any{"type": "span", "value": "bold", "marks": []any{"strong"}},
				map[string]any{"type": "link", "url": "https://example.com", "children": []any{span("x")}},
				map[string]any{"type": "itemLink", "item": "rec1", "children": []any{span("y")}},
				map[string]any{"type": "inlineItem", "item": "rec2"},
			),
			map[string]any{"type": "list", "style": "bulleted", "children": []any{
				map[string]any{"type": "listItem", "children": []any{paragraph(span("li"))}},
			}},
			map[string]any{"type": "blockquote", "children": []any{paragraph(span("q"))}},
			map[string]any{"type": "code", "code": "x := 1", "language": "go"},
			map[string]any{"type": "thematicBreak"},
			blockNode("block", "b1"),
		},
	}

	n, err := Decode(doc)
	require.NoError(t, err)
	if diff := cmp.Diff(doc, Encode(n)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(map[string]any{"type": "marquee"})
	require.ErrorIs(t, err, constants.ErrInvalidDocument)

	_, err = Decode("root")
	require.ErrorIs(t, err, constants.ErrInvalidDocument)

	_, err = DecodeValue(map[string]any{"schema": "dast", "document": paragraph()})
	require.ErrorIs(t, err, constants.ErrInvalidDocument)

	v, err := DecodeValue(nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestTransformReplaceAtRoot(t *testing.T) {
	v := mustDecode(t, value(
		[]any{blockNode("block", "b1")},
		[]any{blockObject("b1", "hero")},
		[]any{},
	))

	out, changed := Transform(v, TransformOptions{
		Mode:         Replace,
		TargetTypeID: "hero",
		Mapping:      MapLookup{"b1": "rec1"},
	})
	require.True(t, changed)

	want := value(
		[]any{paragraph(span(""), map[string]any{"type": "inlineItem", "item": "rec1"})},
		[]any{},
		[]any{map[string]any{"id": "rec1"}},
	)
	if diff := cmp.Diff(want, out.Encode()); diff != "" {
		t.Errorf("unexpected value (-want +got):\n%s", diff)
	}
}

func TestTransformAugmentAtRoot(t *testing.T) {
	v := mustDecode(t, value(
		[]any{blockNode("block", "b1")},
		[]any{blockObject("b1", "hero")},
		[]any{map[string]any{"id": "other", "item_type": "author", "attributes": map[string]any{}}},
	))

	out, changed := Transform(v, TransformOptions{
		Mode:         Augment,
		TargetTypeID: "hero",
		Mapping:      MapLookup{"b1": "rec1"},
	})
	require.True(t, changed)

	want := value(
		[]any{
			blockNode("block", "b1"),
			paragraph(span(""), map[string]any{"type": "inlineItem", "item": "rec1"}),
		},
		[]any{map[string]any{"id": "b1"}},
		[]any{map[string]any{"id": "other"}, map[string]any{"id": "rec1"}},
	)
	if diff := cmp.Diff(want, out.Encode()); diff != "" {
		t.Errorf("unexpected value (-want +got):\n%s", diff)
	}

	// a second pass finds the reference already in place
	again, changed := Transform(out, TransformOptions{
		Mode:         Augment,
		TargetTypeID: "hero",
		Mapping:      MapLookup{"b1": "rec1"},
	})
	assert.False(t, changed)
	assert.Same(t, out, again)
}

func TestTransformInlineContexts(t *testing.T) {
	v := mustDecode(t, value(
		[]any{
			paragraph(span("before "), blockNode("inlineBlock", "b1")),
			map[string]any{"type": "list", "style": "numbered", "children": []any{
				map[string]any{"type": "listItem", "children": []any{blockNode("inlineBlock", "b2")}},
			}},
		},
		[]any{blockObject("b1", "hero"), blockObject("b2", "hero")},
		nil,
	))

	out, changed := Transform(v, TransformOptions{
		Mode:         Replace,
		TargetTypeID: "hero",
		Mapping:      MapLookup{"b1": "rec1", "b2": "rec2"},
	})
	require.True(t, changed)

	want := []any{
		paragraph(span("before "), map[string]any{"type": "inlineItem", "item": "rec1"}),
		map[string]any{"type": "list", "style": "numbered", "children": []any{
			map[string]any{"type": "listItem", "children": []any{
				paragraph(span(""), map[string]any{"type": "inlineItem", "item": "rec2"}),
			}},
		}},
	}
	if diff := cmp.Diff(want, out.Encode()["document"].(map[string]any)["children"]); diff != "" {
		t.Errorf("unexpected document (-want +got):\n%s", diff)
	}
}

func TestTransformLeavesOtherBlocks(t *testing.T) {
	raw := value(
		[]any{blockNode("block", "b1"), blockNode("block", "b2")},
		[]any{blockObject("b1", "hero"), blockObject("b2", "gallery")},
		nil,
	)
	v := mustDecode(t, raw)

	_, changed := Transform(v, TransformOptions{Mode: Replace, TargetTypeID: "hero", Mapping: MapLookup{}})
	assert.False(t, changed, "no mapping entry, nothing to rewrite")

	out, changed := Transform(v, TransformOptions{Mode: Replace, TargetTypeID: "hero", Mapping: MapLookup{"b1": "rec1"}})
	require.True(t, changed)
	encoded := out.Encode()
	assert.Equal(t, []any{map[string]any{"id": "b2"}}, encoded["blocks"])
	children := encoded["document"].(map[string]any)["children"].([]any)
	require.Len(t, children, 2)
	assert.Equal(t, blockNode("block", "b2"), children[1])

	// the input value is untouched
	assert.Len(t, v.Document.Children, 2)
	assert.IsType(t, &Block{}, v.Document.Children[0])
}

func TestTransformInlinedRecord(t *testing.T) {
	v := mustDecode(t, value(
		[]any{map[string]any{"type": "block", "item": blockObject("b1", "hero")}},
		nil,
		nil,
	))
	out, changed := Transform(v, TransformOptions{Mode: Replace, TargetTypeID: "hero", Mapping: MapLookup{"b1": "rec1"}})
	require.True(t, changed)
	assert.Equal(t, []string{"rec1"}, out.LinkIDs())
}

func TestEmbeddedBlocks(t *testing.T) {
	v := mustDecode(t, value(
		[]any{
			blockNode("block", "b2"),
			paragraph(map[string]any{"type": "inlineBlock", "item": blockObject("b3", "cta")}),
			blockNode("block", "b1"),
			blockNode("block", "unknown"),
		},
		[]any{blockObject("b1", "hero"), blockObject("b2", "hero")},
		nil,
	))

	var ids []string
	for _, b := range v.EmbeddedBlocks() {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"b2", "b3", "b1"}, ids)
}

func TestMapBlocks(t *testing.T) {
	v := mustDecode(t, value(
		[]any{blockNode("block", "b1"), blockNode("block", "b2")},
		[]any{blockObject("b1", "hero"), blockObject("b2", "gallery")},
		nil,
	))

	out, changed := v.MapBlocks(func(b models.Block) (models.Block, bool) {
		if b.ItemType != "gallery" {
			return b, false
		}
		b.Attributes = map[string]any{"title": "updated"}
		return b, true
	})
	require.True(t, changed)

	children := out.Encode()["document"].(map[string]any)["children"].([]any)
	assert.Equal(t, "b1", children[0].(map[string]any)["item"])
	assert.Equal(t, map[string]any{
		"id":         "b2",
		"item_type":  "gallery",
		"attributes": map[string]any{"title": "updated"},
	}, children[1].(map[string]any)["item"])

	_, changed = v.MapBlocks(func(b models.Block) (models.Block, bool) { return b, false })
	assert.False(t, changed)
}

func TestWalkVisitsEveryNode(t *testing.T) {
	doc := &Root{Children: []Node{
		&Heading{Children: []Node{&Span{Value: "Title"}}},
		&List{Children: []Node{
			&ListItem{Children: []Node{
				&Paragraph{Children: []Node{
					&Link{Children: []Node{&Span{Value: "out"}}},
					&ItemLink{Item: "rec-1", Children: []Node{&Span{Value: "in"}}},
					&InlineItem{Item: "rec-2"},
					&InlineBlock{Item: "blk-2"},
				}},
			}},
		}},
		&Blockquote{Children: []Node{&Paragraph{Children: []Node{&Span{Value: "q"}}}}},
		&Code{},
		&Block{Item: "blk-1"},
		&ThematicBreak{},
	}}

	var types []NodeType
	Walk(doc, func(n Node) { types = append(types, n.Type()) })
	assert.Equal(t, []NodeType{
		TypeRoot,
		TypeHeading, TypeSpan,
		TypeList, TypeListItem, TypeParagraph,
		TypeLink, TypeSpan,
		TypeItemLink, TypeSpan,
		TypeInlineItem, TypeInlineBlock,
		TypeBlockquote, TypeParagraph, TypeSpan,
		TypeCode, TypeBlock, TypeThematicBreak,
	}, types)
	assert.Nil(t, Children(&Block{Item: "blk-1"}))
}
