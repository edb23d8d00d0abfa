package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/fakecms"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/connection"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

func resolve(t *testing.T, conn connection.Connection, target string) []NestedPath {
	t.Helper()
	paths, err := NewResolver(NewCache(conn), nil).Resolve(context.Background(), target)
	require.NoError(t, err)
	return paths
}

func TestResolveDirect(t *testing.T) {
	s := fakecms.New()
	hero := s.BlockType(t, "hero")
	page := s.Model(t, "page")
	s.Container(t, page.ID, "sections", models.FieldTypeRichText, true, hero.ID)
	s.Container(t, page.ID, "cover", models.FieldTypeSingleBlock, false, hero.ID)
	s.Field(t, page.ID, models.Field{APIKey: "title", FieldType: models.FieldTypeString})

	paths := resolve(t, s, hero.ID)
	require.Len(t, paths, 2)
	assert.Equal(t, "page.cover", paths[0].String())
	assert.Equal(t, "page.sections", paths[1].String())
	assert.False(t, paths[0].Localized)
	assert.True(t, paths[1].Localized)
	assert.Equal(t, hero.ID, paths[1].Last().BlockTypeID)
	assert.False(t, paths[1].Nested())
}

func TestResolveDepth(t *testing.T) {
	s := fakecms.New()
	card := s.BlockType(t, "card")
	row := s.BlockType(t, "row")
	section := s.BlockType(t, "section")
	s.Container(t, row.ID, "cards", models.FieldTypeRichText, false, card.ID)
	s.Container(t, section.ID, "rows", models.FieldTypeStructuredText, false, row.ID)
	page := s.Model(t, "page")
	s.Container(t, page.ID, "body", models.FieldTypeRichText, false, section.ID)
	post := s.Model(t, "post")
	s.Container(t, post.ID, "content", models.FieldTypeSingleBlock, true, section.ID)

	paths := resolve(t, s, card.ID)
	require.Len(t, paths, 2)
	for _, p := range paths {
		assert.Len(t, p.Steps, 3)
		assert.True(t, p.Nested())
	}
	assert.Equal(t, "page.body > rows > cards", paths[0].String())
	assert.Equal(t, "post.content > rows > cards", paths[1].String())
	assert.True(t, paths[1].Localized)

	steps := paths[0].Steps
	assert.Equal(t, []string{section.ID, row.ID, card.ID}, []string{steps[0].BlockTypeID, steps[1].BlockTypeID, steps[2].BlockTypeID})
	assert.Equal(t, []string{page.ID, section.ID, row.ID}, []string{steps[0].OwnerTypeID, steps[1].OwnerTypeID, steps[2].OwnerTypeID})

	refs := FieldRefs(paths)
	require.Len(t, refs, 1)
	assert.Equal(t, "cards", refs[0].FieldKey)
	assert.True(t, refs[0].Nested)
	assert.Len(t, PathsFor(paths, refs[0].FieldID), 2)
}

func TestResolveCycles(t *testing.T) {
	t.Run("never reaching a record type", func(t *testing.T) {
		s := fakecms.New()
		node := s.BlockType(t, "node")
		s.Container(t, node.ID, "children", models.FieldTypeRichText, false, node.ID)
		other := s.BlockType(t, "other")
		s.Container(t, other.ID, "nodes", models.FieldTypeRichText, false, node.ID)
		s.Container(t, node.ID, "others", models.FieldTypeRichText, false, other.ID)

		assert.Empty(t, resolve(t, s, node.ID))
	})

	t.Run("reaching a record type", func(t *testing.T) {
		s := fakecms.New()
		node := s.BlockType(t, "node")
		s.Container(t, node.ID, "children", models.FieldTypeRichText, false, node.ID)
		page := s.Model(t, "page")
		s.Container(t, page.ID, "tree", models.FieldTypeRichText, false, node.ID)

		paths := resolve(t, s, node.ID)
		require.Len(t, paths, 1)
		assert.Equal(t, "page.tree", paths[0].String())
	})
}

func TestResolveErrors(t *testing.T) {
	s := fakecms.New()
	page := s.Model(t, "page")

	_, err := NewResolver(NewCache(s), nil).Resolve(context.Background(), page.ID)
	require.ErrorIs(t, err, constants.ErrNotEmbeddable)

	_, err = NewResolver(NewCache(s), nil).Resolve(context.Background(), "missing")
	require.ErrorIs(t, err, constants.ErrTypeNotFound)
}

type countingConn struct {
	connection.Connection
	listTypes  int
	listFields int
}

func (c *countingConn) ListItemTypes(ctx context.Context) ([]models.ItemType, error) {
	c.listTypes++
	return c.Connection.ListItemTypes(ctx)
}

func (c *countingConn) ListFields(ctx context.Context, itemTypeID string) ([]models.Field, error) {
	c.listFields++
	return c.Connection.ListFields(ctx, itemTypeID)
}

func TestCacheMemoizes(t *testing.T) {
	s := fakecms.New()
	hero := s.BlockType(t, "hero")
	page := s.Model(t, "page")
	s.Container(t, page.ID, "sections", models.FieldTypeRichText, false, hero.ID)

	conn := &countingConn{Connection: s}
	cache := NewCache(conn)
	r := NewResolver(cache, nil)
	_, err := r.Resolve(context.Background(), hero.ID)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), hero.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, conn.listTypes)
	assert.Equal(t, 2, conn.listFields)

	cache.Invalidate()
	_, err = cache.Fields(context.Background(), page.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, conn.listFields)

	f, ok, err := cache.FieldByKey(context.Background(), page.ID, "sections")
	require.NoError(t, err)
	require.True(t, ok)
	got, err := cache.Field(context.Background(), page.ID, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}
