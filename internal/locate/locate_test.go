package locate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/fakecms"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/schema"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

func block(itemType string, attrs map[string]any) map[string]any {
	return map[string]any{"item_type": itemType, "attributes": attrs}
}

func resolve(t *testing.T, s *fakecms.Store, target string) []schema.NestedPath {
	t.Helper()
	paths, err := schema.NewResolver(schema.NewCache(s), nil).Resolve(context.Background(), target)
	require.NoError(t, err)
	return paths
}

func TestLocateNested(t *testing.T) {
	s := fakecms.New("en")
	card := s.BlockType(t, "card")
	s.Field(t, card.ID, models.Field{APIKey: "title", FieldType: models.FieldTypeString})
	section := s.BlockType(t, "section")
	s.Container(t, section.ID, "cards", models.FieldTypeRichText, false, card.ID)
	s.Container(t, section.ID, "body", models.FieldTypeStructuredText, false, card.ID)
	page := s.Model(t, "page")
	s.Container(t, page.ID, "sections", models.FieldTypeRichText, false, section.ID, card.ID)

	rec := s.Record(t, page.ID, map[string]any{"sections": []any{
		block(card.ID, map[string]any{"title": "top"}),
		block(section.ID, map[string]any{"cards": []any{
			block(card.ID, map[string]any{"title": "a"}),
			block(card.ID, map[string]any{"title": "b"}),
		}}),
	}})
	s.Record(t, page.ID, map[string]any{})

	paths := resolve(t, s, card.ID)
	require.Len(t, paths, 3)

	l := NewLocator(s, models.Locales{"en"}, nil)
	byPath := map[string][]BlockInstance{}
	for _, p := range paths {
		instances, err := l.Locate(context.Background(), p, card.ID)
		require.NoError(t, err)
		byPath[p.String()] = instances
	}

	assert.Empty(t, byPath["page.sections > body"])

	direct := byPath["page.sections"]
	require.Len(t, direct, 1)
	assert.Equal(t, "top", direct[0].Attributes["title"])
	assert.Equal(t, []int{0}, direct[0].Trail)
	assert.Equal(t, rec.ID, direct[0].RecordID)
	assert.False(t, direct[0].Synthetic)

	nested := byPath["page.sections > cards"]
	require.Len(t, nested, 2)
	assert.Equal(t, "1.0", nested[0].TrailKey())
	assert.Equal(t, "1.1", nested[1].TrailKey())
	assert.Equal(t, "b", nested[1].Attributes["title"])
	assert.NotEqual(t, nested[0].ID, nested[1].ID)
}

func TestLocateStructuredText(t *testing.T) {
	s := fakecms.New()
	cta := s.BlockType(t, "cta")
	article := s.Model(t, "article")
	s.Container(t, article.ID, "body", models.FieldTypeStructuredText, false, cta.ID)
	s.Record(t, article.ID, map[string]any{"body": map[string]any{
		"schema": "dast",
		"document": map[string]any{"type": "root", "children": []any{
			map[string]any{"type": "block", "item": block(cta.ID, map[string]any{})},
			map[string]any{"type": "block", "item": block(cta.ID, map[string]any{})},
		}},
	}})

	paths := resolve(t, s, cta.ID)
	require.Len(t, paths, 1)
	instances, err := NewLocator(s, models.Locales{"en"}, nil).Locate(context.Background(), paths[0], cta.ID)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, []int{1}, instances[1].Trail)
}

func TestLocateLocalized(t *testing.T) {
	s := fakecms.New("en", "it", "de")
	hero := s.BlockType(t, "hero")
	s.Field(t, hero.ID, models.Field{APIKey: "title", FieldType: models.FieldTypeString})
	page := s.Model(t, "page")
	s.Container(t, page.ID, "sections", models.FieldTypeRichText, true, hero.ID)

	s.Record(t, page.ID, map[string]any{"sections": map[string]any{
		"it": []any{block(hero.ID, map[string]any{"title": "Ciao"})},
		"de": []any{block(hero.ID, map[string]any{"title": "Hallo"}), block(hero.ID, map[string]any{"title": "Zwei"})},
	}})

	paths := resolve(t, s, hero.ID)
	require.Len(t, paths, 1)
	locales := models.Locales{"en", "it", "de"}
	instances, err := NewLocator(s, locales, nil).Locate(context.Background(), paths[0], hero.ID)
	require.NoError(t, err)
	require.Len(t, instances, 3)
	assert.Equal(t, []string{"it", "de", "de"}, []string{instances[0].Locale, instances[1].Locale, instances[2].Locale})

	groups := GroupInstances(instances, locales)
	require.Len(t, groups, 2)

	first := groups[0]
	assert.Equal(t, "it", first.Fallback, "default locale has no copy")
	assert.Len(t, first.Attributes, 3)
	assert.Equal(t, "Ciao", first.Attributes["en"]["title"])
	assert.Equal(t, "Hallo", first.Attributes["de"]["title"])
	assert.Len(t, first.InstanceIDs, 2)

	second := groups[1]
	assert.Equal(t, "de", second.Fallback)
	for _, locale := range locales {
		assert.Equal(t, "Zwei", second.Attributes[locale]["title"])
	}
	assert.Equal(t, []string{instances[2].ID}, second.InstanceIDs)
}

func TestGroupPrefersDefaultLocale(t *testing.T) {
	locales := models.Locales{"en", "it"}
	groups := GroupInstances([]BlockInstance{
		{RecordID: "r", Locale: "it", ID: "b-it", Trail: []int{0}, Attributes: map[string]any{"t": "it"}},
		{RecordID: "r", Locale: "en", ID: "b-en", Trail: []int{0}, Attributes: map[string]any{"t": "en"}},
		{RecordID: "r", Locale: "fr", ID: "b-fr", Trail: []int{0}, Attributes: map[string]any{"t": "fr"}},
	}, locales)

	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, "en", g.Fallback)
	assert.Equal(t, "r#0", g.Key())
	assert.Len(t, g.Attributes, 2, "locales outside the project are dropped")
	assert.Equal(t, []string{"b-it", "b-en", "b-fr"}, g.InstanceIDs)
}

func TestSyntheticIDsAreStable(t *testing.T) {
	l := NewLocator(nil, models.Locales{"en"}, nil)
	path := schema.NestedPath{RootTypeID: "page", Steps: []schema.PathStep{{FieldKey: "sections", FieldType: models.FieldTypeRichText, BlockTypeID: "hero"}}}
	item := models.Item{ID: "rec", ItemType: "page", Attributes: map[string]any{
		"sections": []any{map[string]any{"item_type": "hero", "attributes": map[string]any{}}},
	}}

	first := l.Extract(item, path, "hero")
	second := l.Extract(item, path, "hero")
	require.Len(t, first, 1)
	assert.True(t, first[0].Synthetic)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, SyntheticID("rec", "", []int{0}), first[0].ID)
	assert.NotEqual(t, SyntheticID("rec", "en", []int{0}), first[0].ID)
}
