package mapping

import (
	"context"
	rawslog "log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/batch"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/fakecms"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/locate"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/testenv"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/logger/slog"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

func TestMappingSetIsAppendOnly(t *testing.T) {
	m := New()
	assert.True(t, m.Set("b1", "r1"))
	assert.False(t, m.Set("b1", "r2"))
	m.Set("b2", "r1")

	id, ok := m.Lookup("b1")
	require.True(t, ok)
	assert.Equal(t, "r1", id)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 1, m.RecordCount())

	restored := FromEntries(m.Entries())
	assert.Equal(t, m.Entries(), restored.Entries())
}

func TestSanitize(t *testing.T) {
	in := map[string]any{
		"id":    "b1",
		"meta":  map[string]any{"created_at": "x"},
		"title": "Hello",
		"cards": []any{
			map[string]any{"id": "c1", "item_type": "card", "attributes": map[string]any{"text": "a", "id": "c1"}},
		},
		"cover": map[string]any{"id": "c2", "item_type": "card", "attributes": map[string]any{"text": "b"}},
		"seo":   map[string]any{"title": "t", "type": "kept"},
		"body": map[string]any{
			"schema": "dast",
			"document": map[string]any{"type": "root", "children": []any{
				map[string]any{"type": "block", "item": "c3"},
			}},
			"blocks": []any{map[string]any{"id": "c3", "item_type": "card", "attributes": map[string]any{"text": "c"}}},
			"links":  []any{},
		},
	}

	out := Sanitize(in)
	assert.NotContains(t, out, "id")
	assert.NotContains(t, out, "meta")
	assert.Equal(t, "Hello", out["title"])
	assert.Equal(t, map[string]any{"title": "t", "type": "kept"}, out["seo"])
	assert.Equal(t, []any{map[string]any{"item_type": "card", "attributes": map[string]any{"text": "a"}}}, out["cards"])
	assert.Equal(t, map[string]any{"item_type": "card", "attributes": map[string]any{"text": "b"}}, out["cover"])

	body := out["body"].(map[string]any)
	assert.Equal(t, []any{}, body["blocks"])
	node := body["document"].(map[string]any)["children"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"item_type": "card", "attributes": map[string]any{"text": "c"}}, node["item"])

	// the input is left alone
	assert.Equal(t, "b1", in["id"])
	assert.Equal(t, "c1", in["cards"].([]any)[0].(map[string]any)["id"])
}

type fixture struct {
	store *fakecms.Store
	dest  models.ItemType
}

func newFixture(t *testing.T, locales ...string) fixture {
	s := fakecms.New(locales...)
	dest := s.Model(t, "heroes")
	localized := len(locales) > 1
	s.Field(t, dest.ID, models.Field{APIKey: "title", FieldType: models.FieldTypeString, Localized: localized})
	return fixture{store: s, dest: dest}
}

func TestMapInstancesIsIdempotent(t *testing.T) {
	f := newFixture(t, "en")
	instances := []locate.BlockInstance{
		{RecordID: "r1", ID: "b1", Attributes: map[string]any{"title": "one"}},
		{RecordID: "r1", ID: "b2", Attributes: map[string]any{"title": "two"}},
		{RecordID: "r2", ID: "b3", Attributes: map[string]any{"title": "three"}},
		{RecordID: "r2", ID: "b3", Attributes: map[string]any{"title": "three"}},
	}

	m := New()
	mapper := NewMapper(f.store, m, Options{DestinationTypeID: f.dest.ID, Batch: batch.Options{Size: 2}}, nil)

	report, err := mapper.MapInstances(context.Background(), instances)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 3, f.store.ItemCount(f.dest.ID))

	report, err = mapper.MapInstances(context.Background(), instances)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 4, report.Skipped)
	assert.Equal(t, 3, f.store.ItemCount(f.dest.ID))
	assert.Equal(t, 3, m.Len())
}

func TestMapInstancesWrapsLocales(t *testing.T) {
	f := newFixture(t, "en", "it")
	m := New()
	mapper := NewMapper(f.store, m, Options{
		DestinationTypeID: f.dest.ID,
		Localized:         true,
		Locales:           models.Locales{"en", "it"},
	}, nil)

	_, err := mapper.MapInstances(context.Background(), []locate.BlockInstance{
		{RecordID: "r1", ID: "b1", Attributes: map[string]any{"title": "same"}},
	})
	require.NoError(t, err)

	id, ok := m.Lookup("b1")
	require.True(t, ok)
	rec, ok := f.store.Item(id)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"en": "same", "it": "same"}, rec.Attributes["title"])
}

func TestMapGroups(t *testing.T) {
	f := newFixture(t, "en", "it")
	locales := models.Locales{"en", "it"}
	groups := locate.GroupInstances([]locate.BlockInstance{
		{RecordID: "r1", Locale: "it", ID: "b-it", Trail: []int{0}, Attributes: map[string]any{"title": "Ciao"}},
		{RecordID: "r1", Locale: "en", ID: "b-en", Trail: []int{0}, Attributes: map[string]any{"title": "Hi"}},
		{RecordID: "r1", Locale: "it", ID: "b-it2", Trail: []int{1}, Attributes: map[string]any{"title": "Solo"}},
	}, locales)

	m := New()
	m.Set("b-it2", "existing")
	mapper := NewMapper(f.store, m, Options{DestinationTypeID: f.dest.ID, Localized: true, Locales: locales}, nil)

	report, err := mapper.MapGroups(context.Background(), groups)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Skipped)

	en, _ := m.Lookup("b-en")
	it, _ := m.Lookup("b-it")
	assert.Equal(t, en, it, "every locale copy maps to one record")

	rec, ok := f.store.Item(en)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"en": "Hi", "it": "Ciao"}, rec.Attributes["title"])
}

func TestMapGroupsFillsMissingFields(t *testing.T) {
	tests := []struct {
		name string
		it   map[string]any
	}{
		{"key missing", map[string]any{}},
		{"key nil", map[string]any{"title": nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "en", "it")
			locales := models.Locales{"en", "it"}
			groups := locate.GroupInstances([]locate.BlockInstance{
				{RecordID: "r1", Locale: "en", ID: "b-en", Trail: []int{0}, Attributes: map[string]any{"title": "Hello"}},
				{RecordID: "r1", Locale: "it", ID: "b-it", Trail: []int{0}, Attributes: tt.it},
			}, locales)

			m := New()
			mapper := NewMapper(f.store, m, Options{DestinationTypeID: f.dest.ID, Localized: true, Locales: locales}, nil)
			_, err := mapper.MapGroups(context.Background(), groups)
			require.NoError(t, err)

			id, ok := m.Lookup("b-it")
			require.True(t, ok)
			rec, ok := f.store.Item(id)
			require.True(t, ok)
			assert.Equal(t, map[string]any{"en": "Hello", "it": "Hello"}, rec.Attributes["title"])
		})
	}
}

func TestMapGroupsFillsFromAnyLocale(t *testing.T) {
	f := newFixture(t, "en", "it")
	locales := models.Locales{"en", "it"}
	groups := locate.GroupInstances([]locate.BlockInstance{
		{RecordID: "r1", Locale: "en", ID: "b-en", Trail: []int{0}, Attributes: map[string]any{}},
		{RecordID: "r1", Locale: "it", ID: "b-it", Trail: []int{0}, Attributes: map[string]any{"title": "Ciao"}},
	}, locales)

	m := New()
	mapper := NewMapper(f.store, m, Options{DestinationTypeID: f.dest.ID, Localized: true, Locales: locales}, nil)
	_, err := mapper.MapGroups(context.Background(), groups)
	require.NoError(t, err)

	id, _ := m.Lookup("b-en")
	rec, ok := f.store.Item(id)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"en": "Ciao", "it": "Ciao"}, rec.Attributes["title"])
}

func TestMapInstancesReportsFailures(t *testing.T) {
	f := newFixture(t, "en")
	handler := testenv.NewTestLogHandler()
	m := New()
	mapper := NewMapper(f.store, m, Options{DestinationTypeID: f.dest.ID, Batch: batch.Options{Size: 1}}, slog.New(handler))

	f.store.FailCreates(1)
	report, err := mapper.MapInstances(context.Background(), []locate.BlockInstance{
		{RecordID: "r1", ID: "b1", Attributes: map[string]any{"title": "one"}},
		{RecordID: "r2", ID: "b2", Attributes: map[string]any{"title": "two"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, []string{"b1"}, report.Failed[0].InstanceIDs)
	_, mapped := m.Lookup("b1")
	assert.False(t, mapped)
	assert.Equal(t, 1, handler.Count(rawslog.LevelError, "failed to create record"))

	// a second run retries only what failed
	report, err = mapper.MapInstances(context.Background(), []locate.BlockInstance{
		{RecordID: "r1", ID: "b1", Attributes: map[string]any{"title": "one"}},
		{RecordID: "r2", ID: "b2", Attributes: map[string]any{"title": "two"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Skipped)
}
