package connection_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/suite"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/fakecms"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/connection"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

type RoundTripFunc func(req *http.Request) *http.Response

func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

// NewTestClient returns *http.Client with Transport replaced to avoid making real calls
func NewTestClient(fn RoundTripFunc) *http.Client {
	return &http.Client{
		Transport: fn,
	}
}

type HTTPTestSuite struct {
	suite.Suite
	store  *fakecms.Store
	server *httptest.Server
	con    *connection.HTTPConnection
}

func TestHTTPTestSuite(t *testing.T) {
	suite.Run(t, new(HTTPTestSuite))
}

func (s *HTTPTestSuite) SetupTest() {
	s.store = fakecms.New("en", "it")
	s.server = httptest.NewServer(fakecms.NewServer(s.store, "secret"))

	u, err := url.Parse(s.server.URL)
	s.Require().NoError(err)
	conf := connection.NewConfig(u, "secret")
	conf.PageSize = 2
	s.con, err = connection.NewHTTPConnection(conf)
	s.Require().NoError(err)
}

func (s *HTTPTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *HTTPTestSuite) TestListLocales() {
	locales, err := s.con.ListLocales(context.Background())
	s.Require().NoError(err)
	s.Equal(models.Locales{"en", "it"}, locales)
}

func (s *HTTPTestSuite) TestSchemaRoundTrip() {
	ctx := context.Background()
	hero, err := s.con.CreateItemType(ctx, models.ItemType{Name: "Hero", APIKey: "hero", ModularBlock: true})
	s.Require().NoError(err)
	s.NotEmpty(hero.ID)

	page, err := s.con.CreateItemType(ctx, models.ItemType{Name: "Page", APIKey: "page"})
	s.Require().NoError(err)

	field, err := s.con.CreateField(ctx, page.ID, models.Field{
		Label:      "Sections",
		APIKey:     "sections",
		FieldType:  models.FieldTypeRichText,
		Validators: models.Validators{}.WithItemTypes(models.ValidatorRichTextBlocks, []string{hero.ID}),
	})
	s.Require().NoError(err)

	fields, err := s.con.ListFields(ctx, page.ID)
	s.Require().NoError(err)
	s.Require().Len(fields, 1)
	s.Equal(field.ID, fields[0].ID)
	s.Equal([]string{hero.ID}, fields[0].Validators.ItemTypes(models.ValidatorRichTextBlocks))

	itemTypes, err := s.con.ListItemTypes(ctx)
	s.Require().NoError(err)
	s.Len(itemTypes, 2)

	_, err = s.con.CreateItemType(ctx, models.ItemType{Name: "Page", APIKey: "page"})
	var apiErr *connection.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusUnprocessableEntity, apiErr.Status)
	s.Equal("VALIDATION_UNIQUE", apiErr.Code)

	s.Require().NoError(s.con.DestroyField(ctx, field.ID))
	s.Require().NoError(s.con.DestroyItemType(ctx, hero.ID))
	err = s.con.DestroyItemType(ctx, hero.ID)
	s.True(connection.IsNotFound(err))
}

func (s *HTTPTestSuite) TestEachItemPages() {
	t := s.T()
	page := s.store.Model(t, "page")
	s.store.Field(t, page.ID, models.Field{APIKey: "title", FieldType: models.FieldTypeString})
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		s.store.Record(t, page.ID, map[string]any{"title": title})
	}

	var titles []string
	err := s.con.EachItem(context.Background(), connection.ItemQuery{TypeID: page.ID}, func(item models.Item) error {
		titles = append(titles, item.Attributes["title"].(string))
		return nil
	})
	s.Require().NoError(err)
	s.Equal([]string{"a", "b", "c", "d", "e"}, titles)
}

func (s *HTTPTestSuite) TestNestedRead() {
	t := s.T()
	hero := s.store.BlockType(t, "hero")
	s.store.Field(t, hero.ID, models.Field{APIKey: "title", FieldType: models.FieldTypeString})
	page := s.store.Model(t, "page")
	s.store.Container(t, page.ID, "sections", models.FieldTypeRichText, false, hero.ID)
	rec := s.store.Record(t, page.ID, map[string]any{"sections": []any{
		map[string]any{"item_type": hero.ID, "attributes": map[string]any{"title": "Hi"}},
	}})

	var got []models.Item
	err := s.con.EachItem(context.Background(), connection.ItemQuery{TypeID: page.ID, Nested: true}, func(item models.Item) error {
		got = append(got, item)
		return nil
	})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(rec.ID, got[0].ID)

	b, ok := models.BlockFromValue(got[0].Attributes["sections"].([]any)[0])
	s.Require().True(ok)
	want := map[string]any{"title": "Hi"}
	if diff := cmp.Diff(want, b.Attributes); diff != "" {
		s.Failf("unexpected block attributes", "(-want +got):\n%s", diff)
	}
}

func (s *HTTPTestSuite) TestCreateAndUpdateItem() {
	t := s.T()
	page := s.store.Model(t, "page")
	s.store.Field(t, page.ID, models.Field{APIKey: "title", FieldType: models.FieldTypeString, Localized: true})

	ctx := context.Background()
	created, err := s.con.CreateItem(ctx, models.Item{ItemType: page.ID, Attributes: map[string]any{
		"title": map[string]any{"en": "Hello", "it": "Ciao"},
	}})
	s.Require().NoError(err)

	_, err = s.con.UpdateItem(ctx, created.ID, map[string]any{"title": map[string]any{"en": "Hey", "it": "Ehi"}})
	s.Require().NoError(err)

	stored, ok := s.store.Item(created.ID)
	s.Require().True(ok)
	s.Equal(map[string]any{"en": "Hey", "it": "Ehi"}, stored.Attributes["title"])
}

func (s *HTTPTestSuite) TestUnauthorized() {
	u, _ := url.Parse(s.server.URL)
	con, err := connection.NewHTTPConnection(connection.NewConfig(u, "wrong"))
	s.Require().NoError(err)

	_, err = con.ListItemTypes(context.Background())
	var apiErr *connection.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusUnauthorized, apiErr.Status)
}

func (s *HTTPTestSuite) TestUnparseableError() {
	u, _ := url.Parse("http://example.invalid")
	conf := connection.NewConfig(u, "token")
	conf.HTTPClient = NewTestClient(func(req *http.Request) *http.Response {
		return &http.Response{
			StatusCode: http.StatusBadGateway,
			Body:       io.NopCloser(bytes.NewBufferString("upstream down")),
			Header:     make(http.Header),
		}
	})
	con, err := connection.NewHTTPConnection(conf)
	s.Require().NoError(err)

	_, err = con.ListLocales(context.Background())
	var apiErr *connection.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusBadGateway, apiErr.Status)
	s.Equal("upstream down", apiErr.Message)
}

func (s *HTTPTestSuite) TestConfigValidation() {
	_, err := connection.NewHTTPConnection(&connection.Config{Token: "t"})
	s.ErrorIs(err, constants.ErrNoBaseURL)
	_, err = connection.NewHTTPConnection(&connection.Config{BaseURL: "http://x"})
	s.ErrorIs(err, constants.ErrNoToken)
}
