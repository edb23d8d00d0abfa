package fakecms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

// Model creates a record type and fails the test on error.
func (s *Store) Model(t testing.TB, apiKey string) models.ItemType {
	t.Helper()
	it, err := s.CreateItemType(context.Background(), models.ItemType{Name: apiKey, APIKey: apiKey})
	require.NoError(t, err)
	return *it
}

// BlockType creates a block type and fails the test on error.
func (s *Store) BlockType(t testing.TB, apiKey string) models.ItemType {
	t.Helper()
	it, err := s.CreateItemType(context.Background(), models.ItemType{Name: apiKey, APIKey: apiKey, ModularBlock: true})
	require.NoError(t, err)
	return *it
}

// Field creates a field and fails the test on error. Label defaults to the
// api key.
func (s *Store) Field(t testing.TB, itemTypeID string, f models.Field) models.Field {
	t.Helper()
	if f.Label == "" {
		f.Label = f.APIKey
	}
	created, err := s.CreateField(context.Background(), itemTypeID, f)
	require.NoError(t, err)
	return *created
}

// Container creates a block container field of fieldType accepting the
// given block types.
func (s *Store) Container(t testing.TB, itemTypeID, apiKey string, fieldType models.FieldType, localized bool, blockTypeIDs ...string) models.Field {
	t.Helper()
	validators := models.Validators{}.WithItemTypes(fieldType.BlocksValidator(), blockTypeIDs)
	if fieldType == models.FieldTypeStructuredText {
		validators = validators.WithItemTypes(models.ValidatorStructuredTextLinks, nil)
	}
	return s.Field(t, itemTypeID, models.Field{
		APIKey:     apiKey,
		FieldType:  fieldType,
		Localized:  localized,
		Validators: validators,
	})
}

// Record creates a record and fails the test on error.
func (s *Store) Record(t testing.TB, itemTypeID string, attributes map[string]any) models.Item {
	t.Helper()
	item, err := s.CreateItem(context.Background(), models.Item{ItemType: itemTypeID, Attributes: attributes})
	require.NoError(t, err)
	return *item
}

// FieldByKey returns a copy of the field of an item type with the api key.
func (s *Store) FieldByKey(itemTypeID, apiKey string) (models.Field, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.fieldByKey(itemTypeID, apiKey)
	if f == nil {
		return models.Field{}, false
	}
	out := *f
	out.Validators = f.Validators.Clone()
	return out, true
}

// TypeByKey returns a copy of the item type with the api key.
func (s *Store) TypeByKey(apiKey string) (models.ItemType, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.typeByKey(apiKey)
	if it == nil {
		return models.ItemType{}, false
	}
	return s.itemTypeCopy(it.ID), true
}

// BlockCount returns the number of registered blocks of a block type,
// including orphans.
func (s *Store) BlockCount(itemTypeID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.blocks {
		if b.ItemType == itemTypeID {
			n++
		}
	}
	return n
}
