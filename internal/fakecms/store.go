// Package fakecms provides a fake content repository for testing purposes.
// Store is an in-memory implementation of connection.Connection that keeps
// blocks in a registry the way the real service does: block containers
// store block ids, nested reads expand them, writes accept block objects
// (new without id, updated with id) and plain ids.
//
// Store enforces the validators the migration engine has to respect: a
// record write referencing a block or record type its field does not allow
// is rejected, and so is a validator change that existing data violates.
//
// Server exposes a Store over HTTP for testing connection.HTTPConnection.
package fakecms

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/connection"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

var _ connection.Connection = (*Store)(nil)

// Error is returned by Store operations. Server maps Status to the HTTP
// response status.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == constants.ErrNotFound && e.Status == http.StatusNotFound
}

func notFound(what, id string) *Error {
	return &Error{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: fmt.Sprintf("%s %q not found", what, id)}
}

func invalid(code, format string, args ...any) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Store is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	locales   models.Locales
	itemTypes map[string]*models.ItemType
	typeOrder []string
	fields    map[string]*models.Field
	items     map[string]*models.Item
	itemOrder []string
	blocks    map[string]*models.Block

	failUpdates map[string]error
	failCreates int

	creates int
	updates int
}

// New creates an empty store with the given project locales. The first
// locale is the default one.
func New(locales ...string) *Store {
	if len(locales) == 0 {
		locales = []string{"en"}
	}
	return &Store{
		locales:     models.Locales(locales),
		itemTypes:   map[string]*models.ItemType{},
		fields:      map[string]*models.Field{},
		items:       map[string]*models.Item{},
		blocks:      map[string]*models.Block{},
		failUpdates: map[string]error{},
	}
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:22]
}

// FailUpdate makes every update of the record id fail with err.
func (s *Store) FailUpdate(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdates[id] = err
}

// FailCreates makes the next n record creations fail.
func (s *Store) FailCreates(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreates = n
}

// Stats returns the number of successful record creations and updates.
func (s *Store) Stats() (creates, updates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates, s.updates
}

func (s *Store) ListLocales(_ context.Context) (models.Locales, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.locales), nil
}

func (s *Store) ListItemTypes(_ context.Context) ([]models.ItemType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ItemType, 0, len(s.typeOrder))
	for _, id := range s.typeOrder {
		out = append(out, s.itemTypeCopy(id))
	}
	return out, nil
}

func (s *Store) itemTypeCopy(id string) models.ItemType {
	it := *s.itemTypes[id]
	it.Fields = s.fieldIDs(id)
	return it
}

func (s *Store) CreateItemType(_ context.Context, itemType models.ItemType) (*models.ItemType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if itemType.APIKey == "" || itemType.Name == "" {
		return nil, invalid("INVALID_FORMAT", "name and api_key are required")
	}
	if s.typeByKey(itemType.APIKey) != nil {
		return nil, invalid("VALIDATION_UNIQUE", "api_key %q is already taken", itemType.APIKey)
	}
	itemType.ID = newID()
	itemType.TitleField = ""
	itemType.Fields = nil
	s.itemTypes[itemType.ID] = &itemType
	s.typeOrder = append(s.typeOrder, itemType.ID)
	out := s.itemTypeCopy(itemType.ID)
	return &out, nil
}

func (s *Store) UpdateItemType(_ context.Context, itemType models.ItemType) (*models.ItemType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.itemTypes[itemType.ID]
	if !ok {
		return nil, notFound("item type", itemType.ID)
	}
	if itemType.APIKey != "" && itemType.APIKey != current.APIKey {
		if s.typeByKey(itemType.APIKey) != nil {
			return nil, invalid("VALIDATION_UNIQUE", "api_key %q is already taken", itemType.APIKey)
		}
		current.APIKey = itemType.APIKey
	}
	if itemType.Name != "" {
		current.Name = itemType.Name
	}
	if itemType.TitleField != "" {
		f, ok := s.fields[itemType.TitleField]
		if !ok || f.ItemType != current.ID {
			return nil, invalid("INVALID_FIELD", "title field %q does not belong to %q", itemType.TitleField, current.APIKey)
		}
	}
	current.TitleField = itemType.TitleField
	out := s.itemTypeCopy(current.ID)
	return &out, nil
}

func (s *Store) DestroyItemType(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.itemTypes[id]; !ok {
		return notFound("item type", id)
	}
	for _, f := range s.fields {
		for name := range f.Validators {
			if f.Validators.Allows(name, id) {
				return invalid("ITEM_TYPE_REFERENCED", "item type is referenced by field %q", f.APIKey)
			}
		}
	}
	for _, item := range s.items {
		if item.ItemType == id {
			return invalid("ITEM_TYPE_HAS_RECORDS", "item type still has records")
		}
	}
	for fid, f := range s.fields {
		if f.ItemType == id {
			delete(s.fields, fid)
		}
	}
	delete(s.itemTypes, id)
	s.typeOrder = slices.DeleteFunc(s.typeOrder, func(tid string) bool { return tid == id })
	return nil
}

func (s *Store) ListFields(_ context.Context, itemTypeID string) ([]models.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.itemTypes[itemTypeID]; !ok {
		return nil, notFound("item type", itemTypeID)
	}
	var out []models.Field
	for _, id := range s.fieldIDs(itemTypeID) {
		f := *s.fields[id]
		f.Validators = f.Validators.Clone()
		out = append(out, f)
	}
	return out, nil
}

// fieldIDs returns the fields of an item type ordered by position.
func (s *Store) fieldIDs(itemTypeID string) []string {
	var fields []*models.Field
	for _, f := range s.fields {
		if f.ItemType == itemTypeID {
			fields = append(fields, f)
		}
	}
	sort.Slice(fields, func(i, j int) bool {
		if fields[i].Position != fields[j].Position {
			return fields[i].Position < fields[j].Position
		}
		return fields[i].APIKey < fields[j].APIKey
	})
	ids := make([]string, 0, len(fields))
	for _, f := range fields {
		ids = append(ids, f.ID)
	}
	return ids
}

func (s *Store) fieldByKey(itemTypeID, apiKey string) *models.Field {
	for _, f := range s.fields {
		if f.ItemType == itemTypeID && f.APIKey == apiKey {
			return f
		}
	}
	return nil
}

func (s *Store) typeByKey(apiKey string) *models.ItemType {
	for _, it := range s.itemTypes {
		if strings.EqualFold(it.APIKey, apiKey) {
			return it
		}
	}
	return nil
}

func (s *Store) CreateField(_ context.Context, itemTypeID string, field models.Field) (*models.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.itemTypes[itemTypeID]; !ok {
		return nil, notFound("item type", itemTypeID)
	}
	if field.APIKey == "" || field.FieldType == "" {
		return nil, invalid("INVALID_FORMAT", "api_key and field_type are required")
	}
	if s.fieldByKey(itemTypeID, field.APIKey) != nil {
		return nil, invalid("VALIDATION_UNIQUE", "field api_key %q is already taken", field.APIKey)
	}
	if err := s.checkValidatorTargets(field); err != nil {
		return nil, err
	}
	if titleID := field.Validators.TitleFieldID(); titleID != "" {
		if f, ok := s.fields[titleID]; !ok || f.ItemType != itemTypeID {
			return nil, invalid("INVALID_FIELD", "slug title field %q does not exist", titleID)
		}
	}
	if field.Localized && field.DefaultValue != nil {
		if _, ok := field.DefaultValue.(map[string]any); !ok {
			return nil, invalid("INVALID_FIELD", "default value of a localized field must be a per-locale hash")
		}
	}

	field.ID = newID()
	field.ItemType = itemTypeID
	if field.Validators == nil {
		field.Validators = models.Validators{}
	}
	field.Validators = field.Validators.Clone()
	if field.Position == 0 {
		field.Position = len(s.fieldIDs(itemTypeID)) + 1
	}
	s.fields[field.ID] = &field
	out := field
	return &out, nil
}

func (s *Store) UpdateField(_ context.Context, field models.Field) (*models.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.fields[field.ID]
	if !ok {
		return nil, notFound("field", field.ID)
	}
	if field.FieldType != "" && field.FieldType != current.FieldType {
		return nil, invalid("INVALID_FIELD", "field_type cannot change from %s to %s", current.FieldType, field.FieldType)
	}
	if field.Localized != current.Localized {
		return nil, invalid("INVALID_FIELD", "localized cannot change on field %q", current.APIKey)
	}
	if field.APIKey != "" && field.APIKey != current.APIKey {
		if s.fieldByKey(current.ItemType, field.APIKey) != nil {
			return nil, invalid("VALIDATION_UNIQUE", "field api_key %q is already taken", field.APIKey)
		}
	}

	next := *current
	if field.Validators != nil {
		next.Validators = field.Validators.Clone()
	}
	if err := s.checkValidatorTargets(next); err != nil {
		return nil, err
	}
	if err := s.checkDataAgainst(next); err != nil {
		return nil, err
	}

	if field.APIKey != "" && field.APIKey != current.APIKey {
		s.renameAttribute(current.ItemType, current.APIKey, field.APIKey)
		next.APIKey = field.APIKey
	}
	if field.Label != "" {
		next.Label = field.Label
	}
	if field.Position != 0 {
		next.Position = field.Position
	}
	if field.Appearance != nil {
		next.Appearance = field.Appearance
	}
	next.Hint = field.Hint
	*current = next
	out := next
	return &out, nil
}

func (s *Store) DestroyField(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fields[id]
	if !ok {
		return notFound("field", id)
	}
	for _, other := range s.fields {
		if other.Validators.TitleFieldID() == id {
			return invalid("FIELD_REFERENCED", "field is referenced by %q", other.APIKey)
		}
	}
	if it := s.itemTypes[f.ItemType]; it.TitleField == id {
		it.TitleField = ""
	}
	s.eachAttributes(f.ItemType, func(attrs map[string]any) { delete(attrs, f.APIKey) })
	delete(s.fields, id)
	return nil
}

// checkValidatorTargets rejects validators listing unknown item types, or
// block types in links validators and record types in blocks validators.
func (s *Store) checkValidatorTargets(f models.Field) error {
	if name := f.FieldType.BlocksValidator(); name != "" {
		for _, id := range f.Validators.ItemTypes(name) {
			it, ok := s.itemTypes[id]
			if !ok || !it.ModularBlock {
				return invalid("INVALID_FIELD", "%s lists %q which is not a block", name, id)
			}
		}
	}
	if name := f.FieldType.LinksValidator(); name != "" {
		for _, id := range f.Validators.ItemTypes(name) {
			it, ok := s.itemTypes[id]
			if !ok || it.ModularBlock {
				return invalid("INVALID_FIELD", "%s lists %q which is not a model", name, id)
			}
		}
	}
	return nil
}

// eachAttributes calls fn with the stored attributes of every record or
// block of the item type.
func (s *Store) eachAttributes(itemTypeID string, fn func(map[string]any)) {
	for _, item := range s.items {
		if item.ItemType == itemTypeID {
			fn(item.Attributes)
		}
	}
	for _, b := range s.blocks {
		if b.ItemType == itemTypeID {
			fn(b.Attributes)
		}
	}
}

func (s *Store) renameAttribute(itemTypeID, from, to string) {
	s.eachAttributes(itemTypeID, func(attrs map[string]any) {
		if v, ok := attrs[from]; ok {
			attrs[to] = v
			delete(attrs, from)
		}
	})
}

// checkDataAgainst verifies that existing stored values of f satisfy its
// (possibly changed) validators.
func (s *Store) checkDataAgainst(f models.Field) error {
	var failure error
	s.eachAttributes(f.ItemType, func(attrs map[string]any) {
		if failure != nil {
			return
		}
		v, ok := attrs[f.APIKey]
		if !ok {
			return
		}
		for _, value := range s.perLocale(f, v) {
			if err := s.checkStored(f, value); err != nil {
				failure = err
				return
			}
		}
	})
	return failure
}

func (s *Store) perLocale(f models.Field, v any) []any {
	if !f.Localized {
		return []any{v}
	}
	m, _ := v.(map[string]any)
	out := make([]any, 0, len(m))
	for _, locale := range s.locales.Present(m) {
		out = append(out, m[locale])
	}
	return out
}
