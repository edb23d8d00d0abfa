package fakecms

import (
	"context"
	"maps"
	"net/http"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/connection"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

func (s *Store) EachItem(ctx context.Context, q connection.ItemQuery, fn func(models.Item) error) error {
	s.mu.Lock()
	var snapshot []models.Item
	for _, id := range s.itemOrder {
		item := s.items[id]
		if q.TypeID != "" && item.ItemType != q.TypeID {
			continue
		}
		snapshot = append(snapshot, s.expandItem(item, q.Nested))
	}
	s.mu.Unlock()

	for _, item := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

// Item returns a nested read of one record.
func (s *Store) Item(id string) (models.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return models.Item{}, false
	}
	return s.expandItem(item, true), true
}

// ItemCount returns the number of records of an item type.
func (s *Store) ItemCount(itemTypeID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, item := range s.items {
		if item.ItemType == itemTypeID {
			n++
		}
	}
	return n
}

func (s *Store) CreateItem(_ context.Context, item models.Item) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failCreates > 0 {
		s.failCreates--
		return nil, &Error{Status: http.StatusInternalServerError, Code: "INJECTED", Message: "injected creation failure"}
	}
	it, ok := s.itemTypes[item.ItemType]
	if !ok {
		return nil, notFound("item type", item.ItemType)
	}
	if it.ModularBlock {
		return nil, invalid("INVALID_ITEM_TYPE", "records cannot be created for block %q", it.APIKey)
	}

	w := s.writer()
	attrs, err := w.normalizeAttrs(item.ItemType, item.Attributes)
	if err != nil {
		return nil, err
	}
	w.commit()

	stored := &models.Item{ID: newID(), ItemType: item.ItemType, Attributes: attrs}
	s.items[stored.ID] = stored
	s.itemOrder = append(s.itemOrder, stored.ID)
	s.creates++
	out := s.expandItem(stored, false)
	return &out, nil
}

func (s *Store) UpdateItem(_ context.Context, id string, attributes map[string]any) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failUpdates[id]; ok {
		return nil, err
	}
	current, ok := s.items[id]
	if !ok {
		return nil, notFound("record", id)
	}

	w := s.writer()
	attrs, err := w.normalizeAttrs(current.ItemType, attributes)
	if err != nil {
		return nil, err
	}
	w.commit()

	merged := maps.Clone(current.Attributes)
	for k, v := range attrs {
		merged[k] = v
	}
	current.Attributes = merged
	s.updates++
	out := s.expandItem(current, false)
	return &out, nil
}

// writer stages block registry changes of one write; nothing is visible
// until commit.
type writer struct {
	s      *Store
	blocks map[string]*models.Block
}

func (s *Store) writer() *writer {
	return &writer{s: s, blocks: maps.Clone(s.blocks)}
}

func (w *writer) commit() {
	w.s.blocks = w.blocks
}

func (w *writer) normalizeAttrs(itemTypeID string, attrs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(attrs))
	for key, v := range attrs {
		f := w.s.fieldByKey(itemTypeID, key)
		if f == nil {
			return nil, invalid("UNKNOWN_FIELD", "field %q does not exist on %q", key, w.s.itemTypes[itemTypeID].APIKey)
		}
		if !f.Localized {
			nv, err := w.normalizeValue(*f, v)
			if err != nil {
				return nil, err
			}
			out[key] = nv
			continue
		}

		if v == nil {
			out[key] = map[string]any{}
			continue
		}
		perLocale, ok := v.(map[string]any)
		if !ok {
			return nil, invalid("INVALID_LOCALES", "localized field %q requires a per-locale hash", key)
		}
		normalized := make(map[string]any, len(perLocale))
		for locale, lv := range perLocale {
			if !w.s.locales.Contains(locale) {
				return nil, invalid("INVALID_LOCALES", "unknown locale %q for field %q", locale, key)
			}
			nv, err := w.normalizeValue(*f, lv)
			if err != nil {
				return nil, err
			}
			normalized[locale] = nv
		}
		out[key] = normalized
	}
	return out, nil
}

func (w *writer) normalizeValue(f models.Field, v any) (any, error) {
	var stored any
	switch f.FieldType {
	case models.FieldTypeRichText:
		list, _ := asList(v)
		ids := make([]any, 0, len(list))
		for _, el := range list {
			id, err := w.register(el)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		stored = ids
	case models.FieldTypeSingleBlock:
		if v == nil {
			return nil, nil
		}
		id, err := w.register(v)
		if err != nil {
			return nil, err
		}
		stored = id
	case models.FieldTypeStructuredText:
		if v == nil {
			return nil, nil
		}
		doc, err := w.normalizeDast(v)
		if err != nil {
			return nil, err
		}
		stored = doc
	case models.FieldTypeLinks:
		list, _ := asList(v)
		ids := make([]any, 0, len(list))
		for _, el := range list {
			ids = append(ids, models.RefID(el))
		}
		stored = ids
	case models.FieldTypeLink:
		if v == nil {
			return nil, nil
		}
		stored = models.RefID(v)
	default:
		return deepCopy(v), nil
	}
	if err := w.s.checkStoredIn(w.blocks, f, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// register stores a block object and returns its id. Plain ids and {id}
// objects must reference an existing block.
func (w *writer) register(v any) (string, error) {
	b, ok := models.BlockFromValue(v)
	if !ok {
		id := models.RefID(v)
		if _, exists := w.blocks[id]; !exists {
			return "", notFound("block", id)
		}
		return id, nil
	}

	it, ok := w.s.itemTypes[b.ItemType]
	if !ok || !it.ModularBlock {
		return "", invalid("INVALID_FIELD", "%q is not a block type", b.ItemType)
	}
	attrs, err := w.normalizeAttrs(b.ItemType, b.Attributes)
	if err != nil {
		return "", err
	}

	if b.ID == "" {
		stored := &models.Block{ID: newID(), ItemType: b.ItemType, Attributes: attrs}
		w.blocks[stored.ID] = stored
		return stored.ID, nil
	}

	existing, ok := w.blocks[b.ID]
	if !ok {
		return "", notFound("block", b.ID)
	}
	if existing.ItemType != b.ItemType {
		return "", invalid("INVALID_FIELD", "block %q cannot change type", b.ID)
	}
	merged := maps.Clone(existing.Attributes)
	for k, val := range attrs {
		merged[k] = val
	}
	w.blocks[b.ID] = &models.Block{ID: b.ID, ItemType: b.ItemType, Attributes: merged}
	return b.ID, nil
}

func (w *writer) normalizeDast(v any) (map[string]any, error) {
	value, ok := v.(map[string]any)
	if !ok {
		return nil, invalid("INVALID_FORMAT", "structured text must be an object")
	}
	doc, ok := value["document"].(map[string]any)
	if !ok || doc["type"] != "root" {
		return nil, invalid("INVALID_FORMAT", "structured text requires a root document")
	}

	inflated := map[string]any{}
	if list, ok := asList(value["blocks"]); ok {
		for _, el := range list {
			if b, ok := models.BlockFromValue(el); ok && b.ID != "" {
				inflated[b.ID] = el
			}
		}
	}

	normalized, err := w.normalizeNode(doc, inflated)
	if err != nil {
		return nil, err
	}
	return map[string]any{"schema": "dast", "document": normalized}, nil
}

func (w *writer) normalizeNode(node map[string]any, inflated map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(node))
	for k, v := range node {
		out[k] = v
	}

	switch node["type"] {
	case "block", "inlineBlock":
		item := node["item"]
		if id, ok := item.(string); ok {
			if obj, ok := inflated[id]; ok {
				item = obj
			}
		}
		id, err := w.register(item)
		if err != nil {
			return nil, err
		}
		out["item"] = id
	case "inlineItem", "itemLink":
		id := models.RefID(node["item"])
		if _, ok := w.s.items[id]; !ok {
			return nil, notFound("linked record", id)
		}
		out["item"] = id
	}

	if children, ok := node["children"].([]any); ok {
		next := make([]any, 0, len(children))
		for _, child := range children {
			childNode, ok := child.(map[string]any)
			if !ok {
				return nil, invalid("INVALID_FORMAT", "document node must be an object")
			}
			normalized, err := w.normalizeNode(childNode, inflated)
			if err != nil {
				return nil, err
			}
			next = append(next, normalized)
		}
		out["children"] = next
	}
	return out, nil
}

func (s *Store) checkStored(f models.Field, stored any) error {
	return s.checkStoredIn(s.blocks, f, stored)
}

// checkStoredIn validates a stored (collapsed) value against f's validators.
func (s *Store) checkStoredIn(blocks map[string]*models.Block, f models.Field, stored any) error {
	blockAllowed := func(id string) error {
		b, ok := blocks[id]
		if !ok {
			return notFound("block", id)
		}
		if !f.Validators.Allows(f.FieldType.BlocksValidator(), b.ItemType) {
			return invalid("INVALID_FIELD", "field %q does not accept blocks of type %q", f.APIKey, b.ItemType)
		}
		return nil
	}
	recordAllowed := func(id string) error {
		item, ok := s.items[id]
		if !ok {
			return notFound("linked record", id)
		}
		if !f.Validators.Allows(f.FieldType.LinksValidator(), item.ItemType) {
			return invalid("INVALID_FIELD", "field %q does not accept records of type %q", f.APIKey, item.ItemType)
		}
		return nil
	}

	switch f.FieldType {
	case models.FieldTypeRichText, models.FieldTypeLinks:
		check := blockAllowed
		if f.FieldType == models.FieldTypeLinks {
			check = recordAllowed
		}
		list, _ := asList(stored)
		for _, el := range list {
			if err := check(models.RefID(el)); err != nil {
				return err
			}
		}
	case models.FieldTypeSingleBlock:
		if id := models.RefID(stored); id != "" {
			return blockAllowed(id)
		}
	case models.FieldTypeLink:
		if id := models.RefID(stored); id != "" {
			return recordAllowed(id)
		}
	case models.FieldTypeStructuredText:
		value, ok := stored.(map[string]any)
		if !ok {
			return nil
		}
		doc, _ := value["document"].(map[string]any)
		var failure error
		walkNodes(doc, func(node map[string]any) {
			if failure != nil {
				return
			}
			switch node["type"] {
			case "block", "inlineBlock":
				failure = blockAllowed(models.RefID(node["item"]))
			case "inlineItem", "itemLink":
				failure = recordAllowed(models.RefID(node["item"]))
			}
		})
		return failure
	}
	return nil
}

func walkNodes(node map[string]any, fn func(map[string]any)) {
	if node == nil {
		return
	}
	fn(node)
	children, _ := node["children"].([]any)
	for _, child := range children {
		if childNode, ok := child.(map[string]any); ok {
			walkNodes(childNode, fn)
		}
	}
}

// expandItem renders a stored record the way the API returns it: every
// field present, localized values carrying every project locale.
func (s *Store) expandItem(item *models.Item, nested bool) models.Item {
	return models.Item{
		ID:         item.ID,
		ItemType:   item.ItemType,
		Attributes: s.expandAttrs(item.ItemType, item.Attributes, nested),
	}
}

func (s *Store) expandAttrs(itemTypeID string, stored map[string]any, nested bool) map[string]any {
	out := map[string]any{}
	for _, fid := range s.fieldIDs(itemTypeID) {
		f := s.fields[fid]
		v := stored[f.APIKey]
		if !f.Localized {
			out[f.APIKey] = s.expandValue(*f, v, nested)
			continue
		}
		perLocale, _ := v.(map[string]any)
		expanded := make(map[string]any, len(s.locales))
		for _, locale := range s.locales {
			expanded[locale] = s.expandValue(*f, perLocale[locale], nested)
		}
		out[f.APIKey] = expanded
	}
	return out
}

func (s *Store) expandValue(f models.Field, v any, nested bool) any {
	switch f.FieldType {
	case models.FieldTypeRichText:
		list, _ := asList(v)
		out := make([]any, 0, len(list))
		for _, el := range list {
			out = append(out, s.expandBlockRef(models.RefID(el), nested))
		}
		return out
	case models.FieldTypeSingleBlock:
		id := models.RefID(v)
		if id == "" {
			return nil
		}
		return s.expandBlockRef(id, nested)
	case models.FieldTypeStructuredText:
		value, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		doc := deepCopy(value["document"]).(map[string]any)
		blocks := []any{}
		links := []any{}
		seenLinks := map[string]bool{}
		walkNodes(doc, func(node map[string]any) {
			id := models.RefID(node["item"])
			switch node["type"] {
			case "block", "inlineBlock":
				blocks = append(blocks, s.expandBlockRef(id, nested))
			case "inlineItem", "itemLink":
				if seenLinks[id] {
					return
				}
				seenLinks[id] = true
				if nested {
					if item, ok := s.items[id]; ok {
						links = append(links, map[string]any{
							"id":         item.ID,
							"item_type":  item.ItemType,
							"attributes": s.expandAttrs(item.ItemType, item.Attributes, false),
						})
						return
					}
				}
				links = append(links, id)
			}
		})
		return map[string]any{"schema": "dast", "document": doc, "blocks": blocks, "links": links}
	case models.FieldTypeLinks:
		list, _ := asList(v)
		out := make([]any, 0, len(list))
		for _, el := range list {
			out = append(out, models.RefID(el))
		}
		return out
	case models.FieldTypeLink:
		if id := models.RefID(v); id != "" {
			return id
		}
		return nil
	default:
		return deepCopy(v)
	}
}

func (s *Store) expandBlockRef(id string, nested bool) any {
	b, ok := s.blocks[id]
	if !nested || !ok {
		return id
	}
	return models.Block{
		ID:         b.ID,
		ItemType:   b.ItemType,
		Attributes: s.expandAttrs(b.ItemType, b.Attributes, true),
	}.Value()
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(list))
		for i, m := range list {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, el := range val {
			out[k] = deepCopy(el)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, el := range val {
			out[i] = deepCopy(el)
		}
		return out
	default:
		return v
	}
}
