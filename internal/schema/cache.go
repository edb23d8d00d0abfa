package schema

import (
	"context"
	"fmt"
	"sync"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/connection"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

// Cache memoizes item type and field listings for one analysis run. Create
// a new Cache for every run; Invalidate it after mutating the schema.
type Cache struct {
	conn connection.Connection

	mu        sync.Mutex
	itemTypes []models.ItemType
	fields    map[string][]models.Field
}

func NewCache(conn connection.Connection) *Cache {
	return &Cache{conn: conn, fields: map[string][]models.Field{}}
}

func (c *Cache) ItemTypes(ctx context.Context) ([]models.ItemType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.itemTypes != nil {
		return c.itemTypes, nil
	}
	itemTypes, err := c.conn.ListItemTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list item types: %w", err)
	}
	if itemTypes == nil {
		itemTypes = []models.ItemType{}
	}
	c.itemTypes = itemTypes
	return itemTypes, nil
}

func (c *Cache) ItemType(ctx context.Context, id string) (models.ItemType, error) {
	itemTypes, err := c.ItemTypes(ctx)
	if err != nil {
		return models.ItemType{}, err
	}
	for _, it := range itemTypes {
		if it.ID == id {
			return it, nil
		}
	}
	return models.ItemType{}, fmt.Errorf("%w: %s", constants.ErrTypeNotFound, id)
}

func (c *Cache) Fields(ctx context.Context, itemTypeID string) ([]models.Field, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fields, ok := c.fields[itemTypeID]; ok {
		return fields, nil
	}
	fields, err := c.conn.ListFields(ctx, itemTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields of %s: %w", itemTypeID, err)
	}
	c.fields[itemTypeID] = fields
	return fields, nil
}

func (c *Cache) Field(ctx context.Context, itemTypeID, fieldID string) (models.Field, error) {
	fields, err := c.Fields(ctx, itemTypeID)
	if err != nil {
		return models.Field{}, err
	}
	for _, f := range fields {
		if f.ID == fieldID {
			return f, nil
		}
	}
	return models.Field{}, fmt.Errorf("%w: %s on %s", constants.ErrFieldNotFound, fieldID, itemTypeID)
}

// FieldByKey looks a field up by api key; ok is false when there is none.
func (c *Cache) FieldByKey(ctx context.Context, itemTypeID, apiKey string) (models.Field, bool, error) {
	fields, err := c.Fields(ctx, itemTypeID)
	if err != nil {
		return models.Field{}, false, err
	}
	for _, f := range fields {
		if f.APIKey == apiKey {
			return f, true, nil
		}
	}
	return models.Field{}, false, nil
}

func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.itemTypes = nil
	c.fields = map[string][]models.Field{}
}
