package connection

import (
	"context"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

// Connection is the content repository API the migration engine consumes.
// Implementations must be safe for concurrent use; record creation runs in
// parallel batches.
type Connection interface {
	ListLocales(ctx context.Context) (models.Locales, error)

	ListItemTypes(ctx context.Context) ([]models.ItemType, error)
	CreateItemType(ctx context.Context, itemType models.ItemType) (*models.ItemType, error)
	UpdateItemType(ctx context.Context, itemType models.ItemType) (*models.ItemType, error)
	DestroyItemType(ctx context.Context, id string) error

	ListFields(ctx context.Context, itemTypeID string) ([]models.Field, error)
	CreateField(ctx context.Context, itemTypeID string, field models.Field) (*models.Field, error)
	UpdateField(ctx context.Context, field models.Field) (*models.Field, error)
	DestroyField(ctx context.Context, id string) error

	// EachItem calls fn for every record matching q, page by page. Returning
	// an error from fn stops the iteration and is returned as is.
	EachItem(ctx context.Context, q ItemQuery, fn func(models.Item) error) error
	CreateItem(ctx context.Context, item models.Item) (*models.Item, error)
	// UpdateItem replaces the given attributes of a record; attributes not
	// present are left untouched.
	UpdateItem(ctx context.Context, id string, attributes map[string]any) (*models.Item, error)
}

// ItemQuery filters a record listing.
type ItemQuery struct {
	TypeID string
	// Nested inlines block objects instead of block ids.
	Nested   bool
	PageSize int
}
