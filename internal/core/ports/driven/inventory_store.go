package driven

import (
	"context"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// InventoryStore persists stock records (PostgreSQL).
// Items are never deleted.
type InventoryStore interface {
	// Get retrieves an item by SKU
	Get(ctx context.Context, sku string) (*domain.InventoryItem, error)

	// GetMany retrieves the items that exist for the given SKUs, keyed by SKU
	GetMany(ctx context.Context, skus []string) (map[string]*domain.InventoryItem, error)

	// List retrieves items for a provider. An empty provider lists all items.
	List(ctx context.Context, provider string) ([]*domain.InventoryItem, error)

	// Save creates an item or overwrites it unconditionally
	Save(ctx context.Context, item *domain.InventoryItem) error

	// Update writes item only if its stored version still equals item.Version.
	// Returns domain.ErrConflict otherwise and bumps item.Version on success.
	Update(ctx context.Context, item *domain.InventoryItem) error
}

// ProductStore persists products created at providers (PostgreSQL)
type ProductStore interface {
	// Upsert inserts or updates by (provider, external_id)
	Upsert(ctx context.Context, product *domain.Product) error
	List(ctx context.Context, provider string) ([]*domain.Product, error)
}
