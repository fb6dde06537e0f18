package driving

import (
	"context"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// InventoryService synchronizes and adjusts stock
type InventoryService interface {
	// SyncInventory pulls levels from provider and reconciles existing SKUs
	SyncInventory(ctx context.Context, provider string, opts domain.SyncOptions) (*domain.SyncResult, error)

	// AdjustInventory applies a manual stock change
	AdjustInventory(ctx context.Context, req domain.AdjustInventoryRequest, actor string) (*domain.InventoryItem, error)

	// GetInventory returns provider levels, served from cache when present
	GetInventory(ctx context.Context, provider string) (*domain.InventoryView, error)

	// ListItems returns stored inventory records for a provider
	ListItems(ctx context.Context, provider string) ([]*domain.InventoryItem, error)

	// CreateProduct pushes a product to provider and records it locally
	CreateProduct(ctx context.Context, provider string, data map[string]any, actor string) (*domain.Product, error)
}
