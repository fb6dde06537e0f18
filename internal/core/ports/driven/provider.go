package driven

import (
	"context"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// ProviderAdapter talks to one external provider on behalf of one tenant.
type ProviderAdapter interface {
	// Name returns the provider name (e.g. "shipbob")
	Name() string

	// Config returns the static provider configuration
	Config() *domain.ProviderConfig

	// GetInventoryLevels fetches current stock from the provider
	GetInventoryLevels(ctx context.Context) ([]domain.InventoryLevel, error)

	// CreateProduct pushes a product and returns its provider-assigned id.
	// Fails with a MISSING_ID integration error when the provider returns none.
	CreateProduct(ctx context.Context, data map[string]any) (*domain.ProductResult, error)
}

// ProviderRegistry resolves adapters for configured providers.
type ProviderRegistry interface {
	// Adapter returns an adapter for provider bound to userID's connection.
	// Returns domain.ErrProviderNotFound for unknown providers.
	Adapter(ctx context.Context, provider, userID string) (ProviderAdapter, error)

	// Config returns the configuration of a registered provider
	Config(provider string) (*domain.ProviderConfig, bool)

	// Providers lists registered providers
	Providers() []domain.ProviderInfo
}
