package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

var (
	_ driven.ProviderAdapter  = (*MockProviderAdapter)(nil)
	_ driven.ProviderRegistry = (*MockProviderRegistry)(nil)
)

// MockProviderAdapter returns canned levels and products
type MockProviderAdapter struct {
	mu    sync.Mutex
	calls int

	Cfg             *domain.ProviderConfig
	Levels          []domain.InventoryLevel
	LevelsErr       error
	LevelsHook      func(ctx context.Context) // runs before levels are returned
	CreateProductFn func(data map[string]any) (*domain.ProductResult, error)
}

// NewMockProviderAdapter creates an adapter for a warehouse provider
func NewMockProviderAdapter(name string, levels ...domain.InventoryLevel) *MockProviderAdapter {
	return &MockProviderAdapter{
		Cfg:    &domain.ProviderConfig{Name: name, IntegrationType: domain.IntegrationWarehouse},
		Levels: levels,
	}
}

func (m *MockProviderAdapter) Name() string                   { return m.Cfg.Name }
func (m *MockProviderAdapter) Config() *domain.ProviderConfig { return m.Cfg }

func (m *MockProviderAdapter) GetInventoryLevels(ctx context.Context) ([]domain.InventoryLevel, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.LevelsHook != nil {
		m.LevelsHook(ctx)
	}
	if m.LevelsErr != nil {
		return nil, m.LevelsErr
	}
	return append([]domain.InventoryLevel(nil), m.Levels...), nil
}

func (m *MockProviderAdapter) CreateProduct(ctx context.Context, data map[string]any) (*domain.ProductResult, error) {
	if m.CreateProductFn != nil {
		return m.CreateProductFn(data)
	}
	return &domain.ProductResult{ExternalID: "ext-1", Data: data}, nil
}

// InventoryCalls returns how many times levels were fetched
func (m *MockProviderAdapter) InventoryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockProviderRegistry resolves adapters from a map, ignoring the user
type MockProviderRegistry struct {
	Adapters map[string]*MockProviderAdapter
}

// NewMockProviderRegistry creates a registry holding adapters
func NewMockProviderRegistry(adapters ...*MockProviderAdapter) *MockProviderRegistry {
	r := &MockProviderRegistry{Adapters: make(map[string]*MockProviderAdapter)}
	for _, a := range adapters {
		r.Adapters[a.Name()] = a
	}
	return r
}

func (r *MockProviderRegistry) Adapter(ctx context.Context, provider, userID string) (driven.ProviderAdapter, error) {
	a, ok := r.Adapters[provider]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return a, nil
}

func (r *MockProviderRegistry) Config(provider string) (*domain.ProviderConfig, bool) {
	a, ok := r.Adapters[provider]
	if !ok {
		return nil, false
	}
	return a.Cfg, true
}

func (r *MockProviderRegistry) Providers() []domain.ProviderInfo {
	infos := make([]domain.ProviderInfo, 0, len(r.Adapters))
	for _, a := range r.Adapters {
		infos = append(infos, a.Cfg.Info())
	}
	return infos
}
