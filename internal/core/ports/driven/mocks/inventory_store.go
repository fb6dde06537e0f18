package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

var (
	_ driven.InventoryStore = (*MockInventoryStore)(nil)
	_ driven.ProductStore   = (*MockProductStore)(nil)
)

// MockInventoryStore is an in-memory InventoryStore with version checks
type MockInventoryStore struct {
	mu    sync.RWMutex
	items map[string]domain.InventoryItem

	// UpdateFn overrides Update when set
	UpdateFn func(item *domain.InventoryItem) error
}

// NewMockInventoryStore creates a new MockInventoryStore
func NewMockInventoryStore() *MockInventoryStore {
	return &MockInventoryStore{items: make(map[string]domain.InventoryItem)}
}

func cloneItem(i domain.InventoryItem) *domain.InventoryItem {
	i.Adjustments = append([]domain.Adjustment(nil), i.Adjustments...)
	return &i
}

func (m *MockInventoryStore) Get(ctx context.Context, sku string) (*domain.InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[sku]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneItem(item), nil
}

func (m *MockInventoryStore) GetMany(ctx context.Context, skus []string) (map[string]*domain.InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]*domain.InventoryItem)
	for _, sku := range skus {
		if item, ok := m.items[sku]; ok {
			result[sku] = cloneItem(item)
		}
	}
	return result, nil
}

func (m *MockInventoryStore) List(ctx context.Context, provider string) ([]*domain.InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.InventoryItem
	for _, item := range m.items {
		if provider == "" || item.Provider == provider {
			result = append(result, cloneItem(item))
		}
	}
	return result, nil
}

func (m *MockInventoryStore) Save(ctx context.Context, item *domain.InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.Version++
	m.items[item.SKU] = *cloneItem(*item)
	return nil
}

func (m *MockInventoryStore) Update(ctx context.Context, item *domain.InventoryItem) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(item)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[item.SKU]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != item.Version {
		return domain.ErrConflict
	}
	item.Version++
	m.items[item.SKU] = *cloneItem(*item)
	return nil
}

// MockProductStore is an in-memory ProductStore
type MockProductStore struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewMockProductStore creates a new MockProductStore
func NewMockProductStore() *MockProductStore {
	return &MockProductStore{products: make(map[string]domain.Product)}
}

func (m *MockProductStore) Upsert(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := p.Provider + "/" + p.ExternalID
	if existing, ok := m.products[key]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	}
	m.products[key] = *p
	return nil
}

func (m *MockProductStore) List(ctx context.Context, provider string) ([]*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Product
	for _, p := range m.products {
		if provider == "" || p.Provider == provider {
			p := p
			result = append(result, &p)
		}
	}
	return result, nil
}
