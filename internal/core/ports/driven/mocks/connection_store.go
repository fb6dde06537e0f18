package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

var (
	_ driven.ConnectionStore = (*MockConnectionStore)(nil)
	_ driven.TokenRefresher  = (*MockTokenRefresher)(nil)
)

// MockConnectionStore is an in-memory ConnectionStore
type MockConnectionStore struct {
	mu    sync.RWMutex
	conns map[string]domain.Connection
}

// NewMockConnectionStore creates a new MockConnectionStore
func NewMockConnectionStore() *MockConnectionStore {
	return &MockConnectionStore{conns: make(map[string]domain.Connection)}
}

func (m *MockConnectionStore) Save(ctx context.Context, conn *domain.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[conn.ID] = *conn
	return nil
}

func (m *MockConnectionStore) Get(ctx context.Context, id string) (*domain.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &conn, nil
}

func (m *MockConnectionStore) GetByProvider(ctx context.Context, userID, provider string) (*domain.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conn := range m.conns {
		if conn.UserID == userID && conn.Provider == provider {
			return &conn, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockConnectionStore) List(ctx context.Context, userID string) ([]*domain.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Connection
	for _, conn := range m.conns {
		if conn.UserID == userID {
			conn := conn
			result = append(result, &conn)
		}
	}
	return result, nil
}

func (m *MockConnectionStore) UpdateTokens(ctx context.Context, id string, token *domain.OAuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.conns[id]
	if !ok {
		return domain.ErrNotFound
	}
	conn.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		conn.RefreshToken = token.RefreshToken
	}
	expires := token.ExpiresAt
	conn.TokenExpiresAt = &expires
	m.conns[id] = conn
	return nil
}

func (m *MockConnectionStore) UpdateStatus(ctx context.Context, id string, status domain.ConnectionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.conns[id]
	if !ok {
		return domain.ErrNotFound
	}
	conn.Status = status
	m.conns[id] = conn
	return nil
}

func (m *MockConnectionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, id)
	return nil
}

// MockTokenRefresher counts refresh exchanges
type MockTokenRefresher struct {
	mu    sync.Mutex
	calls int

	RefreshFn func(conn *domain.Connection) (*domain.OAuthToken, error)
}

func (m *MockTokenRefresher) Refresh(ctx context.Context, cfg *domain.ProviderConfig, conn *domain.Connection) (*domain.OAuthToken, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.RefreshFn != nil {
		return m.RefreshFn(conn)
	}
	return nil, domain.ErrTokenInvalid
}

// Calls returns how many refreshes were attempted
func (m *MockTokenRefresher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
