package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// MockDistributedLock is an in-memory lease table keyed by name.
// AcquireFn overrides Acquire when set.
type MockDistributedLock struct {
	mu       sync.Mutex
	leases   map[string]time.Time
	acquired []string
	extends  int

	AcquireFn func(name string, ttl time.Duration) (bool, error)
}

// NewMockDistributedLock creates a new mock distributed lock.
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{leases: make(map[string]time.Time)}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if m.AcquireFn != nil {
		return m.AcquireFn(name, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if expiry, held := m.leases[name]; held && time.Now().Before(expiry) {
		return false, nil
	}
	m.leases[name] = time.Now().Add(ttl)
	m.acquired = append(m.acquired, name)
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leases, name)
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, held := m.leases[name]
	if !held || time.Now().After(expiry) {
		return fmt.Errorf("lease %s not held", name)
	}
	m.leases[name] = time.Now().Add(ttl)
	m.extends++
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	return nil
}

// IsHeld reports whether a lease is currently held
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, held := m.leases[name]
	return held && time.Now().Before(expiry)
}

// Hold marks a lease as owned by another instance
func (m *MockDistributedLock) Hold(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases[name] = time.Now().Add(ttl)
}

// Acquired lists lease names acquired so far, in order
func (m *MockDistributedLock) Acquired() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acquired...)
}

// Extends returns how many times a lease was extended
func (m *MockDistributedLock) Extends() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extends
}
