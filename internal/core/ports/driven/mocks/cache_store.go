package mocks

import (
	"context"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

var _ driven.CacheStore = (*MockCacheStore)(nil)

type cacheEntry struct {
	value  []byte
	expiry time.Time
}

// MockCacheStore is an in-memory CacheStore with expiry.
// Set Err to make every operation fail.
type MockCacheStore struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time

	Err error
}

// NewMockCacheStore creates a new MockCacheStore
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// SetClock overrides the clock used for expiry
func (m *MockCacheStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// live returns the entry if present and unexpired. Caller holds mu.
func (m *MockCacheStore) live(key string) (cacheEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return e, false
	}
	if !e.expiry.IsZero() && !m.now().Before(e.expiry) {
		delete(m.entries, key)
		return e, false
	}
	return e, true
}

func (m *MockCacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	e, ok := m.live(key)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e.value, nil
}

func (m *MockCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	e := cacheEntry{value: value}
	if ttl > 0 {
		e.expiry = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *MockCacheStore) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *MockCacheStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	n := 0
	for k := range m.entries {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *MockCacheStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var keys []string
	for k := range m.entries {
		if _, ok := m.live(k); !ok {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *MockCacheStore) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	e, ok := m.live(key)
	var current int64
	if ok {
		current, _ = strconv.ParseInt(string(e.value), 10, 64)
	} else if ttl > 0 {
		e.expiry = m.now().Add(ttl)
	}
	current += delta
	e.value = []byte(strconv.FormatInt(current, 10))
	m.entries[key] = e
	return current, nil
}

func (m *MockCacheStore) Ping(ctx context.Context) error {
	return m.Err
}

// TTL returns the remaining lifetime of key, or zero when it has none
func (m *MockCacheStore) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok || e.expiry.IsZero() {
		return 0
	}
	return e.expiry.Sub(m.now())
}

// Has reports whether key is present and unexpired
func (m *MockCacheStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok
}
