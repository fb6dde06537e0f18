package mocks

import (
	"sync"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

var _ driven.MetricsRecorder = (*MockMetrics)(nil)

// MockMetrics counts recorded metrics by name
type MockMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMockMetrics creates a new MockMetrics
func NewMockMetrics() *MockMetrics {
	return &MockMetrics{counts: make(map[string]int)}
}

func (m *MockMetrics) inc(name string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name] += n
}

func (m *MockMetrics) ObserveProviderCall(provider string, status int, d time.Duration) {
	m.inc("provider_call", 1)
}

func (m *MockMetrics) RecordSync(provider string, success bool, d time.Duration) {
	if success {
		m.inc("sync_success", 1)
		return
	}
	m.inc("sync_failure", 1)
}

func (m *MockMetrics) AddInventoryUpdates(provider string, n int) { m.inc("inventory_updates", n) }
func (m *MockMetrics) RecordLowStock(provider string)             { m.inc("low_stock", 1) }
func (m *MockMetrics) RecordScheduleRun(outcome string)           { m.inc("schedule_"+outcome, 1) }

func (m *MockMetrics) RecordWebhookDelivery(success bool) {
	if success {
		m.inc("webhook_success", 1)
		return
	}
	m.inc("webhook_failure", 1)
}

func (m *MockMetrics) RecordCache(hit bool) {
	if hit {
		m.inc("cache_hit", 1)
		return
	}
	m.inc("cache_miss", 1)
}

// Count returns the value recorded under name
func (m *MockMetrics) Count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}
