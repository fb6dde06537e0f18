package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

var (
	_ driven.ScheduleStore  = (*MockScheduleStore)(nil)
	_ driven.ExecutionStore = (*MockExecutionStore)(nil)
)

// MockScheduleStore is an in-memory ScheduleStore. Stored values are copies.
type MockScheduleStore struct {
	mu        sync.RWMutex
	schedules map[string]domain.Schedule

	SaveErr error
}

// NewMockScheduleStore creates a new MockScheduleStore
func NewMockScheduleStore() *MockScheduleStore {
	return &MockScheduleStore{schedules: make(map[string]domain.Schedule)}
}

func (m *MockScheduleStore) Save(ctx context.Context, s *domain.Schedule) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.ID] = *s
	return nil
}

func (m *MockScheduleStore) Get(ctx context.Context, id string) (*domain.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *MockScheduleStore) List(ctx context.Context, filter domain.ScheduleFilter) ([]*domain.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Schedule
	for _, s := range m.schedules {
		if filter.Provider != "" && s.Provider != filter.Provider {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		s := s
		result = append(result, &s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MockScheduleStore) ListDue(ctx context.Context, now time.Time) ([]*domain.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Schedule
	for _, s := range m.schedules {
		if s.IsDue(now) {
			s := s
			result = append(result, &s)
		}
	}
	return result, nil
}

func (m *MockScheduleStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.schedules, id)
	return nil
}

// MockExecutionStore is an in-memory ExecutionStore
type MockExecutionStore struct {
	mu    sync.RWMutex
	execs map[string]domain.Execution
}

// NewMockExecutionStore creates a new MockExecutionStore
func NewMockExecutionStore() *MockExecutionStore {
	return &MockExecutionStore{execs: make(map[string]domain.Execution)}
}

func (m *MockExecutionStore) Save(ctx context.Context, e *domain.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs[e.ID] = *e
	return nil
}

func (m *MockExecutionStore) Get(ctx context.Context, id string) (*domain.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.execs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}

func (m *MockExecutionStore) ListBySchedule(ctx context.Context, scheduleID string, limit int) ([]*domain.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Execution
	for _, e := range m.execs {
		if e.ScheduleID == scheduleID {
			e := e
			result = append(result, &e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.After(result[j].StartTime) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockExecutionStore) LatestFailed(ctx context.Context, scheduleID string) (*domain.Execution, error) {
	execs, _ := m.ListBySchedule(ctx, scheduleID, 0)
	for _, e := range execs {
		if e.Status == domain.ExecutionStatusFailed {
			return e, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockExecutionStore) ListDueRetries(ctx context.Context, now time.Time) ([]*domain.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Execution
	for _, e := range m.execs {
		if e.Status == domain.ExecutionStatusFailed && e.NextRetry != nil && !now.Before(*e.NextRetry) {
			e := e
			result = append(result, &e)
		}
	}
	return result, nil
}

// All returns every stored execution (for test assertions)
func (m *MockExecutionStore) All() []*domain.Execution {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Execution, 0, len(m.execs))
	for _, e := range m.execs {
		e := e
		result = append(result, &e)
	}
	return result
}
