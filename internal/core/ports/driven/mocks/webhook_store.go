package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

var (
	_ driven.WebhookSubscriptionStore = (*MockWebhookStore)(nil)
	_ driven.WebhookSender            = (*MockWebhookSender)(nil)
)

// MockWebhookStore is an in-memory WebhookSubscriptionStore
type MockWebhookStore struct {
	mu   sync.RWMutex
	subs map[string]domain.WebhookSubscription
}

// NewMockWebhookStore creates a new MockWebhookStore
func NewMockWebhookStore() *MockWebhookStore {
	return &MockWebhookStore{subs: make(map[string]domain.WebhookSubscription)}
}

func (m *MockWebhookStore) Save(ctx context.Context, sub *domain.WebhookSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = *sub
	return nil
}

func (m *MockWebhookStore) Get(ctx context.Context, id string) (*domain.WebhookSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sub, nil
}

func (m *MockWebhookStore) Delete(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok || sub.UserID != userID {
		return domain.ErrNotFound
	}
	delete(m.subs, id)
	return nil
}

func (m *MockWebhookStore) ListByUser(ctx context.Context, userID string) ([]*domain.WebhookSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.WebhookSubscription
	for _, sub := range m.subs {
		if sub.UserID == userID {
			sub := sub
			result = append(result, &sub)
		}
	}
	return result, nil
}

func (m *MockWebhookStore) ListActiveForEvent(ctx context.Context, userID, event string) ([]*domain.WebhookSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.WebhookSubscription
	for _, sub := range m.subs {
		if sub.UserID == userID && sub.Handles(event) {
			sub := sub
			result = append(result, &sub)
		}
	}
	return result, nil
}

func (m *MockWebhookStore) MarkTriggered(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return domain.ErrNotFound
	}
	sub.LastTriggered = &at
	sub.LastError = ""
	m.subs[id] = sub
	return nil
}

func (m *MockWebhookStore) MarkFailed(ctx context.Context, id, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return domain.ErrNotFound
	}
	sub.LastError = lastError
	m.subs[id] = sub
	return nil
}

// SentWebhook is one delivery captured by MockWebhookSender
type SentWebhook struct {
	URL     string
	Secret  string
	Payload domain.WebhookPayload
}

// MockWebhookSender records deliveries. SendFn overrides the result per URL.
type MockWebhookSender struct {
	mu   sync.Mutex
	sent []SentWebhook

	SendFn func(url string) error
}

// NewMockWebhookSender creates a new MockWebhookSender
func NewMockWebhookSender() *MockWebhookSender {
	return &MockWebhookSender{}
}

func (m *MockWebhookSender) Send(ctx context.Context, url, secret string, payload domain.WebhookPayload) error {
	m.mu.Lock()
	m.sent = append(m.sent, SentWebhook{URL: url, Secret: secret, Payload: payload})
	m.mu.Unlock()
	if m.SendFn != nil {
		return m.SendFn(url)
	}
	return nil
}

// Sent returns a copy of all captured deliveries
func (m *MockWebhookSender) Sent() []SentWebhook {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentWebhook(nil), m.sent...)
}

// SentEvents returns the event names delivered so far
func (m *MockWebhookSender) SentEvents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]string, 0, len(m.sent))
	for _, s := range m.sent {
		events = append(events, s.Payload.Event)
	}
	return events
}
