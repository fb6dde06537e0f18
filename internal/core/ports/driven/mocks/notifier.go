package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

var (
	_ driven.Notifier    = (*MockNotifier)(nil)
	_ driven.Broadcaster = (*MockBroadcaster)(nil)
)

// Notification is one message captured by MockNotifier
type Notification struct {
	Kind    string // email, slack or webhook
	To      []string
	Subject string
	Body    string
	Payload any
}

// MockNotifier captures notifications. Err makes every send fail.
type MockNotifier struct {
	mu   sync.Mutex
	sent []Notification

	Err error
}

// NewMockNotifier creates a new MockNotifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) record(n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return m.Err
}

func (m *MockNotifier) SendEmail(ctx context.Context, to []string, subject, body string) error {
	return m.record(Notification{Kind: "email", To: to, Subject: subject, Body: body})
}

func (m *MockNotifier) SendSlackMessage(ctx context.Context, target domain.SlackTarget, text string) error {
	return m.record(Notification{Kind: "slack", To: []string{target.Channel}, Body: text})
}

func (m *MockNotifier) SendWebhook(ctx context.Context, target domain.WebhookTarget, payload any) error {
	return m.record(Notification{Kind: "webhook", To: []string{target.URL}, Payload: payload})
}

// Sent returns captured notifications of the given kind
func (m *MockNotifier) Sent(kind string) []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Notification
	for _, n := range m.sent {
		if n.Kind == kind {
			result = append(result, n)
		}
	}
	return result
}

// Broadcast is one event captured by MockBroadcaster
type Broadcast struct {
	Channel string
	Event   string
	Payload any
}

// MockBroadcaster captures broadcast events
type MockBroadcaster struct {
	mu     sync.Mutex
	events []Broadcast

	Err error
}

// NewMockBroadcaster creates a new MockBroadcaster
func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{}
}

func (m *MockBroadcaster) Trigger(ctx context.Context, channel, event string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Broadcast{Channel: channel, Event: event, Payload: payload})
	return m.Err
}

// Events returns captured events
func (m *MockBroadcaster) Events() []Broadcast {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Broadcast(nil), m.events...)
}
