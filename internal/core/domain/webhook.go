package domain

import (
	"fmt"
	"net/url"
	"slices"
	"time"
)

// Well-known event names
const (
	EventSyncProgress   = "sync.progress"
	EventLowStock       = "inventory.low_stock"
	EventProductCreated = "product created"
)

// WebhookSubscription is a user's registration for event deliveries
type WebhookSubscription struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	URL           string     `json:"url"`
	Events        []string   `json:"events"`
	Secret        string     `json:"-"`
	Active        bool       `json:"active"`
	RetryCount    int        `json:"retry_count"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Handles reports whether the subscription receives event
func (s *WebhookSubscription) Handles(event string) bool {
	return s.Active && slices.Contains(s.Events, event)
}

// CreateSubscriptionRequest is the input for registering a webhook
type CreateSubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

// Validate checks the request shape
func (r CreateSubscriptionRequest) Validate() error {
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalidInput)
	}
	if len(r.Events) == 0 {
		return fmt.Errorf("%w: at least one event is required", ErrInvalidInput)
	}
	if r.Secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidInput)
	}
	return nil
}

// WebhookPayload is the body POSTed to subscribers
type WebhookPayload struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}
