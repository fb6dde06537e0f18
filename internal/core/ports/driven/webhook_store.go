package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// WebhookSubscriptionStore persists webhook subscriptions (PostgreSQL)
type WebhookSubscriptionStore interface {
	Save(ctx context.Context, sub *domain.WebhookSubscription) error
	Get(ctx context.Context, id string) (*domain.WebhookSubscription, error)

	// Delete removes a subscription owned by userID
	Delete(ctx context.Context, id, userID string) error

	ListByUser(ctx context.Context, userID string) ([]*domain.WebhookSubscription, error)

	// ListActiveForEvent returns active subscriptions of userID that include event
	ListActiveForEvent(ctx context.Context, userID, event string) ([]*domain.WebhookSubscription, error)

	// MarkTriggered records a successful delivery and clears LastError
	MarkTriggered(ctx context.Context, id string, at time.Time) error

	// MarkFailed records the last delivery error
	MarkFailed(ctx context.Context, id, lastError string) error
}

// WebhookSender delivers one signed webhook POST.
// The signature is the hex HMAC-SHA256 of the body keyed by secret.
type WebhookSender interface {
	Send(ctx context.Context, url, secret string, payload domain.WebhookPayload) error
}
