package driving

import (
	"context"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// WebhookService fans events out to subscribers and manages subscriptions
type WebhookService interface {
	// Dispatch delivers event to every active subscription of userID.
	// Delivery failures are recorded on the subscription, never returned.
	Dispatch(ctx context.Context, userID, event string, payload any)

	Subscribe(ctx context.Context, userID string, req domain.CreateSubscriptionRequest) (*domain.WebhookSubscription, error)
	ListSubscriptions(ctx context.Context, userID string) ([]*domain.WebhookSubscription, error)
	Unsubscribe(ctx context.Context, userID, id string) error
}
