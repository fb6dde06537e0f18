package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

var _ driving.WebhookService = (*WebhookDispatcher)(nil)

// WebhookDispatcher fans an event out to a user's subscriptions.
// Each delivery is attempted once, concurrently and in isolation.
type WebhookDispatcher struct {
	store   driven.WebhookSubscriptionStore
	sender  driven.WebhookSender
	metrics driven.MetricsRecorder
	logger  *slog.Logger
	now     func() time.Time
}

// WebhookDispatcherConfig holds dependencies for WebhookDispatcher.
type WebhookDispatcherConfig struct {
	Store   driven.WebhookSubscriptionStore
	Sender  driven.WebhookSender
	Metrics driven.MetricsRecorder
	Logger  *slog.Logger
	Now     func() time.Time
}

// NewWebhookDispatcher creates a new webhook dispatcher.
func NewWebhookDispatcher(cfg WebhookDispatcherConfig) *WebhookDispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &WebhookDispatcher{
		store:   cfg.Store,
		sender:  cfg.Sender,
		metrics: metrics,
		logger:  logger,
		now:     now,
	}
}

// Dispatch POSTs {event, data, timestamp} to every active subscription of
// userID that includes event, and waits for all attempts to finish.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, userID, event string, payload any) {
	subs, err := d.store.ListActiveForEvent(ctx, userID, event)
	if err != nil {
		d.logger.Error("failed to load webhook subscriptions", "user_id", userID, "event", event, "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	body := domain.WebhookPayload{Event: event, Data: payload, Timestamp: d.now().UTC()}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.deliver(ctx, sub, body)
		}()
	}
	wg.Wait()
}

func (d *WebhookDispatcher) deliver(ctx context.Context, sub *domain.WebhookSubscription, body domain.WebhookPayload) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("webhook delivery panicked", "subscription_id", sub.ID, "url", sub.URL, "panic", r)
		}
	}()

	if err := d.sender.Send(ctx, sub.URL, sub.Secret, body); err != nil {
		d.metrics.RecordWebhookDelivery(false)
		d.logger.Warn("webhook delivery failed",
			"subscription_id", sub.ID,
			"url", sub.URL,
			"event", body.Event,
			"error", err,
		)
		if markErr := d.store.MarkFailed(ctx, sub.ID, err.Error()); markErr != nil {
			d.logger.Warn("failed to record webhook error", "subscription_id", sub.ID, "error", markErr)
		}
		return
	}

	d.metrics.RecordWebhookDelivery(true)
	if err := d.store.MarkTriggered(ctx, sub.ID, d.now()); err != nil {
		d.logger.Warn("failed to record webhook delivery", "subscription_id", sub.ID, "error", err)
	}
}

// Subscribe registers a new active subscription for userID.
func (d *WebhookDispatcher) Subscribe(ctx context.Context, userID string, req domain.CreateSubscriptionRequest) (*domain.WebhookSubscription, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", domain.ErrInvalidInput)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub := &domain.WebhookSubscription{
		ID:        domain.GenerateID(),
		UserID:    userID,
		URL:       req.URL,
		Events:    req.Events,
		Secret:    req.Secret,
		Active:    true,
		CreatedAt: d.now(),
	}
	if err := d.store.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}
	return sub, nil
}

// ListSubscriptions returns userID's subscriptions.
func (d *WebhookDispatcher) ListSubscriptions(ctx context.Context, userID string) ([]*domain.WebhookSubscription, error) {
	return d.store.ListByUser(ctx, userID)
}

// Unsubscribe deletes a subscription owned by userID.
func (d *WebhookDispatcher) Unsubscribe(ctx context.Context, userID, id string) error {
	return d.store.Delete(ctx, id, userID)
}
