package driven

import (
	"context"
	"encoding/json"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// Notifier sends operator notifications.
// Callers log and swallow errors from every method.
type Notifier interface {
	SendEmail(ctx context.Context, to []string, subject, body string) error
	SendSlackMessage(ctx context.Context, target domain.SlackTarget, text string) error
	SendWebhook(ctx context.Context, target domain.WebhookTarget, payload any) error
}

// Broadcaster publishes real-time events to connected clients
type Broadcaster interface {
	Trigger(ctx context.Context, channel, event string, payload any) error
}

// BroadcastMessage is one event received from the broadcast channel
type BroadcastMessage struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// BroadcastSubscriber receives events published through a Broadcaster.
type BroadcastSubscriber interface {
	// Subscribe delivers messages on channels matching pattern until ctx is done.
	// The returned channel is closed when the subscription ends.
	Subscribe(ctx context.Context, pattern string) (<-chan BroadcastMessage, error)
}
