package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.Broadcaster         = (*PubSub)(nil)
	_ driven.BroadcastSubscriber = (*PubSub)(nil)
)

const broadcastPrefix = "syncbridge:broadcast:"

// PubSub carries real-time events between instances over Redis pub/sub.
// Any instance may publish; every instance serving websocket clients
// subscribes and fans messages out locally.
type PubSub struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewPubSub creates a Redis pub/sub broadcaster.
func NewPubSub(client redis.UniversalClient, logger *slog.Logger) *PubSub {
	if logger == nil {
		logger = slog.Default()
	}
	return &PubSub{client: client, logger: logger}
}

// Trigger publishes event with payload on channel.
func (p *PubSub) Trigger(ctx context.Context, channel, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg, err := json.Marshal(driven.BroadcastMessage{Channel: channel, Event: event, Payload: raw})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := p.client.Publish(ctx, broadcastPrefix+channel, msg).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe listens on channels matching the glob pattern. The subscription
// is active when Subscribe returns.
func (p *PubSub) Subscribe(ctx context.Context, pattern string) (<-chan driven.BroadcastMessage, error) {
	ps := p.client.PSubscribe(ctx, broadcastPrefix+pattern)
	// wait for the subscribe confirmation
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", pattern, err)
	}

	out := make(chan driven.BroadcastMessage, 64)
	go func() {
		defer close(out)
		defer ps.Close()

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				var msg driven.BroadcastMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					p.logger.Warn("dropping malformed broadcast", "channel", m.Channel, "error", err)
					continue
				}
				if msg.Channel == "" {
					msg.Channel = strings.TrimPrefix(m.Channel, broadcastPrefix)
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
