package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// ErrEmailDisabled is returned when no mailer is configured
var ErrEmailDisabled = errors.New("email delivery not configured")

// Config holds dependencies for Notifier
type Config struct {
	Mailer     Mailer // nil disables email
	HTTPClient *http.Client
	Logger     *slog.Logger
}

var _ driven.Notifier = (*Notifier)(nil)

// Notifier delivers operator notifications over email, Slack incoming
// webhooks and plain HTTP webhooks.
type Notifier struct {
	mailer Mailer
	client *http.Client
	logger *slog.Logger
}

// NewNotifier creates a new Notifier
func NewNotifier(cfg Config) *Notifier {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Notifier{mailer: cfg.Mailer, client: cfg.HTTPClient, logger: cfg.Logger}
}

func (n *Notifier) SendEmail(ctx context.Context, to []string, subject, body string) error {
	if n.mailer == nil {
		return ErrEmailDisabled
	}
	if err := n.mailer.Send(ctx, to, subject, body); err != nil {
		return err
	}
	n.logger.Debug("email sent", "recipients", len(to), "subject", subject)
	return nil
}

func (n *Notifier) SendSlackMessage(ctx context.Context, target domain.SlackTarget, text string) error {
	if target.Webhook == "" {
		return errors.New("slack webhook url is required")
	}
	msg := &slack.WebhookMessage{Text: text, Channel: target.Channel}
	if err := slack.PostWebhookCustomHTTPContext(ctx, target.Webhook, n.client, msg); err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}
	return nil
}

// SendWebhook POSTs payload as JSON with the target's extra headers
func (n *Notifier) SendWebhook(ctx context.Context, target domain.WebhookTarget, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}
	return do(n.client, req)
}
