package integration

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// DefaultTimeout bounds a single provider request
const DefaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of a provider response is read
const maxResponseBytes = 10 << 20

// Request describes one provider API call.
type Request struct {
	Endpoint string
	Method   string
	Params   url.Values
	Body     any
	Headers  map[string]string

	// WebhookEvent, when set, forwards the mapped response to the tenant webhook on success
	WebhookEvent string

	// RetryCount is the number of attempts already made
	RetryCount int

	refreshed bool
}

// Response is a successful provider reply
type Response struct {
	StatusCode int
	Raw        []byte
	Data       any
}

// ClientConfig holds dependencies for a Client
type ClientConfig struct {
	Provider   *domain.ProviderConfig
	Connection *domain.Connection // nil uses the platform credentials from Provider

	Connections driven.ConnectionStore
	Refresher   driven.TokenRefresher
	Webhooks    driven.WebhookSender
	Notifier    driven.Notifier
	Metrics     driven.MetricsRecorder
	Logger      *slog.Logger
	HTTPClient  *http.Client
	Now         func() time.Time

	// Sleep waits between retries. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client is an authenticated, retrying HTTP caller bound to one provider
// and one tenant connection. Only the OAuth token pair changes after construction.
type Client struct {
	cfg         *domain.ProviderConfig
	connections driven.ConnectionStore
	refresher   driven.TokenRefresher
	webhooks    driven.WebhookSender
	notifier    driven.Notifier
	metrics     driven.MetricsRecorder
	logger      *slog.Logger
	httpClient  *http.Client
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	conn *domain.Connection
}

// NewClient creates a Client. The connection is copied.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		cfg:         cfg.Provider,
		connections: cfg.Connections,
		refresher:   cfg.Refresher,
		webhooks:    cfg.Webhooks,
		notifier:    cfg.Notifier,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		httpClient:  cfg.HTTPClient,
		now:         cfg.Now,
		sleep:       cfg.Sleep,
	}
	if cfg.Connection != nil {
		conn := *cfg.Connection
		c.conn = &conn
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("provider", c.cfg.Name)
	if c.metrics == nil {
		c.metrics = driven.NopMetrics{}
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Provider returns the provider configuration
func (c *Client) Provider() *domain.ProviderConfig {
	return c.cfg
}

// CallAPI performs req, retrying transient failures with exponential backoff.
// Terminal failures of payment integrations alert the admins by email.
func (c *Client) CallAPI(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.do(ctx, &req)
	if err == nil {
		if req.WebhookEvent != "" {
			c.forward(ctx, req.WebhookEvent, resp.Data)
		}
		return resp, nil
	}

	maxRetries, initialDelay := c.cfg.RetryPolicy()
	if req.RetryCount < maxRetries && domain.IsRetryable(err) {
		delay := initialDelay * time.Duration(1<<req.RetryCount)
		c.logger.Warn("retrying provider call",
			"endpoint", req.Endpoint,
			"attempt", req.RetryCount+1,
			"delay", delay,
			"error", err)
		serr := c.sleep(ctx, delay)
		if serr == nil {
			req.RetryCount++
			return c.CallAPI(ctx, req)
		}
		// abandoned backoff is a terminal failure like any other
		err = errors.Join(err, serr)
	}

	c.logger.Error("provider call failed", "endpoint", req.Endpoint, "attempts", req.RetryCount+1, "error", err)
	if c.cfg.IntegrationType == domain.IntegrationPayment {
		c.alertAdmins(ctx, req, err)
	}
	return nil, err
}

func (c *Client) do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := c.now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.ObserveProviderCall(c.cfg.Name, 0, c.now().Sub(start))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.IntegrationError{
			Code:      domain.CodeTransport,
			Provider:  c.cfg.Name,
			Message:   "request failed",
			Retryable: true,
			Err:       err,
		}
	}
	defer httpResp.Body.Close()
	c.metrics.ObserveProviderCall(c.cfg.Name, httpResp.StatusCode, c.now().Sub(start))

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.IntegrationError{
			Code:      domain.CodeTransport,
			Provider:  c.cfg.Name,
			Message:   "read response",
			Retryable: true,
			Err:       err,
		}
	}

	if httpResp.StatusCode == http.StatusUnauthorized && c.authType() == domain.AuthTypeOAuth && !req.refreshed {
		// the stored token may have been revoked before its expiry
		req.refreshed = true
		c.logger.Info("access token rejected, refreshing", "endpoint", req.Endpoint)
		if err := c.refresh(ctx, true); err != nil {
			return nil, err
		}
		return c.do(ctx, req)
	}

	if httpResp.StatusCode >= 400 {
		return nil, domain.IntegrationErrorFromStatus(c.cfg.Name, httpResp.StatusCode, truncate(string(body), 512))
	}

	data, err := MapResponse(body, c.cfg.FieldMapping)
	if err != nil {
		return nil, &domain.IntegrationError{
			Code:       domain.CodeInvalidResponse,
			Provider:   c.cfg.Name,
			StatusCode: httpResp.StatusCode,
			Message:    "response is not valid JSON",
			Err:        err,
		}
	}
	return &Response{StatusCode: httpResp.StatusCode, Raw: body, Data: data}, nil
}

func (c *Client) buildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	if c.cfg.BaseURL == "" || req.Endpoint == "" {
		return nil, domain.NewConfigurationError(c.cfg.Name, "base url and endpoint are required")
	}
	target := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(req.Endpoint, "/")
	if len(req.Params) > 0 {
		target += "?" + req.Params.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, domain.NewConfigurationError(c.cfg.Name, "invalid request url: "+err.Error())
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if err := c.authorize(ctx, httpReq.Header); err != nil {
		return nil, err
	}
	return httpReq, nil
}

// authType prefers the tenant connection's scheme over the provider default
func (c *Client) authType() domain.AuthType {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && c.conn.AuthType != "" {
		return c.conn.AuthType
	}
	return c.cfg.AuthType
}

// authorize sets credentials on h, refreshing an expired OAuth token first.
func (c *Client) authorize(ctx context.Context, h http.Header) error {
	switch c.authType() {
	case domain.AuthTypeOAuth:
		c.mu.Lock()
		expired := c.conn != nil && c.conn.TokenExpired(c.now())
		c.mu.Unlock()
		if expired {
			if err := c.refresh(ctx, false); err != nil {
				return err
			}
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.conn == nil || c.conn.AccessToken == "" {
			return domain.NewConfigurationError(c.cfg.Name, "oauth access token missing")
		}
		h.Set("Authorization", "Bearer "+c.conn.AccessToken)

	case domain.AuthTypeAPIKey:
		key := c.cfg.APIKey
		c.mu.Lock()
		if c.conn != nil && c.conn.APIKey != "" {
			key = c.conn.APIKey
		}
		c.mu.Unlock()
		if key == "" {
			return domain.NewConfigurationError(c.cfg.Name, "api key missing")
		}
		if c.cfg.APIKeyHeader == "" {
			h.Set("Authorization", "Bearer "+key)
		} else {
			h.Set(c.cfg.APIKeyHeader, key)
		}

	case domain.AuthTypeBasic:
		user, pass := c.cfg.APIKey, c.cfg.APISecret
		c.mu.Lock()
		if c.conn != nil && c.conn.ClientID != "" {
			user, pass = c.conn.ClientID, c.conn.ClientSecret
		}
		c.mu.Unlock()
		if user == "" || pass == "" {
			return domain.NewConfigurationError(c.cfg.Name, "basic credentials missing")
		}
		h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(user+":"+pass)))

	default:
		return domain.NewConfigurationError(c.cfg.Name, fmt.Sprintf("unsupported auth type %q", c.authType()))
	}
	return nil
}

// refresh exchanges the refresh token. Failure marks the connection needs_reauth.
// Without force a token refreshed by a concurrent call is reused.
func (c *Client) refresh(ctx context.Context, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.conn != nil && !c.conn.TokenExpired(c.now()) {
		return nil
	}

	if c.conn == nil || c.conn.RefreshToken == "" || c.refresher == nil {
		c.markNeedsReauth(ctx)
		return &domain.IntegrationError{
			Code:     domain.CodeAuth,
			Provider: c.cfg.Name,
			Message:  "access token expired and cannot be refreshed",
			Err:      domain.ErrTokenExpired,
		}
	}

	token, err := c.refresher.Refresh(ctx, c.cfg, c.conn)
	if err != nil {
		c.markNeedsReauth(ctx)
		return &domain.IntegrationError{
			Code:     domain.CodeAuth,
			Provider: c.cfg.Name,
			Message:  "token refresh failed",
			Err:      err,
		}
	}

	c.conn.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.conn.RefreshToken = token.RefreshToken
	}
	if !token.ExpiresAt.IsZero() {
		expires := token.ExpiresAt
		c.conn.TokenExpiresAt = &expires
	} else {
		c.conn.TokenExpiresAt = nil
	}
	c.conn.Status = domain.ConnectionStatusActive

	if c.connections != nil && c.conn.ID != "" {
		if err := c.connections.UpdateTokens(ctx, c.conn.ID, token); err != nil {
			c.logger.Warn("failed to persist refreshed token", "connection_id", c.conn.ID, "error", err)
		}
	}
	c.logger.Info("oauth token refreshed", "connection_id", c.conn.ID)
	return nil
}

// markNeedsReauth must be called with c.mu held
func (c *Client) markNeedsReauth(ctx context.Context) {
	if c.conn == nil {
		return
	}
	c.conn.Status = domain.ConnectionStatusNeedsReauth
	if c.connections == nil || c.conn.ID == "" {
		return
	}
	if err := c.connections.UpdateStatus(ctx, c.conn.ID, domain.ConnectionStatusNeedsReauth); err != nil {
		c.logger.Warn("failed to mark connection for reauth", "connection_id", c.conn.ID, "error", err)
	}
}

// forward sends the mapped response to the tenant's webhook, if enabled
func (c *Client) forward(ctx context.Context, event string, data any) {
	c.mu.Lock()
	var target string
	if c.conn != nil && c.conn.Webhook.Enabled {
		target = c.conn.Webhook.URL
	}
	c.mu.Unlock()
	if target == "" || c.webhooks == nil {
		return
	}

	payload := domain.WebhookPayload{Event: event, Data: data, Timestamp: c.now()}
	if err := c.webhooks.Send(ctx, target, c.cfg.WebhookSecret, payload); err != nil {
		c.logger.Warn("tenant webhook delivery failed", "event", event, "url", target, "error", err)
	}
}

func (c *Client) alertAdmins(ctx context.Context, req Request, cause error) {
	if c.notifier == nil || len(c.cfg.AdminEmails) == 0 {
		c.logger.Error("payment failure alert has no recipients", "endpoint", req.Endpoint)
		return
	}

	subject := fmt.Sprintf("[%s] payment integration failure", c.cfg.Name)
	body := fmt.Sprintf("Provider: %s\nEndpoint: %s %s\nAttempts: %d\nCode: %s\nError: %v\nTime: %s\n",
		c.cfg.Name, methodOrGet(req.Method), req.Endpoint, req.RetryCount+1,
		domain.ErrorCodeOf(cause), cause, c.now().UTC().Format(time.RFC3339))

	// the caller's context may already be cancelled; the alert must still go out
	if err := c.notifier.SendEmail(context.WithoutCancel(ctx), c.cfg.AdminEmails, subject, body); err != nil {
		c.logger.Error("failed to send payment failure alert", "error", err)
	}
}

func methodOrGet(m string) string {
	if m == "" {
		return http.MethodGet
	}
	return m
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
