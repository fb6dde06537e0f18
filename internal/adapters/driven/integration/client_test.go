package integration

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven/mocks"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	conns    *mocks.MockConnectionStore
	sender   *mocks.MockWebhookSender
	notifier *mocks.MockNotifier
	metrics  *mocks.MockMetrics
	refresh  *mocks.MockTokenRefresher

	mu     sync.Mutex
	delays []time.Duration
}

func newTestEnv() *testEnv {
	return &testEnv{
		conns:    mocks.NewMockConnectionStore(),
		sender:   mocks.NewMockWebhookSender(),
		notifier: mocks.NewMockNotifier(),
		metrics:  mocks.NewMockMetrics(),
		refresh:  &mocks.MockTokenRefresher{},
	}
}

func (e *testEnv) client(cfg *domain.ProviderConfig, conn *domain.Connection) *Client {
	if conn != nil {
		_ = e.conns.Save(context.Background(), conn)
	}
	return NewClient(ClientConfig{
		Provider:    cfg,
		Connection:  conn,
		Connections: e.conns,
		Refresher:   e.refresh,
		Webhooks:    e.sender,
		Notifier:    e.notifier,
		Metrics:     e.metrics,
		Now:         func() time.Time { return fixedNow },
		Sleep: func(ctx context.Context, d time.Duration) error {
			e.mu.Lock()
			e.delays = append(e.delays, d)
			e.mu.Unlock()
			return nil
		},
	})
}

func (e *testEnv) sleeps() []time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]time.Duration(nil), e.delays...)
}

func providerFor(srv *httptest.Server) *domain.ProviderConfig {
	return &domain.ProviderConfig{
		Name:            "acme",
		IntegrationType: domain.IntegrationWarehouse,
		BaseURL:         srv.URL,
		AuthType:        domain.AuthTypeAPIKey,
		APIKey:          "platform-key",
		Endpoints:       domain.ProviderEndpoints{Inventory: "/inventory", Products: "/products"},
		MaxRetries:      3,
		InitialDelay:    time.Second,
		WebhookSecret:   "provider-secret",
	}
}

// statusSequence serves the given statuses in order, then 200 with body
func statusSequence(t *testing.T, body string, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClient_AuthHeaders(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *domain.ProviderConfig)
		conn   *domain.Connection
		header string
		want   string
	}{
		{
			name:   "platform api key as bearer",
			header: "Authorization",
			want:   "Bearer platform-key",
		},
		{
			name:   "custom api key header",
			mutate: func(cfg *domain.ProviderConfig) { cfg.APIKeyHeader = "X-Api-Key" },
			header: "X-Api-Key",
			want:   "platform-key",
		},
		{
			name:   "tenant api key wins",
			conn:   &domain.Connection{ID: "c1", AuthType: domain.AuthTypeAPIKey, APIKey: "tenant-key"},
			header: "Authorization",
			want:   "Bearer tenant-key",
		},
		{
			name:   "basic from connection",
			conn:   &domain.Connection{ID: "c1", AuthType: domain.AuthTypeBasic, ClientID: "user", ClientSecret: "pass"},
			header: "Authorization",
			want:   "Basic dXNlcjpwYXNz",
		},
		{
			name:   "oauth bearer",
			conn:   &domain.Connection{ID: "c1", AuthType: domain.AuthTypeOAuth, AccessToken: "tok"},
			header: "Authorization",
			want:   "Bearer tok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get(tt.header)
				_, _ = w.Write([]byte(`{}`))
			}))
			defer srv.Close()

			cfg := providerFor(srv)
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			_, err := newTestEnv().client(cfg, tt.conn).CallAPI(context.Background(), Request{Endpoint: "/inventory"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_MissingCredentialsFailFast(t *testing.T) {
	srv, calls := statusSequence(t, `{}`)
	cfg := providerFor(srv)
	cfg.APIKey = ""
	env := newTestEnv()

	_, err := env.client(cfg, nil).CallAPI(context.Background(), Request{Endpoint: "/inventory"})

	assert.Equal(t, domain.CodeConfiguration, domain.ErrorCodeOf(err))
	assert.False(t, domain.IsRetryable(err))
	assert.Zero(t, calls.Load())
	assert.Empty(t, env.sleeps())
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	srv, calls := statusSequence(t, `{"ok":true}`, http.StatusServiceUnavailable, http.StatusTooManyRequests)
	env := newTestEnv()

	resp, err := env.client(providerFor(srv), nil).CallAPI(context.Background(), Request{Endpoint: "/inventory"})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, resp.Data)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, env.sleeps())
	assert.Equal(t, 3, env.metrics.Count("provider_call"))
}

func TestClient_RetriesExhausted(t *testing.T) {
	srv, calls := statusSequence(t, `{}`, 500, 500, 500, 500, 500)
	cfg := providerFor(srv)
	cfg.MaxRetries = 2
	env := newTestEnv()

	_, err := env.client(cfg, nil).CallAPI(context.Background(), Request{Endpoint: "/inventory"})

	var ie *domain.IntegrationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, domain.CodeProviderUnavailable, ie.Code)
	assert.Equal(t, 500, ie.StatusCode)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, env.sleeps())
	assert.Empty(t, env.notifier.Sent("email"), "non-payment failures do not alert")
}

func TestClient_NonRetryableFailure(t *testing.T) {
	srv, calls := statusSequence(t, `{}`, http.StatusBadRequest)
	env := newTestEnv()

	_, err := env.client(providerFor(srv), nil).CallAPI(context.Background(), Request{Endpoint: "/inventory"})

	assert.Equal(t, domain.CodeRequestRejected, domain.ErrorCodeOf(err))
	assert.EqualValues(t, 1, calls.Load())
	assert.Empty(t, env.sleeps())
}

func TestClient_TransportErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	cfg := &domain.ProviderConfig{
		Name: "acme", BaseURL: "http://provider.invalid", AuthType: domain.AuthTypeAPIKey,
		APIKey: "k", MaxRetries: 1, InitialDelay: time.Millisecond,
	}
	c := NewClient(ClientConfig{
		Provider: cfg,
		HTTPClient: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			calls.Add(1)
			return nil, errors.New("connection reset by peer")
		})},
		Sleep: func(context.Context, time.Duration) error { return nil },
	})

	_, err := c.CallAPI(context.Background(), Request{Endpoint: "/x"})

	assert.Equal(t, domain.CodeTransport, domain.ErrorCodeOf(err))
	assert.EqualValues(t, 2, calls.Load())
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestClient_InvalidJSONResponse(t *testing.T) {
	srv, _ := statusSequence(t, `<html>`)
	_, err := newTestEnv().client(providerFor(srv), nil).CallAPI(context.Background(), Request{Endpoint: "/inventory"})
	assert.Equal(t, domain.CodeInvalidResponse, domain.ErrorCodeOf(err))
}

func TestClient_RequestShape(t *testing.T) {
	var gotMethod, gotQuery, gotBody, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		gotHeader = r.Header.Get("X-Trace")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newTestEnv().client(providerFor(srv), nil).CallAPI(context.Background(), Request{
		Endpoint: "products",
		Method:   http.MethodPost,
		Params:   map[string][]string{"page": {"2"}},
		Body:     map[string]string{"sku": "A1"},
		Headers:  map[string]string{"X-Trace": "t-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "page=2", gotQuery)
	assert.JSONEq(t, `{"sku":"A1"}`, gotBody)
	assert.Equal(t, "t-1", gotHeader)
}

func TestClient_OAuthRefreshOnExpiry(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	expired := fixedNow.Add(-time.Minute)
	conn := &domain.Connection{
		ID: "c1", UserID: "u1", Provider: "acme", AuthType: domain.AuthTypeOAuth,
		AccessToken: "old", RefreshToken: "r1", TokenExpiresAt: &expired,
	}
	env := newTestEnv()
	env.refresh.RefreshFn = func(c *domain.Connection) (*domain.OAuthToken, error) {
		assert.Equal(t, "r1", c.RefreshToken)
		return &domain.OAuthToken{AccessToken: "new", RefreshToken: "r2", ExpiresAt: fixedNow.Add(time.Hour)}, nil
	}
	client := env.client(providerFor(srv), conn)

	_, err := client.CallAPI(context.Background(), Request{Endpoint: "/inventory"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer new", auth)
	assert.Equal(t, 1, env.refresh.Calls())

	stored, err := env.conns.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "new", stored.AccessToken)
	assert.Equal(t, "r2", stored.RefreshToken)

	// the refreshed token is reused
	_, err = client.CallAPI(context.Background(), Request{Endpoint: "/inventory"})
	require.NoError(t, err)
	assert.Equal(t, 1, env.refresh.Calls())
}

func TestClient_OAuthRefreshFailureMarksReauth(t *testing.T) {
	srv, calls := statusSequence(t, `{}`)
	expired := fixedNow.Add(-time.Second)
	conn := &domain.Connection{
		ID: "c1", AuthType: domain.AuthTypeOAuth, AccessToken: "old", RefreshToken: "r1",
		TokenExpiresAt: &expired, Status: domain.ConnectionStatusActive,
	}
	env := newTestEnv()
	env.refresh.RefreshFn = func(*domain.Connection) (*domain.OAuthToken, error) {
		return nil, errors.New("invalid_grant")
	}

	_, err := env.client(providerFor(srv), conn).CallAPI(context.Background(), Request{Endpoint: "/inventory"})

	assert.Equal(t, domain.CodeAuth, domain.ErrorCodeOf(err))
	assert.Zero(t, calls.Load())
	assert.Empty(t, env.sleeps(), "auth failures are not retried")

	stored, _ := env.conns.Get(context.Background(), "c1")
	assert.Equal(t, domain.ConnectionStatusNeedsReauth, stored.Status)
}

func TestClient_OAuthRefreshOnUnauthorized(t *testing.T) {
	var seen []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		if r.Header.Get("Authorization") == "Bearer revoked" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	conn := &domain.Connection{ID: "c1", AuthType: domain.AuthTypeOAuth, AccessToken: "revoked", RefreshToken: "r1"}
	env := newTestEnv()
	env.refresh.RefreshFn = func(*domain.Connection) (*domain.OAuthToken, error) {
		return &domain.OAuthToken{AccessToken: "fresh"}, nil
	}

	_, err := env.client(providerFor(srv), conn).CallAPI(context.Background(), Request{Endpoint: "/inventory"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer revoked", "Bearer fresh"}, seen)
	assert.Equal(t, 1, env.refresh.Calls())
}

func TestClient_WebhookForwarding(t *testing.T) {
	srv, _ := statusSequence(t, `{"product":{"id":42,"title":"Mug"}}`)
	cfg := providerFor(srv)
	cfg.FieldMapping = map[string]string{"id": "product.id", "name": "product.title"}

	t.Run("enabled", func(t *testing.T) {
		env := newTestEnv()
		conn := &domain.Connection{
			ID: "c1", AuthType: domain.AuthTypeAPIKey, APIKey: "k",
			Webhook: domain.ConnectionWebhook{Enabled: true, URL: "https://tenant.example.com/hook"},
		}
		resp, err := env.client(cfg, conn).CallAPI(context.Background(), Request{
			Endpoint: "/products", Method: http.MethodPost, WebhookEvent: domain.EventProductCreated,
		})
		require.NoError(t, err)

		sent := env.sender.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "https://tenant.example.com/hook", sent[0].URL)
		assert.Equal(t, "provider-secret", sent[0].Secret)
		assert.Equal(t, domain.EventProductCreated, sent[0].Payload.Event)
		assert.Equal(t, resp.Data, sent[0].Payload.Data)
		assert.Equal(t, fixedNow, sent[0].Payload.Timestamp)
	})

	t.Run("disabled or no event", func(t *testing.T) {
		env := newTestEnv()
		conn := &domain.Connection{
			ID: "c1", AuthType: domain.AuthTypeAPIKey, APIKey: "k",
			Webhook: domain.ConnectionWebhook{URL: "https://tenant.example.com/hook"},
		}
		_, err := env.client(cfg, conn).CallAPI(context.Background(), Request{Endpoint: "/products", WebhookEvent: "x"})
		require.NoError(t, err)

		conn.Webhook.Enabled = true
		_, err = env.client(cfg, conn).CallAPI(context.Background(), Request{Endpoint: "/products"})
		require.NoError(t, err)
		assert.Empty(t, env.sender.Sent())
	})

	t.Run("delivery failure does not fail the call", func(t *testing.T) {
		env := newTestEnv()
		env.sender.SendFn = func(string) error { return errors.New("down") }
		conn := &domain.Connection{
			ID: "c1", AuthType: domain.AuthTypeAPIKey, APIKey: "k",
			Webhook: domain.ConnectionWebhook{Enabled: true, URL: "https://tenant.example.com/hook"},
		}
		_, err := env.client(cfg, conn).CallAPI(context.Background(), Request{Endpoint: "/products", WebhookEvent: "x"})
		assert.NoError(t, err)
	})
}

func TestClient_PaymentFailureAlertsAdmins(t *testing.T) {
	srv, _ := statusSequence(t, `{}`, 402)
	cfg := providerFor(srv)
	cfg.IntegrationType = domain.IntegrationPayment
	cfg.AdminEmails = []string{"ops@example.com"}
	env := newTestEnv()

	_, err := env.client(cfg, nil).CallAPI(context.Background(), Request{Endpoint: "/charges", Method: http.MethodPost})
	require.Error(t, err)

	emails := env.notifier.Sent("email")
	require.Len(t, emails, 1)
	assert.Equal(t, []string{"ops@example.com"}, emails[0].To)
	assert.Contains(t, emails[0].Subject, "acme")
	assert.Contains(t, emails[0].Body, "POST /charges")
	assert.Contains(t, emails[0].Body, string(domain.CodeRequestRejected))
}

func TestClient_PaymentAlertOnlyAfterRetries(t *testing.T) {
	srv, calls := statusSequence(t, `{}`, 503)
	cfg := providerFor(srv)
	cfg.IntegrationType = domain.IntegrationPayment
	cfg.AdminEmails = []string{"ops@example.com"}
	env := newTestEnv()

	_, err := env.client(cfg, nil).CallAPI(context.Background(), Request{Endpoint: "/charges"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
	assert.Empty(t, env.notifier.Sent("email"))
}

func TestClient_PaymentAlertWhenBackoffAbandoned(t *testing.T) {
	srv, calls := statusSequence(t, `{}`, 503, 503, 503, 503)
	cfg := providerFor(srv)
	cfg.IntegrationType = domain.IntegrationPayment
	cfg.AdminEmails = []string{"ops@example.com"}
	env := newTestEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := NewClient(ClientConfig{
		Provider: cfg,
		Notifier: env.notifier,
		Now:      func() time.Time { return fixedNow },
		Sleep: func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		},
	})

	_, err := client.CallAPI(ctx, Request{Endpoint: "/charges"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.CodeProviderUnavailable, domain.ErrorCodeOf(err))
	assert.EqualValues(t, 1, calls.Load())

	emails := env.notifier.Sent("email")
	require.Len(t, emails, 1)
	assert.Contains(t, emails[0].Body, string(domain.CodeProviderUnavailable))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		{"café au lait", 4, "caf..."},
		{"éé", 1, "..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		assert.Equal(t, tt.want, got)
		assert.True(t, utf8.ValidString(got), "truncate(%q, %d) = %q", tt.in, tt.n, got)
	}
}
