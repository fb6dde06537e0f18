package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

func TestWebhookSender_SignsBody(t *testing.T) {
	var (
		gotBody   []byte
		gotHeader http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Clone()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := domain.WebhookPayload{Event: domain.EventLowStock, Data: map[string]any{"synced": 3}, Timestamp: ts}

	err := NewWebhookSender(srv.Client()).Send(context.Background(), srv.URL, "s3cret", payload)
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, domain.EventLowStock, gotHeader.Get(EventHeader))
	assert.Equal(t, "1740830400", gotHeader.Get(TimestampHeader))
	assert.True(t, Verify("s3cret", gotBody, gotHeader.Get(SignatureHeader)))
	assert.False(t, Verify("other", gotBody, gotHeader.Get(SignatureHeader)))

	var decoded domain.WebhookPayload
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, payload.Event, decoded.Event)
	assert.True(t, ts.Equal(decoded.Timestamp))
}

func TestWebhookSender_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhookSender(nil).Send(context.Background(), srv.URL, "k", domain.WebhookPayload{Event: "X"})
	require.Error(t, err)
	assert.Equal(t, "status 500", err.Error())
}

func TestSign_KnownVector(t *testing.T) {
	assert.Equal(t,
		"f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
		Sign("key", []byte("The quick brown fox jumps over the lazy dog")))
}
