package integration

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

var _ driven.TokenRefresher = (*OAuth2Refresher)(nil)

// OAuth2Refresher performs refresh-token grants against a provider token URL.
type OAuth2Refresher struct {
	httpClient *http.Client
}

// NewOAuth2Refresher creates a refresher. A nil client uses a 30s timeout client.
func NewOAuth2Refresher(httpClient *http.Client) *OAuth2Refresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &OAuth2Refresher{httpClient: httpClient}
}

// Refresh exchanges conn's refresh token for a new token pair.
// Tenant client credentials win over the provider's platform credentials.
func (r *OAuth2Refresher) Refresh(ctx context.Context, cfg *domain.ProviderConfig, conn *domain.Connection) (*domain.OAuthToken, error) {
	if cfg.TokenURL == "" {
		return nil, domain.NewConfigurationError(cfg.Name, "token url missing")
	}

	clientID, clientSecret := cfg.OAuthClientID, cfg.OAuthClientSecret
	if conn.ClientID != "" {
		clientID, clientSecret = conn.ClientID, conn.ClientSecret
	}

	oc := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)

	// An empty access token forces the token source to refresh
	tok, err := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: conn.RefreshToken}).Token()
	if err != nil {
		return nil, err
	}

	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = conn.RefreshToken
	}
	return &domain.OAuthToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    tok.Expiry,
	}, nil
}
