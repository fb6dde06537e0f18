package domain

import "time"

// ConnectionStatus is the health of a tenant's provider connection
type ConnectionStatus string

const (
	ConnectionStatusActive      ConnectionStatus = "active"
	ConnectionStatusNeedsReauth ConnectionStatus = "needs_reauth"
	ConnectionStatusDisabled    ConnectionStatus = "disabled"
)

// ConnectionWebhook forwards successful provider calls to the tenant
type ConnectionWebhook struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url,omitempty"`
}

// Connection is a tenant's credentials for one provider.
// Secret fields are encrypted at rest.
type Connection struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	Provider       string            `json:"provider"`
	AuthType       AuthType          `json:"auth_type"`
	AccessToken    string            `json:"-"`
	RefreshToken   string            `json:"-"`
	TokenExpiresAt *time.Time        `json:"token_expires_at,omitempty"`
	APIKey         string            `json:"-"`
	ClientID       string            `json:"-"`
	ClientSecret   string            `json:"-"`
	Status         ConnectionStatus  `json:"status"`
	Webhook        ConnectionWebhook `json:"webhook"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// TokenExpired reports whether the access token has expired at now.
// A connection without an expiry never expires.
func (c *Connection) TokenExpired(now time.Time) bool {
	return c.TokenExpiresAt != nil && !now.Before(*c.TokenExpiresAt)
}

// HasCredentials reports whether the connection carries what its auth type needs
func (c *Connection) HasCredentials() bool {
	switch c.AuthType {
	case AuthTypeOAuth:
		return c.AccessToken != "" || c.RefreshToken != ""
	case AuthTypeAPIKey:
		return c.APIKey != ""
	case AuthTypeBasic:
		return c.ClientID != "" && c.ClientSecret != ""
	}
	return false
}

// OAuthToken is a refreshed token pair
type OAuthToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
