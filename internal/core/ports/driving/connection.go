package driving

import (
	"context"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// ConnectionService manages tenant provider connections
type ConnectionService interface {
	Create(ctx context.Context, userID string, req CreateConnectionRequest) (*domain.Connection, error)
	List(ctx context.Context, userID string) ([]*domain.Connection, error)
	Delete(ctx context.Context, userID, id string) error

	// Providers lists configured providers
	Providers(ctx context.Context) []domain.ProviderInfo
}

// CreateConnectionRequest is the input for connecting a tenant to a provider
type CreateConnectionRequest struct {
	Provider       string                   `json:"provider"`
	AuthType       domain.AuthType          `json:"auth_type"`
	AccessToken    string                   `json:"access_token,omitempty"`
	RefreshToken   string                   `json:"refresh_token,omitempty"`
	TokenExpiresIn int                      `json:"token_expires_in,omitempty"` // seconds
	APIKey         string                   `json:"api_key,omitempty"`
	ClientID       string                   `json:"client_id,omitempty"`
	ClientSecret   string                   `json:"client_secret,omitempty"`
	Webhook        domain.ConnectionWebhook `json:"webhook"`
}
