package driven

import (
	"context"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// ConnectionStore persists tenant provider connections (PostgreSQL).
// Implementations encrypt secret fields at rest.
type ConnectionStore interface {
	Save(ctx context.Context, conn *domain.Connection) error
	Get(ctx context.Context, id string) (*domain.Connection, error)

	// GetByProvider returns the connection of userID for provider
	GetByProvider(ctx context.Context, userID, provider string) (*domain.Connection, error)

	List(ctx context.Context, userID string) ([]*domain.Connection, error)

	// UpdateTokens persists a refreshed OAuth token pair
	UpdateTokens(ctx context.Context, id string, token *domain.OAuthToken) error

	UpdateStatus(ctx context.Context, id string, status domain.ConnectionStatus) error
	Delete(ctx context.Context, id string) error
}

// TokenRefresher exchanges a refresh token at the provider's token URL
type TokenRefresher interface {
	Refresh(ctx context.Context, cfg *domain.ProviderConfig, conn *domain.Connection) (*domain.OAuthToken, error)
}
