package driving

import (
	"context"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// AuthService resolves bearer tokens into request attribution
type AuthService interface {
	// ValidateToken validates a JWT token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)

	// IssueToken signs a token for a user (used by tooling and tests)
	IssueToken(ctx context.Context, auth domain.AuthContext) (string, error)
}
