package driven

import "github.com/custodia-labs/syncbridge/internal/core/domain"

// AuthAdapter signs and verifies bearer tokens.
// Tokens only attribute requests to a user; there is no session storage.
type AuthAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
