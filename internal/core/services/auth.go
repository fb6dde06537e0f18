package services

import (
	"context"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService resolves bearer tokens for audit attribution
type authService struct {
	authAdapter driven.AuthAdapter
	tokenTTL    time.Duration
	now         func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(authAdapter driven.AuthAdapter, tokenTTL time.Duration) driving.AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &authService{
		authAdapter: authAdapter,
		tokenTTL:    tokenTTL,
		now:         time.Now,
	}
}

// ValidateToken validates a JWT token and returns the auth context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}

	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt > 0 && s.now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}
	if claims.UserID == "" {
		return nil, domain.ErrTokenInvalid
	}

	return &domain.AuthContext{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

// IssueToken signs a token for auth valid for the configured TTL
func (s *authService) IssueToken(ctx context.Context, auth domain.AuthContext) (string, error) {
	if auth.UserID == "" {
		return "", domain.ErrInvalidInput
	}
	if auth.Role == "" {
		auth.Role = domain.RoleTenant
	}
	now := s.now()
	return s.authAdapter.GenerateToken(&domain.TokenClaims{
		UserID:    auth.UserID,
		Email:     auth.Email,
		Role:      auth.Role,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.tokenTTL).Unix(),
	})
}
