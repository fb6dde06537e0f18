package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

var _ driving.ConnectionService = (*connectionService)(nil)

type connectionService struct {
	store    driven.ConnectionStore
	registry driven.ProviderRegistry
	now      func() time.Time
}

// NewConnectionService creates a new ConnectionService
func NewConnectionService(store driven.ConnectionStore, registry driven.ProviderRegistry) driving.ConnectionService {
	return &connectionService{store: store, registry: registry, now: time.Now}
}

// Create stores a tenant connection, replacing any previous one for the provider.
func (s *connectionService) Create(ctx context.Context, userID string, req driving.CreateConnectionRequest) (*domain.Connection, error) {
	cfg, ok := s.registry.Config(req.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, req.Provider)
	}
	authType := req.AuthType
	if authType == "" {
		authType = cfg.AuthType
	}

	now := s.now()
	conn := &domain.Connection{
		ID:           domain.GenerateID(),
		UserID:       userID,
		Provider:     req.Provider,
		AuthType:     authType,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		APIKey:       req.APIKey,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		Status:       domain.ConnectionStatusActive,
		Webhook:      req.Webhook,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.TokenExpiresIn > 0 {
		expires := now.Add(time.Duration(req.TokenExpiresIn) * time.Second)
		conn.TokenExpiresAt = &expires
	}
	if !conn.HasCredentials() {
		return nil, fmt.Errorf("%w: credentials missing for %s auth", domain.ErrInvalidInput, authType)
	}

	if existing, err := s.store.GetByProvider(ctx, userID, req.Provider); err == nil {
		conn.ID = existing.ID
		conn.CreatedAt = existing.CreatedAt
	}
	if err := s.store.Save(ctx, conn); err != nil {
		return nil, fmt.Errorf("save connection: %w", err)
	}
	return conn, nil
}

func (s *connectionService) List(ctx context.Context, userID string) ([]*domain.Connection, error) {
	return s.store.List(ctx, userID)
}

// Delete removes a connection owned by userID
func (s *connectionService) Delete(ctx context.Context, userID, id string) error {
	conn, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if conn.UserID != userID {
		return domain.ErrNotFound
	}
	return s.store.Delete(ctx, id)
}

func (s *connectionService) Providers(ctx context.Context) []domain.ProviderInfo {
	return s.registry.Providers()
}
