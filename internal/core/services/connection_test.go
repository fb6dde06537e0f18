package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

func newConnectionFixture() (driving.ConnectionService, *mocks.MockConnectionStore) {
	adapter := mocks.NewMockProviderAdapter("shopify")
	adapter.Cfg.AuthType = domain.AuthTypeOAuth
	store := mocks.NewMockConnectionStore()
	return NewConnectionService(store, mocks.NewMockProviderRegistry(adapter)), store
}

func TestConnectionService_Create(t *testing.T) {
	svc, store := newConnectionFixture()
	ctx := context.Background()

	conn, err := svc.Create(ctx, "tenant-1", driving.CreateConnectionRequest{
		Provider:       "shopify",
		AccessToken:    "at",
		RefreshToken:   "rt",
		TokenExpiresIn: 3600,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AuthTypeOAuth, conn.AuthType, "auth type defaults to the provider's")
	assert.Equal(t, domain.ConnectionStatusActive, conn.Status)
	require.NotNil(t, conn.TokenExpiresAt)

	again, err := svc.Create(ctx, "tenant-1", driving.CreateConnectionRequest{Provider: "shopify", AccessToken: "at2"})
	require.NoError(t, err)
	assert.Equal(t, conn.ID, again.ID, "reconnecting replaces the previous connection")

	list, err := store.List(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "at2", list[0].AccessToken)
}

func TestConnectionService_CreateValidation(t *testing.T) {
	svc, _ := newConnectionFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, "tenant-1", driving.CreateConnectionRequest{Provider: "unknown", APIKey: "k"})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	_, err = svc.Create(ctx, "tenant-1", driving.CreateConnectionRequest{Provider: "shopify"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Create(ctx, "tenant-1", driving.CreateConnectionRequest{Provider: "shopify", AuthType: domain.AuthTypeBasic, ClientID: "id"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConnectionService_DeleteIsOwnerScoped(t *testing.T) {
	svc, _ := newConnectionFixture()
	ctx := context.Background()

	conn, err := svc.Create(ctx, "tenant-1", driving.CreateConnectionRequest{Provider: "shopify", AccessToken: "at"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "tenant-2", conn.ID), domain.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, "tenant-1", conn.ID))

	list, err := svc.List(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Len(t, svc.Providers(ctx), 1)
}
