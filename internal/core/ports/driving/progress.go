package driving

import (
	"context"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// ProgressService tracks the live state of sync runs
type ProgressService interface {
	InitializeSync(ctx context.Context, req domain.InitializeSyncRequest, actor string) (*domain.SyncProgress, error)
	UpdateProgress(ctx context.Context, syncID string, update domain.ProgressUpdate, actor string) (*domain.SyncProgress, error)
	CancelSync(ctx context.Context, syncID, actor string) (*domain.SyncProgress, error)
	GetProgress(ctx context.Context, syncID string) (*domain.SyncProgress, error)

	// ListActiveSyncs returns queued, running and paused syncs. Best effort.
	ListActiveSyncs(ctx context.Context) ([]*domain.SyncProgress, error)
}
