package services

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

var _ driving.ProgressService = (*ProgressTracker)(nil)

const (
	progressKeyPrefix = "sync:progress:"
	progressTTL       = 24 * time.Hour

	defaultNotifyTimeout = 2 * time.Second

	codeCounterMismatch = "COUNTER_MISMATCH"
)

func progressKey(syncID string) string {
	return progressKeyPrefix + syncID
}

// eventDispatcher is the subset of the webhook dispatcher the core emits through
type eventDispatcher interface {
	Dispatch(ctx context.Context, userID, event string, payload any)
}

// ProgressTracker keeps the live state of sync runs in the cache and
// announces every change. Status transitions are not restricted.
type ProgressTracker struct {
	cache       *CacheService
	dispatcher  eventDispatcher
	broadcaster driven.Broadcaster
	logger      *slog.Logger
	now         func() time.Time

	notifyTimeout time.Duration

	// serializes read-modify-write of records within this process
	mu sync.Mutex
}

// ProgressTrackerConfig holds dependencies for ProgressTracker.
type ProgressTrackerConfig struct {
	Cache       *CacheService
	Dispatcher  eventDispatcher    // optional
	Broadcaster driven.Broadcaster // optional
	Logger      *slog.Logger
	Now         func() time.Time

	// NotifyTimeout bounds each progress announcement (default: 2s)
	NotifyTimeout time.Duration
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker(cfg ProgressTrackerConfig) *ProgressTracker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	notifyTimeout := cfg.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}
	return &ProgressTracker{
		cache:       cfg.Cache,
		dispatcher:  cfg.Dispatcher,
		broadcaster: cfg.Broadcaster,
		logger:      logger,
		now:         now,

		notifyTimeout: notifyTimeout,
	}
}

// InitializeSync creates a queued record with zero counters and announces it.
func (t *ProgressTracker) InitializeSync(ctx context.Context, req domain.InitializeSyncRequest, actor string) (*domain.SyncProgress, error) {
	if req.Provider == "" {
		return nil, fmt.Errorf("%w: provider is required", domain.ErrInvalidInput)
	}
	if req.TotalItems < 0 {
		return nil, fmt.Errorf("%w: total items must not be negative", domain.ErrInvalidInput)
	}
	syncID := req.SyncID
	if syncID == "" {
		syncID = domain.GenerateID()
	}

	now := t.now()
	p := &domain.SyncProgress{
		SyncID:    syncID,
		Provider:  req.Provider,
		RequestID: req.RequestID,
		Status:    domain.SyncStatusQueued,
		Progress:  domain.ProgressCounters{Total: req.TotalItems},
		Timestamps: domain.ProgressTimestamps{
			Started:     now,
			LastUpdated: now,
		},
		Errors:    []domain.ProgressIssue{},
		Warnings:  []domain.ProgressIssue{},
		Metadata:  maps.Clone(req.Metadata),
		CreatedBy: actor,
		UpdatedBy: actor,
	}

	t.mu.Lock()
	t.cache.Set(ctx, progressKey(syncID), p, progressTTL)
	t.mu.Unlock()

	t.logger.Debug("sync initialized", "sync_id", syncID, "provider", req.Provider, "total", req.TotalItems)
	t.emit(ctx, p)
	return p, nil
}

// UpdateProgress applies a partial update to an existing record, persists it
// and announces it. Counter discrepancies are recorded as warnings.
func (t *ProgressTracker) UpdateProgress(ctx context.Context, syncID string, u domain.ProgressUpdate, actor string) (*domain.SyncProgress, error) {
	t.mu.Lock()
	p, ok := CacheGet[*domain.SyncProgress](ctx, t.cache, progressKey(syncID))
	if !ok || p == nil {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrSyncNotFound, syncID)
	}

	now := t.now()
	t.apply(p, u, actor, now)
	t.cache.Set(ctx, progressKey(syncID), p, progressTTL)
	t.mu.Unlock()

	t.emit(ctx, p)
	return p, nil
}

func (t *ProgressTracker) apply(p *domain.SyncProgress, u domain.ProgressUpdate, actor string, now time.Time) {
	countersTouched := u.Processed != nil || u.Succeeded != nil || u.Failed != nil
	if u.Total != nil {
		p.Progress.Total = *u.Total
	}
	if u.Processed != nil {
		p.Progress.Processed = *u.Processed
	}
	if u.Succeeded != nil {
		p.Progress.Succeeded = *u.Succeeded
	}
	if u.Failed != nil {
		p.Progress.Failed = *u.Failed
	}
	p.Progress.Recompute()

	if u.Status != nil {
		prev := p.Status
		p.Status = *u.Status
		switch {
		case p.Status.IsTerminal():
			p.Timestamps.Completed = &now
		case p.Status == domain.SyncStatusCancelled:
			p.Timestamps.Cancelled = &now
		case p.Status == domain.SyncStatusPaused:
			p.Timestamps.Paused = &now
		case p.Status == domain.SyncStatusRunning && prev == domain.SyncStatusPaused:
			p.Timestamps.Resumed = &now
		}
	}

	if u.Error != nil {
		p.Errors = append(p.Errors, stampIssue(*u.Error, actor, now))
	}
	if u.Warning != nil {
		p.Warnings = append(p.Warnings, stampIssue(*u.Warning, actor, now))
	}
	if countersTouched && !p.Progress.Consistent() {
		p.Warnings = append(p.Warnings, domain.ProgressIssue{
			Code: codeCounterMismatch,
			Message: fmt.Sprintf("processed %d differs from succeeded %d + failed %d",
				p.Progress.Processed, p.Progress.Succeeded, p.Progress.Failed),
			Source:    "progress",
			Timestamp: now,
			Reporter:  actor,
		})
	}

	if len(u.Metadata) > 0 {
		if p.Metadata == nil {
			p.Metadata = make(map[string]any, len(u.Metadata))
		}
		maps.Copy(p.Metadata, u.Metadata)
	}

	p.Timestamps.LastUpdated = now
	p.UpdatedBy = actor
}

func stampIssue(issue domain.ProgressIssue, actor string, now time.Time) domain.ProgressIssue {
	if issue.Timestamp.IsZero() {
		issue.Timestamp = now
	}
	if issue.Reporter == "" {
		issue.Reporter = actor
	}
	return issue
}

// CancelSync marks a sync cancelled. In-flight work stops at its next batch.
func (t *ProgressTracker) CancelSync(ctx context.Context, syncID, actor string) (*domain.SyncProgress, error) {
	status := domain.SyncStatusCancelled
	return t.UpdateProgress(ctx, syncID, domain.ProgressUpdate{
		Status: &status,
		Metadata: map[string]any{
			"cancelled_by": actor,
			"cancelled_at": t.now().UTC().Format(time.RFC3339),
		},
	}, actor)
}

// GetProgress returns the current record of a sync.
func (t *ProgressTracker) GetProgress(ctx context.Context, syncID string) (*domain.SyncProgress, error) {
	p, ok := CacheGet[*domain.SyncProgress](ctx, t.cache, progressKey(syncID))
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSyncNotFound, syncID)
	}
	return p, nil
}

// ListActiveSyncs returns queued, running and paused syncs. Records may
// expire or change while listing.
func (t *ProgressTracker) ListActiveSyncs(ctx context.Context) ([]*domain.SyncProgress, error) {
	var active []*domain.SyncProgress
	for _, key := range t.cache.Keys(ctx, progressKeyPrefix+"*") {
		p, ok := CacheGet[*domain.SyncProgress](ctx, t.cache, key)
		if ok && p != nil && p.Status.IsActive() {
			active = append(active, p)
		}
	}
	return active, nil
}

// emit sends the snapshot to system webhooks and the sync's broadcast channel.
// The two paths are independent and each is bounded by notifyTimeout.
// Neither fails the caller.
func (t *ProgressTracker) emit(ctx context.Context, p *domain.SyncProgress) {
	snapshot := *p
	if t.dispatcher != nil {
		dctx, cancel := context.WithTimeout(ctx, t.notifyTimeout)
		t.dispatcher.Dispatch(dctx, domain.SystemUserID, domain.EventSyncProgress, snapshot)
		cancel()
	}
	if t.broadcaster != nil {
		bctx, cancel := context.WithTimeout(ctx, t.notifyTimeout)
		defer cancel()
		if err := t.broadcaster.Trigger(bctx, domain.SyncChannel(p.SyncID), domain.ProgressEvent, snapshot); err != nil {
			t.logger.Warn("progress broadcast failed", "sync_id", p.SyncID, "error", err)
		}
	}
}
