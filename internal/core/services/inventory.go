package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

var _ driving.InventoryService = (*InventoryService)(nil)

const (
	inventoryCachePrefix = "inventory:"
	defaultInventoryTTL  = time.Hour
	defaultSyncBatchSize = 50
	defaultSyncWorkers   = 8

	// optimistic update attempts before giving up on a SKU
	maxUpdateAttempts = 3

	codeUnmatchedSKUs = "UNMATCHED_SKUS"
	codeUpdateFailed  = "UPDATE_FAILED"
	codeSyncFailed    = "SYNC_FAILED"
)

func inventoryKey(provider string) string {
	return inventoryCachePrefix + provider
}

// InventoryService pulls provider stock into local inventory records.
type InventoryService struct {
	registry   driven.ProviderRegistry
	store      driven.InventoryStore
	products   driven.ProductStore
	cache      *CacheService
	progress   driving.ProgressService
	dispatcher eventDispatcher
	metrics    driven.MetricsRecorder
	logger     *slog.Logger
	now        func() time.Time

	cacheTTL  time.Duration
	batchSize int
	workers   int
}

// InventoryServiceConfig holds dependencies for InventoryService.
type InventoryServiceConfig struct {
	Registry   driven.ProviderRegistry
	Store      driven.InventoryStore
	Products   driven.ProductStore
	Cache      *CacheService
	Progress   driving.ProgressService
	Dispatcher eventDispatcher // optional, receives low-stock alerts
	Metrics    driven.MetricsRecorder
	Logger     *slog.Logger
	Now        func() time.Time

	CacheTTL  time.Duration // provider levels cache TTL (default: 1h)
	BatchSize int           // SKUs between progress updates (default: 50)
	Workers   int           // parallel SKU updates (default: 8)
}

// NewInventoryService creates a new inventory service.
func NewInventoryService(cfg InventoryServiceConfig) *InventoryService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &InventoryService{
		registry:   cfg.Registry,
		store:      cfg.Store,
		products:   cfg.Products,
		cache:      cfg.Cache,
		progress:   cfg.Progress,
		dispatcher: cfg.Dispatcher,
		metrics:    metrics,
		logger:     logger,
		now:        now,
		cacheTTL:   cfg.CacheTTL,
		batchSize:  cfg.BatchSize,
		workers:    cfg.Workers,
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = defaultInventoryTTL
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultSyncBatchSize
	}
	if s.workers <= 0 {
		s.workers = defaultSyncWorkers
	}
	return s
}

func actorOr(user string) string {
	if user == "" {
		return domain.SystemUserID
	}
	return user
}

// SyncInventory fetches levels from provider and updates the matching local
// records. SKUs without a local record are counted, never inserted.
func (s *InventoryService) SyncInventory(ctx context.Context, provider string, opts domain.SyncOptions) (*domain.SyncResult, error) {
	start := s.now()
	actor := actorOr(opts.User)

	adapter, err := s.registry.Adapter(ctx, provider, actor)
	if err != nil {
		return nil, fmt.Errorf("resolve provider %s: %w", provider, err)
	}

	syncID := s.beginProgress(ctx, provider, opts, actor)
	s.logger.Info("starting inventory sync", "provider", provider, "sync_id", syncID)

	levels, err := adapter.GetInventoryLevels(ctx)
	if err != nil {
		s.failProgress(ctx, syncID, provider, actor, err)
		s.metrics.RecordSync(provider, false, s.now().Sub(start))
		return nil, fmt.Errorf("fetch inventory from %s: %w", provider, err)
	}

	s.cache.Set(ctx, inventoryKey(provider), levels, s.cacheTTL)

	total := len(levels)
	running := domain.SyncStatusRunning
	s.updateProgress(ctx, syncID, domain.ProgressUpdate{Total: &total, Status: &running}, actor)

	stats, cancelled := s.reconcile(ctx, provider, syncID, actor, levels, opts.Filters)

	if stats.Unmatched > 0 {
		s.updateProgress(ctx, syncID, domain.ProgressUpdate{Warning: &domain.ProgressIssue{
			Code:    codeUnmatchedSKUs,
			Message: fmt.Sprintf("%d SKUs returned by %s have no inventory record", stats.Unmatched, provider),
			Source:  provider,
		}}, actor)
	}
	if stats.Failed > 0 {
		s.updateProgress(ctx, syncID, domain.ProgressUpdate{Error: &domain.ProgressIssue{
			Code:    codeUpdateFailed,
			Message: fmt.Sprintf("%d inventory updates failed", stats.Failed),
			Source:  provider,
		}}, actor)
	}
	if !cancelled {
		done := domain.SyncStatusCompleted
		s.updateProgress(ctx, syncID, domain.ProgressUpdate{Status: &done}, actor)
	}

	success := !cancelled && stats.Failed == 0
	s.metrics.RecordSync(provider, success, s.now().Sub(start))
	s.metrics.AddInventoryUpdates(provider, stats.Updated)

	s.logger.Info("inventory sync finished",
		"provider", provider,
		"sync_id", syncID,
		"received", stats.Received,
		"updated", stats.Updated,
		"unmatched", stats.Unmatched,
		"failed", stats.Failed,
		"cancelled", cancelled,
		"duration", s.now().Sub(start),
	)

	return &domain.SyncResult{
		Success:   success,
		SyncID:    syncID,
		Provider:  provider,
		Data:      levels,
		Stats:     stats,
		Cancelled: cancelled,
		Timestamp: s.now(),
		User:      actor,
	}, nil
}

// beginProgress reuses the caller's progress record or creates one.
func (s *InventoryService) beginProgress(ctx context.Context, provider string, opts domain.SyncOptions, actor string) string {
	if opts.SyncID != "" {
		if _, err := s.progress.GetProgress(ctx, opts.SyncID); err == nil {
			return opts.SyncID
		}
	}
	p, err := s.progress.InitializeSync(ctx, domain.InitializeSyncRequest{
		SyncID:    opts.SyncID,
		Provider:  provider,
		RequestID: opts.RequestID,
	}, actor)
	if err != nil {
		s.logger.Warn("failed to initialize sync progress", "provider", provider, "error", err)
		if opts.SyncID != "" {
			return opts.SyncID
		}
		return domain.GenerateID()
	}
	return p.SyncID
}

func (s *InventoryService) updateProgress(ctx context.Context, syncID string, u domain.ProgressUpdate, actor string) *domain.SyncProgress {
	p, err := s.progress.UpdateProgress(ctx, syncID, u, actor)
	if err != nil {
		s.logger.Warn("failed to update sync progress", "sync_id", syncID, "error", err)
		return nil
	}
	return p
}

func (s *InventoryService) failProgress(ctx context.Context, syncID, provider, actor string, cause error) {
	failed := domain.SyncStatusFailed
	code := string(domain.ErrorCodeOf(cause))
	if code == "" {
		code = codeSyncFailed
	}
	s.updateProgress(ctx, syncID, domain.ProgressUpdate{
		Status: &failed,
		Error:  &domain.ProgressIssue{Code: code, Message: cause.Error(), Source: provider},
	}, actor)
}

// reconcile updates stored items batch by batch. Between batches it pushes a
// progress snapshot and stops when the sync has been cancelled.
func (s *InventoryService) reconcile(ctx context.Context, provider, syncID, actor string, levels []domain.InventoryLevel, filters domain.ScheduleFilters) (domain.SyncStats, bool) {
	var updated, unmatched, skipped, failed, lowStock atomic.Int64
	stats := func() domain.SyncStats {
		return domain.SyncStats{
			Received:  len(levels),
			Updated:   int(updated.Load()),
			Unmatched: int(unmatched.Load()),
			Skipped:   int(skipped.Load()),
			Failed:    int(failed.Load()),
			LowStock:  int(lowStock.Load()),
		}
	}

	for batch := range slices.Chunk(levels, s.batchSize) {
		if s.cancelled(ctx, syncID) {
			s.logger.Info("inventory sync cancelled", "provider", provider, "sync_id", syncID)
			return stats(), true
		}

		skus := make([]string, 0, len(batch))
		for _, l := range batch {
			skus = append(skus, l.SKU)
		}
		items, err := s.store.GetMany(ctx, skus)
		if err != nil {
			s.logger.Error("failed to load inventory batch", "provider", provider, "error", err)
			failed.Add(int64(len(batch)))
			s.pushCounters(ctx, syncID, actor, stats())
			continue
		}

		// one goroutine owns each item; repeated SKUs (one row per
		// warehouse) apply in provider order
		order := make([]string, 0, len(batch))
		bySKU := make(map[string][]domain.InventoryLevel, len(batch))
		for _, l := range batch {
			if _, seen := bySKU[l.SKU]; !seen {
				order = append(order, l.SKU)
			}
			bySKU[l.SKU] = append(bySKU[l.SKU], l)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for _, sku := range order {
			group := bySKU[sku]
			item, ok := items[sku]
			if !ok {
				unmatched.Add(int64(len(group)))
				continue
			}
			g.Go(func() error {
				for _, level := range group {
					if !matchesFilters(item, level, filters) {
						skipped.Add(1)
						continue
					}
					crossed, err := s.applyLevel(gctx, provider, item, level)
					if err != nil {
						failed.Add(1)
						s.logger.Warn("inventory update failed", "provider", provider, "sku", level.SKU, "error", err)
						continue
					}
					updated.Add(1)
					if crossed {
						lowStock.Add(1)
						s.alertLowStock(gctx, provider, item)
					}
				}
				return nil
			})
		}
		_ = g.Wait()

		s.pushCounters(ctx, syncID, actor, stats())
	}
	return stats(), false
}

func (s *InventoryService) cancelled(ctx context.Context, syncID string) bool {
	if ctx.Err() != nil {
		return true
	}
	p, err := s.progress.GetProgress(ctx, syncID)
	return err == nil && p.Status == domain.SyncStatusCancelled
}

func (s *InventoryService) pushCounters(ctx context.Context, syncID, actor string, st domain.SyncStats) {
	succeeded := st.Updated + st.Unmatched + st.Skipped
	processed := succeeded + st.Failed
	s.updateProgress(ctx, syncID, domain.ProgressUpdate{
		Processed: &processed,
		Succeeded: &succeeded,
		Failed:    &st.Failed,
	}, actor)
}

func matchesFilters(item *domain.InventoryItem, level domain.InventoryLevel, f domain.ScheduleFilters) bool {
	if len(f.Warehouses) > 0 {
		warehouse := level.WarehouseID
		if warehouse == "" {
			warehouse = item.WarehouseID
		}
		if !slices.Contains(f.Warehouses, warehouse) {
			return false
		}
	}
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, item.Category()) {
		return false
	}
	return true
}

// applyLevel writes one provider level onto item with optimistic retries and
// reports whether the item crossed below its low threshold.
func (s *InventoryService) applyLevel(ctx context.Context, provider string, item *domain.InventoryItem, level domain.InventoryLevel) (bool, error) {
	for attempt := 1; ; attempt++ {
		previous := item.Quantity
		now := s.now()
		item.SetQuantity(level.Quantity)
		item.LastSyncedAt = &now
		item.UpdatedAt = now
		if level.WarehouseID != "" {
			item.WarehouseID = level.WarehouseID
		}
		if item.Provider == "" {
			item.Provider = provider
		}

		err := s.store.Update(ctx, item)
		if err == nil {
			return item.CrossedBelowLow(previous), nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt == maxUpdateAttempts {
			return false, err
		}

		fresh, getErr := s.store.Get(ctx, item.SKU)
		if getErr != nil {
			return false, getErr
		}
		*item = *fresh
	}
}

func (s *InventoryService) alertLowStock(ctx context.Context, provider string, item *domain.InventoryItem) {
	s.metrics.RecordLowStock(provider)
	s.logger.Info("inventory below low threshold", "sku", item.SKU, "quantity", item.Quantity, "threshold", item.Thresholds.Low)
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(ctx, domain.SystemUserID, domain.EventLowStock, domain.LowStockAlert{
		SKU:       item.SKU,
		Provider:  provider,
		Quantity:  item.Quantity,
		Threshold: item.Thresholds.Low,
		Timestamp: s.now(),
	})
}

// AdjustInventory applies a manual change. A decrease below zero fails with
// domain.ErrNegativeInventory and leaves the record unchanged.
func (s *InventoryService) AdjustInventory(ctx context.Context, req domain.AdjustInventoryRequest, actor string) (*domain.InventoryItem, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	actor = actorOr(actor)

	for attempt := 1; ; attempt++ {
		item, err := s.store.Get(ctx, req.SKU)
		if err != nil {
			return nil, fmt.Errorf("get inventory %s: %w", req.SKU, err)
		}

		previous := item.Quantity
		if err := item.Apply(req, actor, s.now()); err != nil {
			return nil, err
		}

		err = s.store.Update(ctx, item)
		if errors.Is(err, domain.ErrConflict) && attempt < maxUpdateAttempts {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update inventory %s: %w", req.SKU, err)
		}

		s.metrics.AddInventoryUpdates(item.Provider, 1)
		if item.CrossedBelowLow(previous) {
			s.alertLowStock(ctx, item.Provider, item)
		}
		s.logger.Info("inventory adjusted", "sku", item.SKU, "type", req.Type, "quantity", req.Quantity, "user", actor)
		return item, nil
	}
}

// GetInventory returns provider levels from the cache, fetching them on a miss.
func (s *InventoryService) GetInventory(ctx context.Context, provider string) (*domain.InventoryView, error) {
	if _, ok := s.registry.Config(provider); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, provider)
	}

	levels, cached, err := GetOrSet(ctx, s.cache, inventoryKey(provider), s.cacheTTL,
		func(ctx context.Context) ([]domain.InventoryLevel, error) {
			adapter, err := s.registry.Adapter(ctx, provider, domain.SystemUserID)
			if err != nil {
				return nil, err
			}
			return adapter.GetInventoryLevels(ctx)
		})
	if err != nil {
		return nil, fmt.Errorf("fetch inventory from %s: %w", provider, err)
	}

	return &domain.InventoryView{
		Provider:  provider,
		Levels:    levels,
		Cached:    cached,
		Timestamp: s.now(),
	}, nil
}

// ListItems returns stored inventory records for provider.
func (s *InventoryService) ListItems(ctx context.Context, provider string) ([]*domain.InventoryItem, error) {
	return s.store.List(ctx, provider)
}

// CreateProduct pushes a product to provider and records it locally.
func (s *InventoryService) CreateProduct(ctx context.Context, provider string, data map[string]any, actor string) (*domain.Product, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: product data is required", domain.ErrInvalidInput)
	}
	actor = actorOr(actor)

	adapter, err := s.registry.Adapter(ctx, provider, actor)
	if err != nil {
		return nil, fmt.Errorf("resolve provider %s: %w", provider, err)
	}

	res, err := adapter.CreateProduct(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("create product at %s: %w", provider, err)
	}

	product := domain.NewProduct(provider, data, res, actor, s.now())
	if err := s.products.Upsert(ctx, product); err != nil {
		return nil, fmt.Errorf("record product %s: %w", res.ExternalID, err)
	}
	return product, nil
}
