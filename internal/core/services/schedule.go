package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

var _ driving.ScheduleService = (*ScheduleManager)(nil)

const (
	scheduleNextPrefix  = "schedule:next:"
	scheduleRetryPrefix = "schedule:retry:"
	scheduleLeasePrefix = "schedule:lease:"

	defaultLeaseTTL       = 10 * time.Minute
	defaultRetryBaseDelay = time.Minute
	armBuffer             = 60 * time.Second

	maxRetryLimit = 10
	maxRetryDelay = 24 * time.Hour

	defaultExecutionLimit = 50
)

// ScheduleManager stores schedules, fires them when asked and handles
// retries and notifications. It has no timer of its own; the worker poller
// drives it.
type ScheduleManager struct {
	schedules  driven.ScheduleStore
	executions driven.ExecutionStore
	inventory  driving.InventoryService
	progress   driving.ProgressService
	cache      *CacheService
	lock       driven.DistributedLock
	notifier   driven.Notifier
	providers  driven.ProviderRegistry
	metrics    driven.MetricsRecorder
	logger     *slog.Logger
	now        func() time.Time

	leaseTTL       time.Duration
	retryBaseDelay time.Duration
}

// ScheduleManagerConfig holds dependencies for ScheduleManager.
type ScheduleManagerConfig struct {
	Schedules  driven.ScheduleStore
	Executions driven.ExecutionStore
	Inventory  driving.InventoryService
	Progress   driving.ProgressService
	Cache      *CacheService
	Lock       driven.DistributedLock  // per-schedule lease
	Notifier   driven.Notifier         // optional
	Providers  driven.ProviderRegistry // optional, validates providers on create
	Metrics    driven.MetricsRecorder
	Logger     *slog.Logger
	Now        func() time.Time

	LeaseTTL       time.Duration // default: 10m
	RetryBaseDelay time.Duration // default: 60s
}

// NewScheduleManager creates a new schedule manager.
func NewScheduleManager(cfg ScheduleManagerConfig) *ScheduleManager {
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
	leaseTTL := cfg.LeaseTTL
	if leaseTTL <= 0 {
		leaseTTL = defaultLeaseTTL
	}
	retryBase := cfg.RetryBaseDelay
	if retryBase <= 0 {
		retryBase = defaultRetryBaseDelay
	}
	return &ScheduleManager{
		schedules:      cfg.Schedules,
		executions:     cfg.Executions,
		inventory:      cfg.Inventory,
		progress:       cfg.Progress,
		cache:          cfg.Cache,
		lock:           cfg.Lock,
		notifier:       cfg.Notifier,
		providers:      cfg.Providers,
		metrics:        metrics,
		logger:         logger,
		now:            now,
		leaseTTL:       leaseTTL,
		retryBaseDelay: retryBase,
	}
}

// CreateSchedule persists a schedule with a computed next run and arms it.
// Invalid frequencies fail with domain.ErrInvalidFrequency.
func (m *ScheduleManager) CreateSchedule(ctx context.Context, req domain.CreateScheduleRequest, actor string) (*domain.Schedule, error) {
	if req.Provider == "" {
		return nil, fmt.Errorf("%w: provider is required", domain.ErrInvalidInput)
	}
	if m.providers != nil {
		if _, ok := m.providers.Config(req.Provider); !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, req.Provider)
		}
	}
	if req.Settings.MaxRetries < 0 || req.Settings.MaxRetries > maxRetryLimit {
		return nil, fmt.Errorf("%w: max retries must be between 0 and %d", domain.ErrInvalidInput, maxRetryLimit)
	}

	now := m.now()
	next, err := NextRun(req.Frequency, now)
	if err != nil {
		return nil, err
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	status := domain.ScheduleStatusActive
	if !enabled {
		status = domain.ScheduleStatusPaused
	}
	actor = actorOr(actor)

	schedule := &domain.Schedule{
		ID:            domain.GenerateID(),
		Provider:      req.Provider,
		Enabled:       enabled,
		Frequency:     req.Frequency,
		Filters:       req.Filters,
		Settings:      req.Settings,
		Notifications: req.Notifications,
		NextRun:       &next,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
		CreatedBy:     actor,
		UpdatedBy:     actor,
	}
	if err := m.schedules.Save(ctx, schedule); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}
	if enabled {
		m.arm(ctx, schedule)
	}

	m.logger.Info("schedule created", "schedule_id", schedule.ID, "provider", schedule.Provider, "next_run", next)
	return schedule, nil
}

// GetSchedule retrieves a schedule by ID.
func (m *ScheduleManager) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	return m.schedules.Get(ctx, id)
}

// ListSchedules lists schedules matching filter.
func (m *ScheduleManager) ListSchedules(ctx context.Context, filter domain.ScheduleFilter) ([]*domain.Schedule, error) {
	return m.schedules.List(ctx, filter)
}

// UpdateScheduleStatus enables or disables a schedule. The next run is
// recomputed either way; only enabled schedules are armed.
func (m *ScheduleManager) UpdateScheduleStatus(ctx context.Context, id string, enabled bool, actor string) (*domain.Schedule, error) {
	schedule, err := m.schedules.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := m.now()
	next, err := NextRun(schedule.Frequency, now)
	if err != nil {
		return nil, err
	}
	schedule.Enabled = enabled
	schedule.NextRun = &next
	schedule.Status = domain.ScheduleStatusPaused
	if enabled {
		schedule.Status = domain.ScheduleStatusActive
	}
	schedule.UpdatedAt = now
	schedule.UpdatedBy = actorOr(actor)

	if err := m.schedules.Save(ctx, schedule); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}
	if enabled {
		m.arm(ctx, schedule)
	} else {
		m.cache.Delete(ctx, scheduleNextPrefix+schedule.ID)
	}
	return schedule, nil
}

// DeleteSchedule hard-deletes a schedule. Its executions are kept.
func (m *ScheduleManager) DeleteSchedule(ctx context.Context, id string) error {
	if err := m.schedules.Delete(ctx, id); err != nil {
		return err
	}
	m.cache.Delete(ctx, scheduleNextPrefix+id)
	m.logger.Info("schedule deleted", "schedule_id", id)
	return nil
}

// GetExecutionStatus retrieves an execution by ID.
func (m *ScheduleManager) GetExecutionStatus(ctx context.Context, executionID string) (*domain.Execution, error) {
	return m.executions.Get(ctx, executionID)
}

// ListExecutions lists a schedule's executions, newest first.
func (m *ScheduleManager) ListExecutions(ctx context.Context, scheduleID string, limit int) ([]*domain.Execution, error) {
	if limit <= 0 {
		limit = defaultExecutionLimit
	}
	return m.executions.ListBySchedule(ctx, scheduleID, limit)
}

// ProcessScheduledSync fires a schedule now regardless of its next run.
func (m *ScheduleManager) ProcessScheduledSync(ctx context.Context, scheduleID string) (*domain.Execution, error) {
	return m.fire(ctx, scheduleID, false)
}

// ProcessDueSchedule fires a schedule only if it is still due once the lease
// is held, so an instance that listed it late does not fire it twice.
func (m *ScheduleManager) ProcessDueSchedule(ctx context.Context, scheduleID string) (*domain.Execution, error) {
	return m.fire(ctx, scheduleID, true)
}

func (m *ScheduleManager) fire(ctx context.Context, scheduleID string, requireDue bool) (*domain.Execution, error) {
	release, err := m.acquireLease(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	defer release()

	schedule, err := m.schedules.Get(ctx, scheduleID)
	if errors.Is(err, domain.ErrNotFound) {
		m.logger.Debug("schedule gone, skipping", "schedule_id", scheduleID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if !schedule.Enabled {
		m.logger.Debug("schedule disabled, skipping", "schedule_id", scheduleID)
		return nil, nil
	}
	if requireDue && !schedule.IsDue(m.now()) {
		return nil, nil
	}

	exec := domain.NewExecution(schedule, domain.GenerateID(), m.now())
	if err := m.executions.Save(ctx, exec); err != nil {
		return nil, fmt.Errorf("save execution: %w", err)
	}

	if _, err := m.progress.InitializeSync(ctx, domain.InitializeSyncRequest{
		SyncID:    exec.SyncID,
		Provider:  schedule.Provider,
		RequestID: exec.ID,
		Metadata: map[string]any{
			"schedule_id":  schedule.ID,
			"execution_id": exec.ID,
		},
	}, domain.SystemUserID); err != nil {
		m.logger.Warn("failed to initialize sync progress", "schedule_id", schedule.ID, "error", err)
	}

	m.logger.Info("firing schedule", "schedule_id", schedule.ID, "execution_id", exec.ID, "sync_id", exec.SyncID)
	result, syncErr := m.runSync(ctx, schedule, exec)
	m.finish(ctx, schedule, exec, result, syncErr)
	return exec, nil
}

// ProcessRetry re-runs the sync of a failed execution on the same record.
func (m *ScheduleManager) ProcessRetry(ctx context.Context, executionID string) (*domain.Execution, error) {
	exec, err := m.executions.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}

	release, err := m.acquireLease(ctx, exec.ScheduleID)
	if err != nil {
		return nil, err
	}
	defer release()

	// reload under the lease; another instance may have taken the retry
	exec, err = m.executions.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if exec.Status != domain.ExecutionStatusFailed || exec.NextRetry == nil {
		return nil, fmt.Errorf("%w: execution %s has no pending retry", domain.ErrConflict, executionID)
	}

	schedule, err := m.schedules.Get(ctx, exec.ScheduleID)
	if err != nil || !schedule.Enabled {
		exec.NextRetry = nil
		if saveErr := m.executions.Save(ctx, exec); saveErr != nil {
			m.logger.Warn("failed to clear retry", "execution_id", exec.ID, "error", saveErr)
		}
		m.cache.Delete(ctx, scheduleRetryPrefix+exec.ID)
		m.logger.Info("dropping retry of missing or disabled schedule", "execution_id", exec.ID, "schedule_id", exec.ScheduleID)
		return exec, nil
	}

	m.cache.Delete(ctx, scheduleRetryPrefix+exec.ID)
	exec.Status = domain.ExecutionStatusPending
	exec.NextRetry = nil
	exec.StartTime = m.now()
	exec.EndTime = nil
	if err := m.executions.Save(ctx, exec); err != nil {
		return nil, fmt.Errorf("save execution: %w", err)
	}

	m.logger.Info("retrying execution", "schedule_id", schedule.ID, "execution_id", exec.ID, "retry_count", exec.RetryCount)
	result, syncErr := m.runSync(ctx, schedule, exec)
	m.finish(ctx, schedule, exec, result, syncErr)
	return exec, nil
}

// acquireLease takes the per-schedule lease. A held lease yields
// domain.ErrScheduleBusy.
func (m *ScheduleManager) acquireLease(ctx context.Context, scheduleID string) (func(), error) {
	if m.lock == nil {
		return func() {}, nil
	}
	name := scheduleLeasePrefix + scheduleID
	acquired, err := m.lock.Acquire(ctx, name, m.leaseTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire schedule lease: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", domain.ErrScheduleBusy, scheduleID)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go m.keepLease(context.WithoutCancel(ctx), name, scheduleID, stop, done)

	return func() {
		close(stop)
		<-done
		if err := m.lock.Release(context.WithoutCancel(ctx), name); err != nil {
			m.logger.Warn("failed to release schedule lease", "schedule_id", scheduleID, "error", err)
		}
	}, nil
}

// keepLease extends the lease every third of its TTL until stop is closed,
// so a sync outliving the TTL keeps its slot exclusive.
func (m *ScheduleManager) keepLease(ctx context.Context, name, scheduleID string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(max(m.leaseTTL/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := m.lock.Extend(ctx, name, m.leaseTTL); err != nil {
				m.logger.Error("schedule lease lost", "schedule_id", scheduleID, "error", err)
				return
			}
		}
	}
}

// runSync invokes the inventory sync. A partial or cancelled run counts
// as a failure.
func (m *ScheduleManager) runSync(ctx context.Context, schedule *domain.Schedule, exec *domain.Execution) (result *domain.SyncResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync panicked: %v", r)
		}
	}()

	result, err = m.inventory.SyncInventory(ctx, schedule.Provider, domain.SyncOptions{
		SyncID:    exec.SyncID,
		RequestID: exec.ID,
		Filters:   schedule.Filters,
		User:      domain.SystemUserID,
	})
	if err != nil {
		return nil, err
	}
	switch {
	case result.Cancelled:
		return result, errors.New("sync cancelled")
	case !result.Success:
		return result, fmt.Errorf("sync finished with %d failed updates", result.Stats.Failed)
	}
	return result, nil
}

// finish records the outcome, notifies, recomputes the next run and either
// arms it or hands the failure to the retry handler.
func (m *ScheduleManager) finish(ctx context.Context, schedule *domain.Schedule, exec *domain.Execution, result *domain.SyncResult, syncErr error) {
	now := m.now()
	// persistence must not be skipped because the caller gave up
	ctx = context.WithoutCancel(ctx)

	if syncErr == nil {
		exec.Complete(result, now)
		m.metrics.RecordScheduleRun("completed")
		m.logger.Info("schedule execution completed", "schedule_id", schedule.ID, "execution_id", exec.ID, "duration", exec.Duration)
	} else {
		exec.Fail(syncErr, now)
		exec.Result = result
		m.metrics.RecordScheduleRun("failed")
		m.logger.Error("schedule execution failed", "schedule_id", schedule.ID, "execution_id", exec.ID, "error", syncErr)
	}
	if err := m.executions.Save(ctx, exec); err != nil {
		m.logger.Error("failed to save execution", "execution_id", exec.ID, "error", err)
	}

	m.notify(ctx, schedule, exec, syncErr == nil)

	schedule.LastRun = &now
	schedule.UpdatedAt = now
	schedule.UpdatedBy = domain.SystemUserID
	if next, err := NextRun(schedule.Frequency, now); err != nil {
		m.logger.Error("failed to compute next run", "schedule_id", schedule.ID, "error", err)
		schedule.Status = domain.ScheduleStatusError
	} else {
		schedule.NextRun = &next
	}

	retrying := false
	switch {
	case syncErr == nil:
		schedule.Status = domain.ScheduleStatusActive
	case schedule.Settings.RetryOnFailure:
		retrying = m.handleRetry(ctx, schedule)
		if !retrying {
			schedule.Status = domain.ScheduleStatusError
		}
		if fresh, err := m.executions.Get(ctx, exec.ID); err == nil {
			*exec = *fresh
		}
	default:
		schedule.Status = domain.ScheduleStatusError
	}

	if err := m.schedules.Save(ctx, schedule); err != nil {
		m.logger.Error("failed to save schedule", "schedule_id", schedule.ID, "error", err)
	}
	if !retrying {
		m.arm(ctx, schedule)
	}
}

// retryDelay is base * 2^retryCount, capped at maxRetryDelay.
func (m *ScheduleManager) retryDelay(retryCount int) time.Duration {
	delay := m.retryBaseDelay
	for range retryCount {
		if delay >= maxRetryDelay/2 {
			return maxRetryDelay
		}
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

// handleRetry schedules the latest failed execution for another attempt at
// now + base * 2^retryCount. Returns false once retries are exhausted.
func (m *ScheduleManager) handleRetry(ctx context.Context, schedule *domain.Schedule) bool {
	exec, err := m.executions.LatestFailed(ctx, schedule.ID)
	if err != nil {
		m.logger.Warn("no failed execution to retry", "schedule_id", schedule.ID, "error", err)
		return false
	}

	maxRetries := schedule.Settings.EffectiveMaxRetries()
	if !exec.CanRetry(maxRetries) {
		m.logger.Warn("retries exhausted", "schedule_id", schedule.ID, "execution_id", exec.ID, "retry_count", exec.RetryCount)
		if exec.NextRetry != nil {
			exec.NextRetry = nil
			if err := m.executions.Save(ctx, exec); err != nil {
				m.logger.Error("failed to save execution", "execution_id", exec.ID, "error", err)
			}
		}
		return false
	}

	delay := m.retryDelay(exec.RetryCount)
	next := m.now().Add(delay)
	exec.NextRetry = &next
	exec.RetryCount++
	if err := m.executions.Save(ctx, exec); err != nil {
		m.logger.Error("failed to schedule retry", "execution_id", exec.ID, "error", err)
		return false
	}

	m.cache.Set(ctx, scheduleRetryPrefix+exec.ID, map[string]any{
		"schedule_id":  schedule.ID,
		"execution_id": exec.ID,
		"retry_count":  exec.RetryCount,
		"next_retry":   next,
	}, delay+armBuffer)

	m.logger.Info("retry scheduled", "schedule_id", schedule.ID, "execution_id", exec.ID, "retry_count", exec.RetryCount, "next_retry", next)
	return true
}

// arm records the upcoming run in the cache for visibility. It does not
// trigger anything.
func (m *ScheduleManager) arm(ctx context.Context, schedule *domain.Schedule) {
	if !schedule.Enabled || schedule.NextRun == nil {
		return
	}
	delay := max(schedule.NextRun.Sub(m.now()), 0)
	m.cache.Set(ctx, scheduleNextPrefix+schedule.ID, map[string]any{
		"schedule_id": schedule.ID,
		"provider":    schedule.Provider,
		"next_run":    *schedule.NextRun,
	}, delay+armBuffer)
}

func (m *ScheduleManager) notify(ctx context.Context, schedule *domain.Schedule, exec *domain.Execution, success bool) {
	if m.notifier == nil || schedule.Notifications.IsEmpty() {
		return
	}
	if success && !schedule.Settings.NotifyOnCompletion {
		return
	}
	if !success && !schedule.Settings.NotifyOnFailure {
		return
	}

	outcome, event := "completed", "schedule.execution.completed"
	if !success {
		outcome, event = "failed", "schedule.execution.failed"
	}
	subject := fmt.Sprintf("%s inventory sync %s", schedule.Provider, outcome)
	text := executionSummary(schedule, exec, subject)
	targets := schedule.Notifications

	if len(targets.Emails) > 0 {
		if err := m.notifier.SendEmail(ctx, targets.Emails, subject, text); err != nil {
			m.logger.Warn("schedule email notification failed", "schedule_id", schedule.ID, "error", err)
		}
	}
	if targets.Slack != nil {
		if err := m.notifier.SendSlackMessage(ctx, *targets.Slack, text); err != nil {
			m.logger.Warn("schedule slack notification failed", "schedule_id", schedule.ID, "error", err)
		}
	}
	if targets.Webhook != nil {
		payload := map[string]any{
			"event":       event,
			"schedule_id": schedule.ID,
			"provider":    schedule.Provider,
			"execution":   exec,
		}
		if err := m.notifier.SendWebhook(ctx, *targets.Webhook, payload); err != nil {
			m.logger.Warn("schedule webhook notification failed", "schedule_id", schedule.ID, "error", err)
		}
	}
}

func executionSummary(schedule *domain.Schedule, exec *domain.Execution, title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", title)
	fmt.Fprintf(&b, "Schedule: %s\nExecution: %s\nSync: %s\nDuration: %s\n",
		schedule.ID, exec.ID, exec.SyncID, exec.Duration.Round(time.Millisecond))
	if exec.Result != nil {
		st := exec.Result.Stats
		fmt.Fprintf(&b, "Received: %d\nUpdated: %d\nUnmatched: %d\nFailed: %d\n",
			st.Received, st.Updated, st.Unmatched, st.Failed)
	}
	if exec.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", exec.Error)
	}
	if exec.RetryCount > 0 {
		fmt.Fprintf(&b, "Retries: %d\n", exec.RetryCount)
	}
	return b.String()
}
