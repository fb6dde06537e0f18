package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// ScheduleRunner fires schedules and retries. Implemented by the schedule
// manager; each call takes the per-schedule lease itself.
type ScheduleRunner interface {
	ProcessDueSchedule(ctx context.Context, scheduleID string) (*domain.Execution, error)
	ProcessRetry(ctx context.Context, executionID string) (*domain.Execution, error)
}

// Worker polls for due schedules and pending retries and hands them to the
// schedule manager. It is the only trigger for scheduled syncs.
type Worker struct {
	schedules  driven.ScheduleStore
	executions driven.ExecutionStore
	runner     ScheduleRunner
	logger     *slog.Logger
	now        func() time.Time

	// Configuration
	concurrency  int
	pollInterval time.Duration

	// Internal state
	mu       sync.RWMutex
	running  bool
	lastPoll time.Time
	lastErr  error
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	Schedules    driven.ScheduleStore
	Executions   driven.ExecutionStore
	Runner       ScheduleRunner
	Logger       *slog.Logger
	Concurrency  int           // schedules processed in parallel per poll
	PollInterval time.Duration // default: 30s
	Now          func() time.Time
}

// NewWorker creates a new schedule worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Worker{
		schedules:    cfg.Schedules,
		executions:   cfg.Executions,
		runner:       cfg.Runner,
		logger:       logger,
		now:          now,
		concurrency:  concurrency,
		pollInterval: pollInterval,
	}
}

// Start begins the poll loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"poll_interval", w.pollInterval,
	)

	go w.loop(ctx)
	return nil
}

// Stop gracefully stops the worker, waiting for the current poll to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)

		select {
		case <-ctx.Done():
			w.logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			w.logger.Info("worker stop signal received")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes every schedule and retry due now and returns when all
// of them have finished. Failures of one item never stop the others.
func (w *Worker) RunOnce(ctx context.Context) {
	now := w.now()

	due, err := w.schedules.ListDue(ctx, now)
	if err != nil {
		w.recordPoll(now, err)
		w.logger.Error("failed to list due schedules", "error", err)
		return
	}

	retries, err := w.executions.ListDueRetries(ctx, now)
	if err != nil {
		// schedules can still run
		w.logger.Error("failed to list due retries", "error", err)
	}
	w.recordPoll(now, err)

	if len(due) == 0 && len(retries) == 0 {
		return
	}
	w.logger.Debug("poll found work", "schedules", len(due), "retries", len(retries))

	g := &errgroup.Group{}
	g.SetLimit(w.concurrency)

	for _, s := range due {
		id := s.ID
		g.Go(func() error {
			w.handle(ctx, "schedule_id", id, w.runner.ProcessDueSchedule)
			return nil
		})
	}
	for _, e := range retries {
		id := e.ID
		g.Go(func() error {
			w.handle(ctx, "execution_id", id, w.runner.ProcessRetry)
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Worker) handle(ctx context.Context, key, id string, fn func(context.Context, string) (*domain.Execution, error)) {
	logger := w.logger.With(key, id)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("schedule processing panicked", "panic", r)
		}
	}()

	exec, err := fn(ctx, id)
	switch {
	case errors.Is(err, domain.ErrScheduleBusy):
		logger.Debug("schedule busy on another instance, skipping")
	case errors.Is(err, domain.ErrConflict):
		logger.Debug("retry already taken, skipping")
	case err != nil:
		logger.Error("schedule processing failed", "duration", time.Since(start), "error", err)
	case exec != nil:
		logger.Info("schedule processed",
			"execution_id", exec.ID,
			"status", exec.Status,
			"duration", time.Since(start),
		)
	}
}

func (w *Worker) recordPoll(at time.Time, err error) {
	w.mu.Lock()
	w.lastPoll = at
	w.lastErr = err
	w.mu.Unlock()
}

// Health returns health status of the worker.
type Health struct {
	Running  bool      `json:"running"`
	LastPoll time.Time `json:"last_poll"`
	Error    string    `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health() Health {
	w.mu.RLock()
	defer w.mu.RUnlock()

	h := Health{Running: w.running, LastPoll: w.lastPoll}
	if w.lastErr != nil {
		h.Error = w.lastErr.Error()
	}
	return h
}
