package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven/mocks"
)

// mockRunner implements ScheduleRunner for testing
type mockRunner struct {
	mu         sync.Mutex
	schedules  []string
	retries    []string
	scheduleFn func(string) error
	retryFn    func(string) error

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func (m *mockRunner) track() func() {
	n := m.inFlight.Add(1)
	for {
		peak := m.maxInFlight.Load()
		if n <= peak || m.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return func() { m.inFlight.Add(-1) }
}

func (m *mockRunner) ProcessDueSchedule(ctx context.Context, id string) (*domain.Execution, error) {
	defer m.track()()
	m.mu.Lock()
	m.schedules = append(m.schedules, id)
	m.mu.Unlock()
	if m.scheduleFn != nil {
		if err := m.scheduleFn(id); err != nil {
			return nil, err
		}
	}
	return &domain.Execution{ID: "exec-" + id, ScheduleID: id, Status: domain.ExecutionStatusCompleted}, nil
}

func (m *mockRunner) ProcessRetry(ctx context.Context, id string) (*domain.Execution, error) {
	defer m.track()()
	m.mu.Lock()
	m.retries = append(m.retries, id)
	m.mu.Unlock()
	if m.retryFn != nil {
		if err := m.retryFn(id); err != nil {
			return nil, err
		}
	}
	return &domain.Execution{ID: id, Status: domain.ExecutionStatusCompleted}, nil
}

func (m *mockRunner) calls() (schedules, retries []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	schedules = append([]string(nil), m.schedules...)
	retries = append([]string(nil), m.retries...)
	sort.Strings(schedules)
	sort.Strings(retries)
	return schedules, retries
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func seedSchedule(t *testing.T, store *mocks.MockScheduleStore, id string, enabled bool, nextRun time.Time) {
	t.Helper()
	err := store.Save(context.Background(), &domain.Schedule{
		ID:      id,
		Enabled: enabled,
		NextRun: &nextRun,
		Status:  domain.ScheduleStatusActive,
	})
	if err != nil {
		t.Fatalf("seed schedule: %v", err)
	}
}

func seedRetry(t *testing.T, store *mocks.MockExecutionStore, id string, nextRetry time.Time) {
	t.Helper()
	err := store.Save(context.Background(), &domain.Execution{
		ID:         id,
		ScheduleID: "sched-retry",
		Status:     domain.ExecutionStatusFailed,
		NextRetry:  &nextRetry,
	})
	if err != nil {
		t.Fatalf("seed execution: %v", err)
	}
}

func newTestWorker(schedules *mocks.MockScheduleStore, execs *mocks.MockExecutionStore, runner ScheduleRunner, concurrency int) *Worker {
	return NewWorker(WorkerConfig{
		Schedules:    schedules,
		Executions:   execs,
		Runner:       runner,
		Logger:       testLogger(),
		Concurrency:  concurrency,
		PollInterval: 10 * time.Millisecond,
		Now:          func() time.Time { return testNow },
	})
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(WorkerConfig{})

	if w.concurrency != 1 {
		t.Errorf("expected concurrency 1, got %d", w.concurrency)
	}
	if w.pollInterval != 30*time.Second {
		t.Errorf("expected poll interval 30s, got %v", w.pollInterval)
	}
	if w.logger == nil {
		t.Error("expected default logger")
	}
	if w.now == nil {
		t.Error("expected default clock")
	}
}

func TestRunOnce_DispatchesDueSchedulesAndRetries(t *testing.T) {
	schedules := mocks.NewMockScheduleStore()
	execs := mocks.NewMockExecutionStore()
	runner := &mockRunner{}

	seedSchedule(t, schedules, "sched-due", true, testNow.Add(-time.Minute))
	seedSchedule(t, schedules, "sched-now", true, testNow)
	seedSchedule(t, schedules, "sched-future", true, testNow.Add(time.Hour))
	seedSchedule(t, schedules, "sched-disabled", false, testNow.Add(-time.Hour))
	seedRetry(t, execs, "exec-due", testNow.Add(-time.Second))
	seedRetry(t, execs, "exec-later", testNow.Add(time.Minute))

	w := newTestWorker(schedules, execs, runner, 2)
	w.RunOnce(context.Background())

	gotSchedules, gotRetries := runner.calls()
	if len(gotSchedules) != 2 || gotSchedules[0] != "sched-due" || gotSchedules[1] != "sched-now" {
		t.Errorf("unexpected schedules processed: %v", gotSchedules)
	}
	if len(gotRetries) != 1 || gotRetries[0] != "exec-due" {
		t.Errorf("unexpected retries processed: %v", gotRetries)
	}

	h := w.Health()
	if !h.LastPoll.Equal(testNow) {
		t.Errorf("expected last poll %v, got %v", testNow, h.LastPoll)
	}
	if h.Error != "" {
		t.Errorf("expected no error, got %q", h.Error)
	}
}

func TestRunOnce_RespectsConcurrency(t *testing.T) {
	schedules := mocks.NewMockScheduleStore()
	runner := &mockRunner{delay: 20 * time.Millisecond}

	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		seedSchedule(t, schedules, id, true, testNow.Add(-time.Minute))
	}

	w := newTestWorker(schedules, mocks.NewMockExecutionStore(), runner, 2)
	w.RunOnce(context.Background())

	gotSchedules, _ := runner.calls()
	if len(gotSchedules) != 6 {
		t.Fatalf("expected 6 schedules processed, got %d", len(gotSchedules))
	}
	if peak := runner.maxInFlight.Load(); peak > 2 {
		t.Errorf("expected at most 2 concurrent runs, got %d", peak)
	}
}

func TestRunOnce_FailuresAreIsolated(t *testing.T) {
	schedules := mocks.NewMockScheduleStore()
	execs := mocks.NewMockExecutionStore()
	runner := &mockRunner{
		scheduleFn: func(id string) error {
			switch id {
			case "busy":
				return domain.ErrScheduleBusy
			case "boom":
				return errors.New("provider exploded")
			case "panic":
				panic("unexpected")
			}
			return nil
		},
		retryFn: func(string) error { return domain.ErrConflict },
	}

	for _, id := range []string{"busy", "boom", "panic", "ok"} {
		seedSchedule(t, schedules, id, true, testNow.Add(-time.Minute))
	}
	seedRetry(t, execs, "exec-taken", testNow.Add(-time.Minute))

	w := newTestWorker(schedules, execs, runner, 1)
	w.RunOnce(context.Background())

	gotSchedules, gotRetries := runner.calls()
	if len(gotSchedules) != 4 {
		t.Errorf("expected every schedule attempted, got %v", gotSchedules)
	}
	if len(gotRetries) != 1 {
		t.Errorf("expected retry attempted, got %v", gotRetries)
	}
	if h := w.Health(); h.Error != "" {
		t.Errorf("per-item failures should not mark the poll as failed, got %q", h.Error)
	}
}

func TestWorker_StartStop(t *testing.T) {
	schedules := mocks.NewMockScheduleStore()
	runner := &mockRunner{}
	seedSchedule(t, schedules, "sched-1", true, testNow.Add(-time.Minute))

	w := newTestWorker(schedules, mocks.NewMockExecutionStore(), runner, 1)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// second start is a no-op
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		if s, _ := runner.calls(); len(s) >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected the worker to poll repeatedly")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !w.Health().Running {
		t.Error("expected worker to report running")
	}

	w.Stop()

	if w.Health().Running {
		t.Error("expected worker to report stopped")
	}

	// stopping twice is safe
	w.Stop()
}

func TestWorker_ContextCancellation(t *testing.T) {
	w := newTestWorker(mocks.NewMockScheduleStore(), mocks.NewMockExecutionStore(), &mockRunner{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after context cancellation")
	}
}
