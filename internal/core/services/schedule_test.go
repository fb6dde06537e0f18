package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

var hourly = domain.Frequency{Type: domain.FrequencyInterval, Value: "PT1H"}

func (h *harness) createSchedule(t *testing.T, req domain.CreateScheduleRequest) *domain.Schedule {
	t.Helper()
	if req.Provider == "" {
		req.Provider = "shipbob"
	}
	if req.Frequency.Type == "" {
		req.Frequency = hourly
	}
	s, err := h.manager.CreateSchedule(context.Background(), req, "admin")
	require.NoError(t, err)
	return s
}

func TestScheduleManager_CreateComputesNextRun(t *testing.T) {
	h := newHarness(t)
	start := h.clock.Now()

	s := h.createSchedule(t, domain.CreateScheduleRequest{})

	require.NotNil(t, s.NextRun)
	assert.Equal(t, start.Add(time.Hour), *s.NextRun)
	assert.True(t, s.Enabled)
	assert.Equal(t, domain.ScheduleStatusActive, s.Status)
	assert.Equal(t, "admin", s.CreatedBy)

	stored, err := h.manager.GetSchedule(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, stored.ID)

	key := "schedule:next:" + s.ID
	assert.True(t, h.cacheStore.Has(key), "enabled schedules are armed")
	assert.Equal(t, time.Hour+60*time.Second, h.cacheStore.TTL(key))
}

func TestScheduleManager_CreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.manager.CreateSchedule(ctx, domain.CreateScheduleRequest{
		Provider:  "shipbob",
		Frequency: domain.Frequency{Type: domain.FrequencyCron, Expression: "not a cron"},
	}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)

	_, err = h.manager.CreateSchedule(ctx, domain.CreateScheduleRequest{Provider: "unknown", Frequency: hourly}, "")
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	_, err = h.manager.CreateSchedule(ctx, domain.CreateScheduleRequest{Frequency: hourly}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	for _, n := range []int{-1, 11, 40} {
		_, err = h.manager.CreateSchedule(ctx, domain.CreateScheduleRequest{
			Provider:  "shipbob",
			Frequency: hourly,
			Settings:  domain.ScheduleSettings{RetryOnFailure: true, MaxRetries: n},
		}, "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "max retries %d", n)
	}

	list, err := h.manager.ListSchedules(ctx, domain.ScheduleFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestScheduleManager_CreateDisabled(t *testing.T) {
	h := newHarness(t)
	disabled := false

	s := h.createSchedule(t, domain.CreateScheduleRequest{Enabled: &disabled})

	assert.False(t, s.Enabled)
	assert.Equal(t, domain.ScheduleStatusPaused, s.Status)
	assert.False(t, h.cacheStore.Has("schedule:next:"+s.ID))
}

func TestScheduleManager_ProcessScheduledSyncSuccess(t *testing.T) {
	h := newHarness(t, level("A1", 5))
	h.seedItem(t, "A1", 20, 0)
	ctx := context.Background()
	s := h.createSchedule(t, domain.CreateScheduleRequest{})

	h.clock.Advance(time.Hour)
	exec, err := h.manager.ProcessScheduledSync(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, exec)

	assert.Equal(t, domain.ExecutionStatusCompleted, exec.Status)
	require.NotNil(t, exec.Result)
	assert.True(t, exec.Result.Success)
	assert.Empty(t, exec.Error)

	stored, err := h.manager.GetExecutionStatus(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusCompleted, stored.Status)

	p, err := h.progress.GetProgress(ctx, exec.SyncID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusCompleted, p.Status)
	assert.Equal(t, s.ID, p.Metadata["schedule_id"])

	updated, err := h.manager.GetSchedule(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.LastRun)
	assert.Equal(t, h.clock.Now(), *updated.LastRun)
	assert.Equal(t, h.clock.Now().Add(time.Hour), *updated.NextRun)
	assert.Equal(t, domain.ScheduleStatusActive, updated.Status)

	item, err := h.items.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)

	assert.Equal(t, []string{"schedule:lease:" + s.ID}, h.lock.Acquired())
	assert.False(t, h.lock.IsHeld("schedule:lease:"+s.ID), "lease is released")
	assert.Equal(t, 1, h.metrics.Count("schedule_completed"))
}

func TestScheduleManager_ProcessMissingOrDisabledIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	exec, err := h.manager.ProcessScheduledSync(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, exec)

	disabled := false
	s := h.createSchedule(t, domain.CreateScheduleRequest{Enabled: &disabled})
	exec, err = h.manager.ProcessScheduledSync(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, exec)
	assert.Empty(t, h.executions.All())
}

func TestScheduleManager_LeaseHeldElsewhere(t *testing.T) {
	h := newHarness(t)
	s := h.createSchedule(t, domain.CreateScheduleRequest{})
	h.lock.Hold("schedule:lease:"+s.ID, time.Minute)

	_, err := h.manager.ProcessScheduledSync(context.Background(), s.ID)
	assert.ErrorIs(t, err, domain.ErrScheduleBusy)
	assert.Empty(t, h.executions.All())
}

func TestScheduleManager_LeaseKeptForLongSync(t *testing.T) {
	h := newHarness(t, level("A1", 5))
	h.seedItem(t, "A1", 20, 0)
	s := h.createSchedule(t, domain.CreateScheduleRequest{})
	lease := "schedule:lease:" + s.ID

	manager := NewScheduleManager(ScheduleManagerConfig{
		Schedules:  h.schedules,
		Executions: h.executions,
		Inventory:  h.inventory,
		Progress:   h.progress,
		Cache:      h.cache,
		Lock:       h.lock,
		Logger:     quietLogger(),
		Now:        h.clock.Now,
		LeaseTTL:   60 * time.Millisecond,
	})

	var heldAfterTTL, stolen bool
	h.adapter.LevelsHook = func(ctx context.Context) {
		time.Sleep(250 * time.Millisecond)
		heldAfterTTL = h.lock.IsHeld(lease)
		stolen, _ = h.lock.Acquire(ctx, lease, time.Minute)
	}

	h.clock.Advance(time.Hour)
	exec, err := manager.ProcessDueSchedule(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, exec)
	assert.Equal(t, domain.ExecutionStatusCompleted, exec.Status)

	assert.True(t, heldAfterTTL, "lease outlives its TTL while the sync runs")
	assert.False(t, stolen, "no other instance can take the slot mid-sync")
	assert.GreaterOrEqual(t, h.lock.Extends(), 2)
	assert.False(t, h.lock.IsHeld(lease), "lease is released")
}

func TestScheduleManager_RetryDelayIsCapped(t *testing.T) {
	m := NewScheduleManager(ScheduleManagerConfig{})

	assert.Equal(t, time.Minute, m.retryDelay(0))
	assert.Equal(t, 8*time.Minute, m.retryDelay(3))
	assert.Equal(t, 512*time.Minute, m.retryDelay(9))
	for _, n := range []int{11, 30, 63, 200} {
		assert.Equal(t, 24*time.Hour, m.retryDelay(n), "retry %d", n)
	}
}

func TestScheduleManager_LeaseError(t *testing.T) {
	h := newHarness(t)
	s := h.createSchedule(t, domain.CreateScheduleRequest{})
	h.lock.AcquireFn = func(string, time.Duration) (bool, error) { return false, errors.New("redis down") }

	_, err := h.manager.ProcessScheduledSync(context.Background(), s.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrScheduleBusy)
}

func TestScheduleManager_ProcessDueScheduleRechecksDue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.createSchedule(t, domain.CreateScheduleRequest{})

	exec, err := h.manager.ProcessDueSchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, exec, "not due yet")

	h.clock.Advance(time.Hour)
	exec, err = h.manager.ProcessDueSchedule(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, exec)

	// the next run moved forward, so a late duplicate poll does nothing
	exec, err = h.manager.ProcessDueSchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, exec)
	assert.Len(t, h.executions.All(), 1)
}

func TestScheduleManager_FailureWithoutRetry(t *testing.T) {
	h := newHarness(t)
	h.adapter.LevelsErr = domain.IntegrationErrorFromStatus("shipbob", 500, "boom")
	ctx := context.Background()
	s := h.createSchedule(t, domain.CreateScheduleRequest{})

	exec, err := h.manager.ProcessScheduledSync(ctx, s.ID)
	require.NoError(t, err, "sync failures are recorded, not returned")

	assert.Equal(t, domain.ExecutionStatusFailed, exec.Status)
	assert.Contains(t, exec.Error, "boom")
	assert.Nil(t, exec.NextRetry)

	updated, err := h.manager.GetSchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleStatusError, updated.Status)
	assert.True(t, h.cacheStore.Has("schedule:next:"+s.ID), "next run is re-armed")
	assert.Equal(t, 1, h.metrics.Count("schedule_failed"))
}

func TestScheduleManager_PartialSyncCountsAsFailure(t *testing.T) {
	h := newHarness(t, level("A1", 5))
	h.seedItem(t, "A1", 20, 0)
	h.items.UpdateFn = func(*domain.InventoryItem) error { return errors.New("write failed") }
	s := h.createSchedule(t, domain.CreateScheduleRequest{})

	exec, err := h.manager.ProcessScheduledSync(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusFailed, exec.Status)
	require.NotNil(t, exec.Result)
	assert.Equal(t, 1, exec.Result.Stats.Failed)
}

func TestScheduleManager_RetryBackoff(t *testing.T) {
	h := newHarness(t)
	h.adapter.LevelsErr = domain.IntegrationErrorFromStatus("shipbob", 503, "unavailable")
	ctx := context.Background()
	s := h.createSchedule(t, domain.CreateScheduleRequest{
		Settings: domain.ScheduleSettings{RetryOnFailure: true, MaxRetries: 3},
	})

	exec, err := h.manager.ProcessScheduledSync(ctx, s.ID)
	require.NoError(t, err)

	for n, wantDelay := range []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute} {
		require.NotNil(t, exec.NextRetry, "retry %d should be scheduled", n+1)
		assert.Equal(t, n+1, exec.RetryCount)
		assert.Equal(t, h.clock.Now().Add(wantDelay), *exec.NextRetry)
		assert.True(t, h.cacheStore.Has("schedule:retry:"+exec.ID))

		updated, err := h.manager.GetSchedule(ctx, s.ID)
		require.NoError(t, err)
		assert.NotEqual(t, domain.ScheduleStatusError, updated.Status)

		h.clock.Advance(wantDelay)
		exec, err = h.manager.ProcessRetry(ctx, exec.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ExecutionStatusFailed, exec.Status)
	}

	// three retries used: the chain stops
	assert.Nil(t, exec.NextRetry)
	assert.Equal(t, 3, exec.RetryCount)
	assert.Len(t, h.executions.All(), 1, "retries reuse the execution record")

	updated, err := h.manager.GetSchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleStatusError, updated.Status)

	_, err = h.manager.ProcessRetry(ctx, exec.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestScheduleManager_RetrySucceeds(t *testing.T) {
	h := newHarness(t, level("A1", 5))
	h.seedItem(t, "A1", 20, 0)
	h.adapter.LevelsErr = errors.New("connection reset")
	ctx := context.Background()
	s := h.createSchedule(t, domain.CreateScheduleRequest{
		Settings: domain.ScheduleSettings{RetryOnFailure: true},
	})

	exec, err := h.manager.ProcessScheduledSync(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, exec.NextRetry)

	h.adapter.LevelsErr = nil
	h.clock.Advance(time.Minute)
	exec, err = h.manager.ProcessRetry(ctx, exec.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.ExecutionStatusCompleted, exec.Status)
	assert.Nil(t, exec.NextRetry)
	assert.Empty(t, exec.Error)
	assert.False(t, h.cacheStore.Has("schedule:retry:"+exec.ID))

	updated, err := h.manager.GetSchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleStatusActive, updated.Status)
}

func TestScheduleManager_RetryOfDisabledScheduleIsDropped(t *testing.T) {
	h := newHarness(t)
	h.adapter.LevelsErr = errors.New("down")
	ctx := context.Background()
	s := h.createSchedule(t, domain.CreateScheduleRequest{
		Settings: domain.ScheduleSettings{RetryOnFailure: true},
	})

	exec, err := h.manager.ProcessScheduledSync(ctx, s.ID)
	require.NoError(t, err)
	_, err = h.manager.UpdateScheduleStatus(ctx, s.ID, false, "admin")
	require.NoError(t, err)

	exec, err = h.manager.ProcessRetry(ctx, exec.ID)
	require.NoError(t, err)
	assert.Nil(t, exec.NextRetry)
	assert.Equal(t, 1, h.adapter.InventoryCalls(), "no sync is attempted")
}

func TestScheduleManager_Notifications(t *testing.T) {
	targets := domain.NotificationTargets{
		Emails:  []string{"ops@example.com"},
		Slack:   &domain.SlackTarget{Webhook: "https://hooks.slack.com/x", Channel: "#ops"},
		Webhook: &domain.WebhookTarget{URL: "https://example.com/notify"},
	}

	t.Run("failure", func(t *testing.T) {
		h := newHarness(t)
		h.adapter.LevelsErr = errors.New("down")
		h.notifier.Err = errors.New("smtp down")
		s := h.createSchedule(t, domain.CreateScheduleRequest{
			Settings:      domain.ScheduleSettings{NotifyOnFailure: true},
			Notifications: targets,
		})

		exec, err := h.manager.ProcessScheduledSync(context.Background(), s.ID)
		require.NoError(t, err, "notification failures are swallowed")
		assert.Equal(t, domain.ExecutionStatusFailed, exec.Status)

		emails := h.notifier.Sent("email")
		require.Len(t, emails, 1)
		assert.Equal(t, []string{"ops@example.com"}, emails[0].To)
		assert.Contains(t, emails[0].Subject, "failed")
		assert.Contains(t, emails[0].Body, "down")
		assert.Len(t, h.notifier.Sent("slack"), 1)
		hooks := h.notifier.Sent("webhook")
		require.Len(t, hooks, 1)
		payload, ok := hooks[0].Payload.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "schedule.execution.failed", payload["event"])
	})

	t.Run("completion not requested", func(t *testing.T) {
		h := newHarness(t)
		s := h.createSchedule(t, domain.CreateScheduleRequest{
			Settings:      domain.ScheduleSettings{NotifyOnFailure: true},
			Notifications: targets,
		})

		_, err := h.manager.ProcessScheduledSync(context.Background(), s.ID)
		require.NoError(t, err)
		assert.Empty(t, h.notifier.Sent("email"))
	})

	t.Run("completion", func(t *testing.T) {
		h := newHarness(t)
		s := h.createSchedule(t, domain.CreateScheduleRequest{
			Settings:      domain.ScheduleSettings{NotifyOnCompletion: true},
			Notifications: domain.NotificationTargets{Emails: []string{"ops@example.com"}},
		})

		_, err := h.manager.ProcessScheduledSync(context.Background(), s.ID)
		require.NoError(t, err)
		emails := h.notifier.Sent("email")
		require.Len(t, emails, 1)
		assert.Contains(t, emails[0].Subject, "completed")
		assert.Empty(t, h.notifier.Sent("slack"))
	})
}

func TestScheduleManager_UpdateStatusAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.createSchedule(t, domain.CreateScheduleRequest{})
	key := "schedule:next:" + s.ID

	h.clock.Advance(10 * time.Minute)
	paused, err := h.manager.UpdateScheduleStatus(ctx, s.ID, false, "tenant-1")
	require.NoError(t, err)
	assert.False(t, paused.Enabled)
	assert.Equal(t, domain.ScheduleStatusPaused, paused.Status)
	assert.Equal(t, "tenant-1", paused.UpdatedBy)
	assert.False(t, h.cacheStore.Has(key))

	resumed, err := h.manager.UpdateScheduleStatus(ctx, s.ID, true, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleStatusActive, resumed.Status)
	assert.Equal(t, h.clock.Now().Add(time.Hour), *resumed.NextRun)
	assert.True(t, h.cacheStore.Has(key))

	list, err := h.manager.ListSchedules(ctx, domain.ScheduleFilter{Provider: "shipbob"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, h.manager.DeleteSchedule(ctx, s.ID))
	assert.False(t, h.cacheStore.Has(key))
	_, err = h.manager.GetSchedule(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, h.manager.DeleteSchedule(ctx, s.ID), domain.ErrNotFound)

	_, err = h.manager.UpdateScheduleStatus(ctx, "missing", true, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScheduleManager_ListExecutions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.createSchedule(t, domain.CreateScheduleRequest{})

	for range 3 {
		_, err := h.manager.ProcessScheduledSync(ctx, s.ID)
		require.NoError(t, err)
		h.clock.Advance(time.Minute)
	}

	execs, err := h.manager.ListExecutions(ctx, s.ID, 0)
	require.NoError(t, err)
	require.Len(t, execs, 3)
	assert.True(t, execs[0].StartTime.After(execs[2].StartTime), "newest first")

	execs, err = h.manager.ListExecutions(ctx, s.ID, 2)
	require.NoError(t, err)
	assert.Len(t, execs, 2)
}
