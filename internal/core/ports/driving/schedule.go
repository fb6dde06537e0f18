package driving

import (
	"context"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// ScheduleService manages recurring sync schedules and their executions
type ScheduleService interface {
	// CreateSchedule persists a schedule with a computed next run and arms it
	CreateSchedule(ctx context.Context, req domain.CreateScheduleRequest, actor string) (*domain.Schedule, error)

	GetSchedule(ctx context.Context, id string) (*domain.Schedule, error)
	ListSchedules(ctx context.Context, filter domain.ScheduleFilter) ([]*domain.Schedule, error)

	// UpdateScheduleStatus enables or disables a schedule and recomputes its next run
	UpdateScheduleStatus(ctx context.Context, id string, enabled bool, actor string) (*domain.Schedule, error)

	// DeleteSchedule hard-deletes a schedule
	DeleteSchedule(ctx context.Context, id string) error

	// ProcessScheduledSync fires a schedule once. A missing or disabled
	// schedule is a no-op returning a nil execution.
	ProcessScheduledSync(ctx context.Context, scheduleID string) (*domain.Execution, error)

	// ProcessRetry re-runs the sync of a failed execution in place
	ProcessRetry(ctx context.Context, executionID string) (*domain.Execution, error)

	GetExecutionStatus(ctx context.Context, executionID string) (*domain.Execution, error)
	ListExecutions(ctx context.Context, scheduleID string, limit int) ([]*domain.Execution, error)
}
