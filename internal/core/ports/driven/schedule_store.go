package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// ScheduleStore persists schedules (PostgreSQL)
type ScheduleStore interface {
	// Save creates or updates a schedule
	Save(ctx context.Context, schedule *domain.Schedule) error

	// Get retrieves a schedule by ID
	Get(ctx context.Context, id string) (*domain.Schedule, error)

	// List retrieves schedules matching the filter, newest first
	List(ctx context.Context, filter domain.ScheduleFilter) ([]*domain.Schedule, error)

	// ListDue retrieves enabled schedules whose next run is at or before now
	ListDue(ctx context.Context, now time.Time) ([]*domain.Schedule, error)

	// Delete hard-deletes a schedule
	Delete(ctx context.Context, id string) error
}

// ExecutionStore persists the audit trail of schedule firings (PostgreSQL).
// Executions are never deleted.
type ExecutionStore interface {
	Save(ctx context.Context, exec *domain.Execution) error
	Get(ctx context.Context, id string) (*domain.Execution, error)

	// ListBySchedule returns executions for a schedule, newest first
	ListBySchedule(ctx context.Context, scheduleID string, limit int) ([]*domain.Execution, error)

	// LatestFailed returns the most recent failed execution of a schedule
	LatestFailed(ctx context.Context, scheduleID string) (*domain.Execution, error)

	// ListDueRetries returns failed executions whose NextRetry is at or before now
	ListDueRetries(ctx context.Context, now time.Time) ([]*domain.Execution, error)
}
