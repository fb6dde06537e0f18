package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

var _ driven.ScheduleStore = (*ScheduleStore)(nil)

// ScheduleStore implements driven.ScheduleStore using PostgreSQL.
// Frequency, filters, settings and notification targets are JSONB columns.
type ScheduleStore struct {
	db *DB
}

// NewScheduleStore creates a new ScheduleStore
func NewScheduleStore(db *DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

const scheduleColumns = `id, provider, enabled, frequency, filters, settings, notifications,
	last_run, next_run, status, created_at, updated_at, created_by, updated_by`

func (s *ScheduleStore) Save(ctx context.Context, sched *domain.Schedule) error {
	frequency, err := toJSON(sched.Frequency)
	if err != nil {
		return err
	}
	filters, err := toJSON(sched.Filters)
	if err != nil {
		return err
	}
	settings, err := toJSON(sched.Settings)
	if err != nil {
		return err
	}
	notifications, err := toJSON(sched.Notifications)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO schedules (` + scheduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			provider = EXCLUDED.provider,
			enabled = EXCLUDED.enabled,
			frequency = EXCLUDED.frequency,
			filters = EXCLUDED.filters,
			settings = EXCLUDED.settings,
			notifications = EXCLUDED.notifications,
			last_run = EXCLUDED.last_run,
			next_run = EXCLUDED.next_run,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`
	_, err = s.db.ExecContext(ctx, query,
		sched.ID,
		sched.Provider,
		sched.Enabled,
		frequency,
		filters,
		settings,
		notifications,
		NullTime(sched.LastRun),
		NullTime(sched.NextRun),
		string(sched.Status),
		sched.CreatedAt,
		sched.UpdatedAt,
		sched.CreatedBy,
		sched.UpdatedBy,
	)
	return err
}

func scanSchedule(row scanner) (*domain.Schedule, error) {
	var sched domain.Schedule
	var frequency, filters, settings, notifications []byte
	var lastRun, nextRun sql.NullTime
	var status string

	if err := row.Scan(
		&sched.ID,
		&sched.Provider,
		&sched.Enabled,
		&frequency,
		&filters,
		&settings,
		&notifications,
		&lastRun,
		&nextRun,
		&status,
		&sched.CreatedAt,
		&sched.UpdatedAt,
		&sched.CreatedBy,
		&sched.UpdatedBy,
	); err != nil {
		return nil, err
	}

	for _, col := range []struct {
		raw  []byte
		dest any
	}{
		{frequency, &sched.Frequency},
		{filters, &sched.Filters},
		{settings, &sched.Settings},
		{notifications, &sched.Notifications},
	} {
		if err := fromJSON(col.raw, col.dest); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", sched.ID, err)
		}
	}
	sched.LastRun = TimePtr(lastRun)
	sched.NextRun = TimePtr(nextRun)
	sched.Status = domain.ScheduleStatus(status)
	return &sched, nil
}

func (s *ScheduleStore) Get(ctx context.Context, id string) (*domain.Schedule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id)
	sched, err := scanSchedule(row)
	if err != nil {
		return nil, notFound(err, domain.ErrNotFound)
	}
	return sched, nil
}

func (s *ScheduleStore) List(ctx context.Context, filter domain.ScheduleFilter) ([]*domain.Schedule, error) {
	var conds []string
	var args []any
	if filter.Provider != "" {
		args = append(args, filter.Provider)
		conds = append(conds, fmt.Sprintf("provider = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	return s.query(ctx, query, args...)
}

// ListDue returns enabled schedules whose next run has passed, oldest first
func (s *ScheduleStore) ListDue(ctx context.Context, now time.Time) ([]*domain.Schedule, error) {
	return s.query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE enabled AND next_run IS NOT NULL AND next_run <= $1
		ORDER BY next_run ASC
	`, now)
}

func (s *ScheduleStore) query(ctx context.Context, query string, args ...any) ([]*domain.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sched)
	}
	return result, rows.Err()
}

func (s *ScheduleStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(res, domain.ErrNotFound)
}

var _ driven.ExecutionStore = (*ExecutionStore)(nil)

// ExecutionStore implements driven.ExecutionStore using PostgreSQL
type ExecutionStore struct {
	db *DB
}

// NewExecutionStore creates a new ExecutionStore
func NewExecutionStore(db *DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

const executionColumns = `id, schedule_id, sync_id, provider, status, start_time, end_time,
	duration_ns, retry_count, next_retry, result, error`

func (s *ExecutionStore) Save(ctx context.Context, exec *domain.Execution) error {
	var result []byte
	if exec.Result != nil {
		var err error
		if result, err = toJSON(exec.Result); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			end_time = EXCLUDED.end_time,
			duration_ns = EXCLUDED.duration_ns,
			retry_count = EXCLUDED.retry_count,
			next_retry = EXCLUDED.next_retry,
			result = EXCLUDED.result,
			error = EXCLUDED.error
	`
	_, err := s.db.ExecContext(ctx, query,
		exec.ID,
		exec.ScheduleID,
		exec.SyncID,
		exec.Provider,
		string(exec.Status),
		exec.StartTime,
		NullTime(exec.EndTime),
		int64(exec.Duration),
		exec.RetryCount,
		NullTime(exec.NextRetry),
		result,
		exec.Error,
	)
	return err
}

func scanExecution(row scanner) (*domain.Execution, error) {
	var exec domain.Execution
	var status string
	var endTime, nextRetry sql.NullTime
	var durationNs int64
	var result []byte

	if err := row.Scan(
		&exec.ID,
		&exec.ScheduleID,
		&exec.SyncID,
		&exec.Provider,
		&status,
		&exec.StartTime,
		&endTime,
		&durationNs,
		&exec.RetryCount,
		&nextRetry,
		&result,
		&exec.Error,
	); err != nil {
		return nil, err
	}

	if len(result) > 0 {
		exec.Result = &domain.SyncResult{}
		if err := fromJSON(result, exec.Result); err != nil {
			return nil, fmt.Errorf("execution %s: %w", exec.ID, err)
		}
	}
	exec.Status = domain.ExecutionStatus(status)
	exec.EndTime = TimePtr(endTime)
	exec.NextRetry = TimePtr(nextRetry)
	exec.Duration = time.Duration(durationNs)
	return &exec, nil
}

func (s *ExecutionStore) Get(ctx context.Context, id string) (*domain.Execution, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM executions WHERE id = $1`, id)
	exec, err := scanExecution(row)
	if err != nil {
		return nil, notFound(err, domain.ErrNotFound)
	}
	return exec, nil
}

func (s *ExecutionStore) ListBySchedule(ctx context.Context, scheduleID string, limit int) ([]*domain.Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx, `
		SELECT `+executionColumns+`
		FROM executions
		WHERE schedule_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, scheduleID, limit)
}

func (s *ExecutionStore) LatestFailed(ctx context.Context, scheduleID string) (*domain.Execution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+executionColumns+`
		FROM executions
		WHERE schedule_id = $1 AND status = $2
		ORDER BY start_time DESC
		LIMIT 1
	`, scheduleID, string(domain.ExecutionStatusFailed))
	exec, err := scanExecution(row)
	if err != nil {
		return nil, notFound(err, domain.ErrNotFound)
	}
	return exec, nil
}

func (s *ExecutionStore) ListDueRetries(ctx context.Context, now time.Time) ([]*domain.Execution, error) {
	return s.query(ctx, `
		SELECT `+executionColumns+`
		FROM executions
		WHERE status = $1 AND next_retry IS NOT NULL AND next_retry <= $2
		ORDER BY next_retry ASC
	`, string(domain.ExecutionStatusFailed), now)
}

func (s *ExecutionStore) query(ctx context.Context, query string, args ...any) ([]*domain.Execution, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, exec)
	}
	return result, rows.Err()
}
