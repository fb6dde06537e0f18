package domain

import (
	"fmt"
	"time"
)

// FrequencyType selects how the next run of a schedule is computed
type FrequencyType string

const (
	// FrequencyInterval repeats after a fixed ISO-8601 duration (e.g. "PT1H")
	FrequencyInterval FrequencyType = "interval"
	// FrequencyCron fires on a cron expression evaluated in a timezone
	FrequencyCron FrequencyType = "cron"
)

// Frequency describes when a schedule fires.
type Frequency struct {
	Type FrequencyType `json:"type"`

	// Value is the ISO-8601 duration for interval frequencies
	Value string `json:"value,omitempty"`

	// Expression and Timezone are used for cron frequencies
	Expression string `json:"expression,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
}

// Validate checks that the fields required by the frequency type are present.
// Parsing of the duration or expression itself happens when computing next runs.
func (f Frequency) Validate() error {
	switch f.Type {
	case FrequencyInterval:
		if f.Value == "" {
			return fmt.Errorf("%w: interval frequency requires a duration", ErrInvalidFrequency)
		}
	case FrequencyCron:
		if f.Expression == "" {
			return fmt.Errorf("%w: cron frequency requires an expression", ErrInvalidFrequency)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidFrequency, f.Type)
	}
	return nil
}

// ScheduleStatus is the operational state of a schedule
type ScheduleStatus string

const (
	ScheduleStatusActive ScheduleStatus = "active"
	ScheduleStatusPaused ScheduleStatus = "paused"
	ScheduleStatusError  ScheduleStatus = "error"
)

// ScheduleFilters optionally scopes a sync to a subset of inventory
type ScheduleFilters struct {
	Warehouses []string `json:"warehouses,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// DefaultMaxRetries applies when a schedule does not set MaxRetries
const DefaultMaxRetries = 3

// ScheduleSettings controls retry and notification behaviour
type ScheduleSettings struct {
	RetryOnFailure     bool `json:"retry_on_failure"`
	MaxRetries         int  `json:"max_retries"`
	NotifyOnCompletion bool `json:"notify_on_completion"`
	NotifyOnFailure    bool `json:"notify_on_failure"`
}

// EffectiveMaxRetries returns MaxRetries or the default when unset.
func (s ScheduleSettings) EffectiveMaxRetries() int {
	if s.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return s.MaxRetries
}

// SlackTarget is a chat-webhook notification destination
type SlackTarget struct {
	Webhook string `json:"webhook"`
	Channel string `json:"channel,omitempty"`
}

// WebhookTarget is a generic HTTP notification destination
type WebhookTarget struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// NotificationTargets lists where completion and failure notices go.
// Every target is optional.
type NotificationTargets struct {
	Emails  []string       `json:"emails,omitempty"`
	Slack   *SlackTarget   `json:"slack,omitempty"`
	Webhook *WebhookTarget `json:"webhook,omitempty"`
}

// IsEmpty reports whether no target is configured.
func (n NotificationTargets) IsEmpty() bool {
	return len(n.Emails) == 0 && n.Slack == nil && n.Webhook == nil
}

// Schedule is a recurring sync definition for one provider.
type Schedule struct {
	ID            string              `json:"id"`
	Provider      string              `json:"provider"`
	Enabled       bool                `json:"enabled"`
	Frequency     Frequency           `json:"frequency"`
	Filters       ScheduleFilters     `json:"filters"`
	Settings      ScheduleSettings    `json:"settings"`
	Notifications NotificationTargets `json:"notifications"`
	LastRun       *time.Time          `json:"last_run,omitempty"`
	NextRun       *time.Time          `json:"next_run,omitempty"`
	Status        ScheduleStatus      `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	CreatedBy     string              `json:"created_by,omitempty"`
	UpdatedBy     string              `json:"updated_by,omitempty"`
}

// IsDue returns true if the schedule is enabled and its next run has passed.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Enabled && s.NextRun != nil && !now.Before(*s.NextRun)
}

// CreateScheduleRequest is the input for creating a schedule
type CreateScheduleRequest struct {
	Provider      string              `json:"provider"`
	Enabled       *bool               `json:"enabled,omitempty"`
	Frequency     Frequency           `json:"frequency"`
	Filters       ScheduleFilters     `json:"filters"`
	Settings      ScheduleSettings    `json:"settings"`
	Notifications NotificationTargets `json:"notifications"`
}

// ScheduleFilter narrows ListSchedules
type ScheduleFilter struct {
	Provider string
	Status   ScheduleStatus
}

// ExecutionStatus tracks one firing of a schedule
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Execution is the audit record of one schedule firing. Retries of the same
// failure chain update RetryCount and NextRetry on this record.
type Execution struct {
	ID         string          `json:"id"`
	ScheduleID string          `json:"schedule_id"`
	SyncID     string          `json:"sync_id"`
	Provider   string          `json:"provider"`
	Status     ExecutionStatus `json:"status"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    *time.Time      `json:"end_time,omitempty"`
	Duration   time.Duration   `json:"duration"`
	RetryCount int             `json:"retry_count"`
	NextRetry  *time.Time      `json:"next_retry,omitempty"`
	Result     *SyncResult     `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// NewExecution creates a pending execution for a schedule firing
func NewExecution(schedule *Schedule, syncID string, now time.Time) *Execution {
	return &Execution{
		ID:         GenerateID(),
		ScheduleID: schedule.ID,
		SyncID:     syncID,
		Provider:   schedule.Provider,
		Status:     ExecutionStatusPending,
		StartTime:  now,
	}
}

// Complete marks the execution as successful
func (e *Execution) Complete(result *SyncResult, now time.Time) {
	e.Status = ExecutionStatusCompleted
	e.EndTime = &now
	e.Duration = now.Sub(e.StartTime)
	e.Result = result
	e.Error = ""
	e.NextRetry = nil
}

// Fail marks the execution as failed
func (e *Execution) Fail(err error, now time.Time) {
	e.Status = ExecutionStatusFailed
	e.EndTime = &now
	e.Duration = now.Sub(e.StartTime)
	if err != nil {
		e.Error = err.Error()
	}
}

// CanRetry returns true if another retry is allowed under maxRetries
func (e *Execution) CanRetry(maxRetries int) bool {
	return e.RetryCount < maxRetries
}
