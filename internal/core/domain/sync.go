package domain

import (
	"math"
	"time"
)

// SyncStatus represents the current state of a sync run
type SyncStatus string

const (
	SyncStatusQueued    SyncStatus = "queued"
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusPaused    SyncStatus = "paused"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
	SyncStatusCancelled SyncStatus = "cancelled"
)

// IsTerminal returns true for statuses that stamp a completion time
func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusCompleted || s == SyncStatusFailed
}

// IsActive returns true while a sync may still make progress
func (s SyncStatus) IsActive() bool {
	return s == SyncStatusQueued || s == SyncStatusRunning || s == SyncStatusPaused
}

// ProgressCounters holds item counts for a sync run
type ProgressCounters struct {
	Total      int `json:"total"`
	Processed  int `json:"processed"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Percentage int `json:"percentage"`
}

// Recompute updates Percentage from Processed and Total.
func (c *ProgressCounters) Recompute() {
	if c.Total > 0 {
		c.Percentage = int(math.Round(float64(c.Processed) / float64(c.Total) * 100))
	}
}

// Consistent reports whether Processed equals Succeeded plus Failed
func (c ProgressCounters) Consistent() bool {
	return c.Processed == c.Succeeded+c.Failed
}

// ProgressTimestamps records lifecycle times of a sync run
type ProgressTimestamps struct {
	Started     time.Time  `json:"started"`
	LastUpdated time.Time  `json:"last_updated"`
	Completed   *time.Time `json:"completed,omitempty"`
	Cancelled   *time.Time `json:"cancelled,omitempty"`
	Paused      *time.Time `json:"paused,omitempty"`
	Resumed     *time.Time `json:"resumed,omitempty"`
}

// ProgressIssue is an error or warning attached to a sync run
type ProgressIssue struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Reporter  string    `json:"reporter,omitempty"`
}

// SyncProgress is the live state of one synchronization run
type SyncProgress struct {
	SyncID     string             `json:"sync_id"`
	Provider   string             `json:"provider"`
	RequestID  string             `json:"request_id,omitempty"`
	Status     SyncStatus         `json:"status"`
	Progress   ProgressCounters   `json:"progress"`
	Timestamps ProgressTimestamps `json:"timestamps"`
	Errors     []ProgressIssue    `json:"errors"`
	Warnings   []ProgressIssue    `json:"warnings"`
	Metadata   map[string]any     `json:"metadata,omitempty"`
	CreatedBy  string             `json:"created_by,omitempty"`
	UpdatedBy  string             `json:"updated_by,omitempty"`
}

// ProgressEvent is the event name used on per-sync broadcast channels
const ProgressEvent = "progress-update"

// SyncChannel returns the broadcast channel of a sync
func SyncChannel(syncID string) string {
	return "sync-" + syncID
}

// InitializeSyncRequest is the input for starting progress tracking
type InitializeSyncRequest struct {
	SyncID     string         `json:"sync_id"`
	Provider   string         `json:"provider"`
	RequestID  string         `json:"request_id,omitempty"`
	TotalItems int            `json:"total_items"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ProgressUpdate carries a partial update. Nil fields are left unchanged.
type ProgressUpdate struct {
	Total     *int           `json:"total,omitempty"`
	Processed *int           `json:"processed,omitempty"`
	Succeeded *int           `json:"succeeded,omitempty"`
	Failed    *int           `json:"failed,omitempty"`
	Status    *SyncStatus    `json:"status,omitempty"`
	Error     *ProgressIssue `json:"error,omitempty"`
	Warning   *ProgressIssue `json:"warning,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// InventoryLevel is one stock reading returned by a provider adapter
type InventoryLevel struct {
	SKU         string    `json:"sku"`
	Quantity    int       `json:"quantity"`
	WarehouseID string    `json:"warehouse_id,omitempty"`
	Location    string    `json:"location,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// SyncStats summarises reconciliation of one sync run
type SyncStats struct {
	Received  int `json:"received"`
	Updated   int `json:"updated"`
	Unmatched int `json:"unmatched"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	LowStock  int `json:"low_stock"`
}

// SyncResult represents the outcome of SyncInventory
type SyncResult struct {
	Success   bool             `json:"success"`
	SyncID    string           `json:"sync_id"`
	Provider  string           `json:"provider"`
	Data      []InventoryLevel `json:"data,omitempty"`
	Stats     SyncStats        `json:"stats"`
	Cancelled bool             `json:"cancelled,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	User      string           `json:"user,omitempty"`
}

// SyncOptions scopes a sync run
type SyncOptions struct {
	// SyncID correlates the run with an existing progress record.
	// When empty a new one is created.
	SyncID    string
	RequestID string
	Filters   ScheduleFilters
	User      string
}
