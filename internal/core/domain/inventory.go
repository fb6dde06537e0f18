package domain

import (
	"fmt"
	"time"
)

// AdjustmentType is the kind of manual stock change
type AdjustmentType string

const (
	AdjustmentIncrease AdjustmentType = "increase"
	AdjustmentDecrease AdjustmentType = "decrease"
	AdjustmentSet      AdjustmentType = "set"
)

// Adjustment is one entry in an item's adjustment history
type Adjustment struct {
	Type      AdjustmentType `json:"type"`
	Quantity  int            `json:"quantity"`
	Reason    string         `json:"reason,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	User      string         `json:"user"`
}

// Thresholds drive low-stock and reorder alerts. Zero disables a threshold.
type Thresholds struct {
	Low     int `json:"low"`
	Reorder int `json:"reorder"`
	Max     int `json:"max"`
}

// InventoryItem is the stock record of one SKU
type InventoryItem struct {
	SKU               string         `json:"sku"`
	ProductID         string         `json:"product_id,omitempty"`
	Quantity          int            `json:"quantity"`
	ReservedQuantity  int            `json:"reserved_quantity"`
	AvailableQuantity int            `json:"available_quantity"`
	WarehouseID       string         `json:"warehouse_id,omitempty"`
	Provider          string         `json:"provider,omitempty"`
	LastSyncedAt      *time.Time     `json:"last_synced_at,omitempty"`
	Thresholds        Thresholds     `json:"thresholds"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	Adjustments       []Adjustment   `json:"adjustments,omitempty"`
	UpdatedAt         time.Time      `json:"updated_at"`

	// Version is incremented on every write and used for optimistic updates
	Version int64 `json:"-"`
}

// SetQuantity sets Quantity and keeps AvailableQuantity in step.
func (i *InventoryItem) SetQuantity(q int) {
	i.Quantity = q
	i.AvailableQuantity = q - i.ReservedQuantity
}

// IsLow reports whether quantity is at or below the low threshold
func (i *InventoryItem) IsLow() bool {
	return i.Thresholds.Low > 0 && i.Quantity <= i.Thresholds.Low
}

// CrossedBelowLow reports whether a change from previous to the current
// quantity moved the item under its low threshold.
func (i *InventoryItem) CrossedBelowLow(previous int) bool {
	return i.Thresholds.Low > 0 && previous >= i.Thresholds.Low && i.Quantity < i.Thresholds.Low
}

// Category returns the "category" metadata value, if any
func (i *InventoryItem) Category() string {
	if v, ok := i.Metadata["category"].(string); ok {
		return v
	}
	return ""
}

// AdjustInventoryRequest is the input for a manual stock change
type AdjustInventoryRequest struct {
	SKU      string         `json:"sku"`
	Quantity int            `json:"quantity"`
	Type     AdjustmentType `json:"type"`
	Reason   string         `json:"reason,omitempty"`
}

// Validate checks the request shape
func (r AdjustInventoryRequest) Validate() error {
	if r.SKU == "" {
		return fmt.Errorf("%w: sku is required", ErrInvalidInput)
	}
	if r.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}
	switch r.Type {
	case AdjustmentIncrease, AdjustmentDecrease, AdjustmentSet:
	default:
		return fmt.Errorf("%w: unknown adjustment type %q", ErrInvalidInput, r.Type)
	}
	return nil
}

// Apply computes the new quantity for the item and appends the adjustment.
// A decrease below zero is rejected with ErrNegativeInventory and leaves the
// item untouched.
func (i *InventoryItem) Apply(req AdjustInventoryRequest, user string, now time.Time) error {
	next := i.Quantity
	switch req.Type {
	case AdjustmentIncrease:
		next += req.Quantity
	case AdjustmentDecrease:
		next -= req.Quantity
	case AdjustmentSet:
		next = req.Quantity
	}
	if next < 0 {
		return fmt.Errorf("%w: sku %s has %d, cannot remove %d", ErrNegativeInventory, i.SKU, i.Quantity, req.Quantity)
	}

	i.SetQuantity(next)
	i.UpdatedAt = now
	i.Adjustments = append(i.Adjustments, Adjustment{
		Type:      req.Type,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		Timestamp: now,
		User:      user,
	})
	return nil
}

// InventoryView is the response of GetInventory
type InventoryView struct {
	Provider  string           `json:"provider"`
	Levels    []InventoryLevel `json:"levels"`
	Cached    bool             `json:"cached"`
	Timestamp time.Time        `json:"timestamp"`
}

// LowStockAlert is the payload of the inventory.low_stock event
type LowStockAlert struct {
	SKU       string    `json:"sku"`
	Provider  string    `json:"provider,omitempty"`
	Quantity  int       `json:"quantity"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}
