package driven

import "time"

// MetricsRecorder records operational metrics. Implementations never fail.
type MetricsRecorder interface {
	ObserveProviderCall(provider string, status int, d time.Duration)
	RecordSync(provider string, success bool, d time.Duration)
	AddInventoryUpdates(provider string, n int)
	RecordLowStock(provider string)
	RecordScheduleRun(outcome string)
	RecordWebhookDelivery(success bool)
	RecordCache(hit bool)
}

// NopMetrics discards all metrics
type NopMetrics struct{}

func (NopMetrics) ObserveProviderCall(string, int, time.Duration) {}
func (NopMetrics) RecordSync(string, bool, time.Duration)         {}
func (NopMetrics) AddInventoryUpdates(string, int)                {}
func (NopMetrics) RecordLowStock(string)                          {}
func (NopMetrics) RecordScheduleRun(string)                       {}
func (NopMetrics) RecordWebhookDelivery(bool)                     {}
func (NopMetrics) RecordCache(bool)                               {}
