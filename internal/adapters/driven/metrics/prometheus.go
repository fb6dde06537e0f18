// Package metrics records SyncBridge operational metrics in Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

const namespace = "syncbridge"

var _ driven.MetricsRecorder = (*Prometheus)(nil)

// Prometheus implements MetricsRecorder with collectors on a registry
type Prometheus struct {
	gatherer prometheus.Gatherer

	// Provider metrics
	ProviderCalls        *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec

	// Sync metrics
	SyncsTotal       *prometheus.CounterVec
	SyncDuration     *prometheus.HistogramVec
	InventoryUpdates *prometheus.CounterVec
	LowStockTotal    *prometheus.CounterVec

	// Scheduler and delivery metrics
	ScheduleRuns      *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them. A nil registry uses a
// fresh one so repeated construction in tests never collides.
func New(reg *prometheus.Registry) *Prometheus {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Prometheus{
		gatherer: reg,
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Outbound provider API calls by status code.",
		}, []string{"provider", "status"}),
		ProviderCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Provider API call latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		SyncsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "syncs_total",
			Help:      "Inventory syncs by outcome.",
		}, []string{"provider", "status"}),
		SyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Inventory sync duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14), // 0.1s to ~27m
		}, []string{"provider"}),
		InventoryUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_updates_total",
			Help:      "Inventory items updated from provider levels.",
		}, []string{"provider"}),
		LowStockTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_total",
			Help:      "Low stock transitions detected.",
		}, []string{"provider"}),
		ScheduleRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_runs_total",
			Help:      "Scheduled sync runs by outcome.",
		}, []string{"outcome"}),
		WebhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Outbound webhook deliveries by result.",
		}, []string{"result"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result.",
		}, []string{"result"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	reg.MustRegister(
		m.ProviderCalls,
		m.ProviderCallDuration,
		m.SyncsTotal,
		m.SyncDuration,
		m.InventoryUpdates,
		m.LowStockTotal,
		m.ScheduleRuns,
		m.WebhookDeliveries,
		m.CacheLookups,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Prometheus) ObserveProviderCall(provider string, status int, d time.Duration) {
	m.ProviderCalls.WithLabelValues(provider, strconv.Itoa(status)).Inc()
	m.ProviderCallDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Prometheus) RecordSync(provider string, success bool, d time.Duration) {
	m.SyncsTotal.WithLabelValues(provider, result(success, "success", "failure")).Inc()
	m.SyncDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Prometheus) AddInventoryUpdates(provider string, n int) {
	if n > 0 {
		m.InventoryUpdates.WithLabelValues(provider).Add(float64(n))
	}
}

func (m *Prometheus) RecordLowStock(provider string) {
	m.LowStockTotal.WithLabelValues(provider).Inc()
}

func (m *Prometheus) RecordScheduleRun(outcome string) {
	m.ScheduleRuns.WithLabelValues(outcome).Inc()
}

func (m *Prometheus) RecordWebhookDelivery(success bool) {
	m.WebhookDeliveries.WithLabelValues(result(success, "success", "failure")).Inc()
}

func (m *Prometheus) RecordCache(hit bool) {
	m.CacheLookups.WithLabelValues(result(hit, "hit", "miss")).Inc()
}

// RecordHTTPRequest records an HTTP request metric
func (m *Prometheus) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
