package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry holds all Prometheus metrics for opsdesk.
// A nil *MetricsRegistry is valid and records nothing.
type MetricsRegistry struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec

	// Upstream Metrics
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec

	// Cache Metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Sync Metrics
	SyncRunsTotal     *prometheus.CounterVec
	SyncJobDuration   *prometheus.HistogramVec
	BookingsUpserted  *prometheus.CounterVec
	BookingFailures   *prometheus.CounterVec
	BackfillProcessed *prometheus.CounterVec
}

// NewMetricsRegistry registers every metric with reg.
// Pass prometheus.DefaultRegisterer in main and a fresh prometheus.NewRegistry() in tests.
func NewMetricsRegistry(reg prometheus.Registerer) *MetricsRegistry {
	factory := promauto.With(reg)

	return &MetricsRegistry{
		// HTTP Metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opsdesk_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "opsdesk_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"endpoint"},
		),

		// Upstream Metrics
		UpstreamRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_upstream_requests_total",
				Help: "Upstream reservation API calls by call type and outcome",
			},
			[]string{"call", "outcome"},
		),
		UpstreamRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opsdesk_upstream_request_duration_seconds",
				Help:    "Upstream reservation API call latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"call"},
		),

		// Cache Metrics
		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_cache_hits_total",
				Help: "Total cache hits by cache key pattern",
			},
			[]string{"cache_key_pattern"},
		),
		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_cache_misses_total",
				Help: "Total cache misses by cache key pattern",
			},
			[]string{"cache_key_pattern"},
		),

		// Sync Metrics
		SyncRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_sync_runs_total",
				Help: "Sync invocations by strategy and terminal status",
			},
			[]string{"strategy", "status"},
		),
		SyncJobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opsdesk_sync_job_duration_seconds",
				Help:    "Sync job execution time in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600, 900},
			},
			[]string{"strategy"},
		),
		BookingsUpserted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_bookings_upserted_total",
				Help: "Bookings written by the upsert engine, by result (new or updated)",
			},
			[]string{"result"},
		),
		BookingFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_booking_failures_total",
				Help: "Per-reference failures by pipeline stage",
			},
			[]string{"stage"},
		),
		BackfillProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_backfill_processed_total",
				Help: "Backfill scanner records by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// ObserveUpstream records one upstream call
func (m *MetricsRegistry) ObserveUpstream(call string, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(call, outcome).Inc()
	m.UpstreamRequestDuration.WithLabelValues(call).Observe(elapsed.Seconds())
}

// ObserveSyncRun records a finished sync invocation
func (m *MetricsRegistry) ObserveSyncRun(strategy string, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SyncRunsTotal.WithLabelValues(strategy, status).Inc()
	m.SyncJobDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

// IncUpserted counts a booking write ("new" or "updated")
func (m *MetricsRegistry) IncUpserted(result string) {
	if m == nil {
		return
	}
	m.BookingsUpserted.WithLabelValues(result).Inc()
}

// IncFailure counts a per-reference failure
func (m *MetricsRegistry) IncFailure(stage string) {
	if m == nil {
		return
	}
	m.BookingFailures.WithLabelValues(stage).Inc()
}

// IncBackfill counts a backfill outcome ("updated", "failed")
func (m *MetricsRegistry) IncBackfill(outcome string) {
	if m == nil {
		return
	}
	m.BackfillProcessed.WithLabelValues(outcome).Inc()
}

// IncCache counts a cache hit or miss for a key pattern
func (m *MetricsRegistry) IncCache(pattern string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(pattern).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(pattern).Inc()
}
