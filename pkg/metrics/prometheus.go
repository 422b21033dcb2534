// Package metrics provides Prometheus metrics for the leaderboard updater.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for scored entries.
const (
	EntryScored     = "scored"
	EntryZero       = "zero"
	EntryIneligible = "ineligible"
	EntryFailed     = "failed"
)

var pointsBuckets = []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000}

// Manager owns every collector exported by the updater.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Upstream API
	fetchRequests *prometheus.CounterVec
	fetchRetries  *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec

	// Scoring
	entries        *prometheus.CounterVec
	profileUpdates *prometheus.CounterVec
	profilePoints  prometheus.Histogram
	profileLatency prometheus.Histogram

	// Async updates
	queueSize   prometheus.Gauge
	queueErrors *prometheus.CounterVec
	workerCount prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "srlb",
		subsystem:        "updater",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.fetchRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_requests_total",
		Help:      "Upstream API requests by resource and outcome",
	}, []string{"resource", "outcome"})

	m.fetchRetries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_retries_total",
		Help:      "Upstream API retries by HTTP status",
	}, []string{"status"})

	m.fetchLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_latency_seconds",
		Help:      "Upstream API latency including retry waits",
		Buckets:   m.histogramBuckets,
	}, []string{"resource"})

	m.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "metadata_cache_lookups_total",
		Help:      "Game metadata cache lookups by result",
	}, []string{"result"})

	m.entries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "entries_total",
		Help:      "Personal bests processed by outcome",
	}, []string{"outcome"})

	m.profileUpdates = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "profile_updates_total",
		Help:      "Profile update requests by outcome",
	}, []string{"outcome"})

	m.profilePoints = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "profile_points",
		Help:      "Distribution of computed profile totals",
		Buckets:   pointsBuckets,
	})

	m.profileLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "profile_scoring_seconds",
		Help:      "Wall time spent scoring one profile",
		Buckets:   m.histogramBuckets,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Pending asynchronous profile updates",
	})

	m.queueErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_rejections_total",
		Help:      "Rejected enqueue attempts by reason",
	}, []string{"reason"})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "workers",
		Help:      "Running update workers",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000},
	}, []string{"endpoint", "method", "status"})
}

// RecordFetch counts one upstream request.
func RecordFetch(resource, outcome string) {
	globalManager.fetchRequests.WithLabelValues(resource, outcome).Inc()
}

// RecordFetchRetry counts one retry caused by a transient status.
func RecordFetchRetry(status string) {
	globalManager.fetchRetries.WithLabelValues(status).Inc()
}

// RecordFetchLatency observes the duration of one upstream request.
func RecordFetchLatency(resource string, seconds float64) {
	globalManager.fetchLatency.WithLabelValues(resource).Observe(seconds)
}

// RecordCacheLookup counts a metadata cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.cacheLookups.WithLabelValues(result).Inc()
}

// RecordEntry counts one processed personal best.
func RecordEntry(outcome string) {
	globalManager.entries.WithLabelValues(outcome).Inc()
}

// RecordProfileUpdate counts one update request outcome.
func RecordProfileUpdate(outcome string) {
	globalManager.profileUpdates.WithLabelValues(outcome).Inc()
}

// RecordProfileScored observes the total and the duration of one aggregation.
func RecordProfileScored(points, seconds float64) {
	globalManager.profilePoints.Observe(points)
	globalManager.profileLatency.Observe(seconds)
}

// UpdateQueueSize sets the pending update gauge.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// RecordQueueRejection counts a rejected enqueue.
func RecordQueueRejection(reason string) {
	globalManager.queueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the running worker gauge.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the registry backing the package-level recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RegisterRuntimeCollectors adds the Go runtime and process collectors to the
// registry served on /metrics. Calling it twice is harmless.
func RegisterRuntimeCollectors() error {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := customRegistry.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}
