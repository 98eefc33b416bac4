// Package metrics provides Prometheus metrics for the nakshatra chart service.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Chart kinds used as label values.
const (
	KindNatal   = "natal"
	KindTransit = "transit"
	KindAdHoc   = "adhoc"
)

// Manager manages all Prometheus metrics for the chart service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          atomic.Bool
	refreshInterval  atomic.Int64 // nanoseconds
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Chart metrics
	chartsComputed *prometheus.CounterVec
	chartLatency   *prometheus.HistogramVec
	chartErrors    *prometheus.CounterVec

	// Ephemeris provider metrics
	ephemerisLatency *prometheus.HistogramVec
	ephemerisErrors  *prometheus.CounterVec

	// Profile and natal cache metrics
	profilesRegistered prometheus.Counter
	profilesDuplicate  prometheus.Counter
	totalProfiles      prometheus.Gauge
	natalCacheHits     prometheus.Counter
	natalCacheMisses   prometheus.Counter

	// Store metrics
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Queue metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker metrics
	workerCount             prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "nakshatra",
		subsystem:        "charts",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}
	m.enabled.Store(true)
	m.refreshInterval.Store(int64(defaultRefreshInterval))

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	counterVec := func(name, help string, labelNames ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		}, labelNames)
	}
	histogramVec := func(name, help string, buckets []float64, labelNames ...string) *prometheus.HistogramVec {
		return auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels, Buckets: buckets,
		}, labelNames)
	}
	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels, Buckets: buckets,
		})
	}

	m.chartsComputed = counterVec("computed_total", "Total number of charts computed by kind", "kind")
	m.chartLatency = histogramVec("compute_latency_milliseconds", "Chart computation latency in milliseconds by kind", m.histogramBuckets, "kind")
	m.chartErrors = counterVec("compute_errors_total", "Total number of failed chart computations", "kind", "error_type")

	m.ephemerisLatency = histogramVec("ephemeris_latency_milliseconds", "Ephemeris provider lookup latency in milliseconds",
		[]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}, "body")
	m.ephemerisErrors = counterVec("ephemeris_errors_total", "Total number of ephemeris provider errors", "body", "error_type")

	m.profilesRegistered = counter("profiles_registered_total", "Total number of birth profiles registered")
	m.profilesDuplicate = counter("profiles_duplicate_total", "Total number of registrations rejected as already registered")
	m.totalProfiles = gauge("profiles", "Number of birth profiles in the store")
	m.natalCacheHits = counter("natal_cache_hits_total", "Natal chart reads served from the store")
	m.natalCacheMisses = counter("natal_cache_misses_total", "Natal chart reads that required computation")

	m.storeLatency = histogramVec("store_latency_milliseconds", "Profile store operation latency in milliseconds", m.histogramBuckets, "op")
	m.storeErrors = counterVec("store_errors_total", "Total number of profile store errors", "op")

	m.queueSize = gauge("queue_size", "Current number of pending natal jobs")
	m.queueCapacity = gauge("queue_capacity", "Maximum natal job queue capacity")
	m.queueUtilization = gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueueRate = counter("queue_enqueue_total", "Total number of natal jobs enqueued")
	m.queueDequeueRate = counter("queue_dequeue_total", "Total number of natal jobs dequeued")
	m.queueEnqueueErrors = counter("queue_enqueue_errors_total", "Total number of rejected enqueues")
	m.queueProcessingLatency = histogram("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds", m.histogramBuckets)

	m.workerCount = gauge("worker_count", "Number of natal chart workers")
	m.workerMessagesPerSecond = gauge("worker_messages_per_second", "Average natal jobs processed per second")
	m.workerProcessingLatency = histogram("worker_processing_latency_milliseconds", "Natal job processing latency in milliseconds", m.histogramBuckets)
	m.workerErrorRate = counter("worker_errors_total", "Total number of natal job failures")

	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		m.histogramBuckets, "endpoint", "method", "status_code")

	m.errorRateByComponent = counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = histogramVec("error_latency_milliseconds", "Latency of operations that resulted in errors", m.histogramBuckets, "component", "error_type")

	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// SetEnabled turns recording through the package helpers on or off.
func SetEnabled(enabled bool) {
	globalManager.enabled.Store(enabled)
}

// Enabled reports whether the package helpers record anything.
func Enabled() bool {
	return globalManager.enabled.Load()
}

// SetRefreshInterval sets how often periodic gauge updaters run. Non-positive
// values are ignored.
func SetRefreshInterval(interval time.Duration) {
	if interval > 0 {
		globalManager.refreshInterval.Store(int64(interval))
	}
}

// RefreshInterval returns the period for gauge updaters.
func RefreshInterval() time.Duration {
	return time.Duration(globalManager.refreshInterval.Load())
}

// Chart Metrics Functions.

// RecordChartComputed counts a successful chart computation and its latency.
func RecordChartComputed(kind string, latencyMs float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.chartsComputed.WithLabelValues(kind).Inc()
	globalManager.chartLatency.WithLabelValues(kind).Observe(latencyMs)
}

// RecordChartError counts a failed chart computation.
func RecordChartError(kind, errorType string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.chartErrors.WithLabelValues(kind, errorType).Inc()
}

// RecordEphemerisLatency records a provider lookup latency.
func RecordEphemerisLatency(body string, latencyMs float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.ephemerisLatency.WithLabelValues(body).Observe(latencyMs)
}

// RecordEphemerisError counts a provider failure.
func RecordEphemerisError(body, errorType string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.ephemerisErrors.WithLabelValues(body, errorType).Inc()
}

// Profile Metrics Functions.

// RecordProfileRegistered increments the registered profiles counter.
func RecordProfileRegistered() {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.profilesRegistered.Inc()
}

// RecordProfileDuplicate increments the duplicate registration counter.
func RecordProfileDuplicate() {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.profilesDuplicate.Inc()
}

// UpdateTotalProfiles sets the number of stored profiles.
func UpdateTotalProfiles(count int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.totalProfiles.Set(float64(count))
}

// RecordNatalCacheHit increments the natal cache hit counter.
func RecordNatalCacheHit() {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.natalCacheHits.Inc()
}

// RecordNatalCacheMiss increments the natal cache miss counter.
func RecordNatalCacheMiss() {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.natalCacheMisses.Inc()
}

// Store Metrics Functions.

// RecordStoreLatency records a store operation latency.
func RecordStoreLatency(op string, latencyMs float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerMessagesPerSecond sets the average jobs processed per second.
func UpdateWorkerMessagesPerSecond(rate float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.workerMessagesPerSecond.Set(rate)
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.workerErrorRate.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
