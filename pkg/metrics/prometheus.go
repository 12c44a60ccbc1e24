// Package metrics provides Prometheus metrics for the tie-break standings service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// defaultLatencyBuckets are in milliseconds; evaluations are sub-millisecond.
var defaultLatencyBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000} //nolint:gochecknoglobals // constant table

// Manager owns every metric of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Evaluation
	evaluations       *prometheus.CounterVec
	evaluationErrors  *prometheus.CounterVec
	evaluationLatency prometheus.Histogram
	standingsComputed prometheus.Counter

	// Store
	tournamentsLoaded prometheus.Gauge
	standingsBoards   prometheus.Gauge
	standingsEntries  prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Workers
	workerCount             prometheus.Gauge
	workerJobs              prometheus.Counter
	workerErrors            prometheus.Counter
	workerProcessingLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
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
		namespace:        "tiebreak",
		subsystem:        "standings",
		histogramBuckets: defaultLatencyBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.evaluations = m.counterVec("evaluations_total",
		"Tie-break vector evaluations by outcome", "outcome")
	m.evaluationErrors = m.counterVec("evaluation_errors_total",
		"Failed evaluations by error kind", "kind")
	m.evaluationLatency = m.histogram("evaluation_latency_milliseconds",
		"Latency of one player's tie-break evaluation in milliseconds")
	m.standingsComputed = m.counter("computed_total",
		"Number of full standings computations")

	m.tournamentsLoaded = m.gauge("tournaments_loaded",
		"Number of tournaments available for evaluation")
	m.standingsBoards = m.gauge("boards",
		"Number of standings boards held in the store")
	m.standingsEntries = m.gauge("entries",
		"Number of standings rows held in the store")

	m.queueSize = m.gauge("queue_size", "Current number of queued jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued jobs")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Jobs accepted by the queue")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total",
		"Jobs rejected by the queue by reason", "reason")

	m.workerCount = m.gauge("worker_count", "Number of evaluation workers")
	m.workerJobs = m.counter("worker_jobs_total", "Jobs processed by workers")
	m.workerErrors = m.counter("worker_errors_total", "Jobs that failed in a worker")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Time a worker spends on one job in milliseconds")

	m.httpRequests = m.counterVec("http_requests_total",
		"HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_total",
		"Errors by component and type", "component", "error_type")
}

// RecordEvaluation records one player evaluation and its latency.
func RecordEvaluation(ok bool, latencyMs float64) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	globalManager.evaluations.WithLabelValues(outcome).Inc()
	globalManager.evaluationLatency.Observe(latencyMs)
}

// RecordEvaluationError counts a failed evaluation by kind.
func RecordEvaluationError(kind string) {
	globalManager.evaluationErrors.WithLabelValues(kind).Inc()
}

// RecordStandingsComputed counts a full standings computation.
func RecordStandingsComputed() {
	globalManager.standingsComputed.Inc()
}

// UpdateTournamentsLoaded sets the number of loaded tournaments.
func UpdateTournamentsLoaded(count int) {
	globalManager.tournamentsLoaded.Set(float64(count))
}

// UpdateStandingsBoards sets the number of boards in the store.
func UpdateStandingsBoards(count int) {
	globalManager.standingsBoards.Set(float64(count))
}

// UpdateStandingsEntries sets the number of rows in the store.
func UpdateStandingsEntries(count int) {
	globalManager.standingsEntries.Set(float64(count))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted job.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueEnqueueError counts a rejected job.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerJob counts a processed job and its latency.
func RecordWorkerJob(latencyMs float64) {
	globalManager.workerJobs.Inc()
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed job.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent counts an error raised by a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
