// Package metrics provides Prometheus metrics for the attack map service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Default histogram buckets for animation lifetimes (milliseconds). A marker
// lives at least draw+fade, and longer when it waited for a slot.
var lifetimeBuckets = []float64{500, 750, 850, 1000, 1500, 2500, 5000, 10000, 30000} //nolint:gochecknoglobals // constant bucket layout

// Manager manages all Prometheus metrics for the attack map service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingest Metrics - What arrives from the contest feed
	eventsReceived  *prometheus.CounterVec
	eventsDuplicate prometheus.Counter
	eventsRejected  *prometheus.CounterVec

	// Queue Metrics - Ingest buffer between sources and the feed
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Feed Metrics - Debounced marker state and attack log
	feedFlushes    prometheus.Counter
	feedFlushSize  prometheus.Histogram
	markerState    prometheus.Gauge
	attackLogCount prometheus.Gauge

	// Animation Metrics - Slot pool and scheduler
	poolSize         prometheus.Gauge
	slotsBusy        prometheus.Gauge
	markersPending   prometheus.Gauge
	markersShot      prometheus.Counter
	markersImpact    prometheus.Counter
	markersDone      prometheus.Counter
	batchesCompleted prometheus.Counter
	batchSize        prometheus.Histogram
	pumpPolls        prometheus.Counter
	markerLifetime   prometheus.Histogram
	soundErrors      *prometheus.CounterVec

	// Source Metrics - NATS and socket feed connectivity
	sourceConnects *prometheus.CounterVec
	sourceErrors   *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "attackmap",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// name applies the configured prefix to a metric name.
func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// counter, gauge and histogram build metric options sharing namespace,
// subsystem and constant labels.
func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	// Ingest
	m.eventsReceived = auto.NewCounterVec(m.counter("events_received_total", "Attack events accepted from a source"), []string{"source"})
	m.eventsDuplicate = auto.NewCounter(m.counter("events_duplicate_total", "Attack events dropped because their event_id was already seen"))
	m.eventsRejected = auto.NewCounterVec(m.counter("events_rejected_total", "Attack events rejected at ingest"), []string{"reason"})

	// Queue
	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Current size of the ingest queue (backlog indicator)"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Maximum ingest queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gauge("queue_utilization_ratio", "Ingest queue utilization ratio (current size / capacity)"))
	m.queueEnqueueRate = auto.NewCounter(m.counter("queue_enqueue_total", "Total number of events enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counter("queue_dequeue_total", "Total number of events dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("queue_enqueue_errors_total", "Total number of enqueue failures"))

	// Feed
	m.feedFlushes = auto.NewCounter(m.counter("feed_flushes_total", "Debounced arrivals flushed into the marker state"))
	m.feedFlushSize = auto.NewHistogram(m.histogram("feed_flush_size", "Events per debounced arrival", prometheus.ExponentialBuckets(1, 2, 10)))
	m.markerState = auto.NewGauge(m.gauge("marker_state_size", "Markers currently held in the marker state"))
	m.attackLogCount = auto.NewGauge(m.gauge("attack_log_size", "Entries held in the attack log"))

	// Animation
	m.poolSize = auto.NewGauge(m.gauge("pool_size", "Number of animation slots"))
	m.slotsBusy = auto.NewGauge(m.gauge("slots_busy", "Animation slots currently rendering a marker"))
	m.markersPending = auto.NewGauge(m.gauge("markers_pending", "Marker jobs waiting for a free slot"))
	m.markersShot = auto.NewCounter(m.counter("markers_shot_total", "Marker jobs that started drawing"))
	m.markersImpact = auto.NewCounter(m.counter("markers_impact_total", "Marker jobs that reached their defender"))
	m.markersDone = auto.NewCounter(m.counter("markers_done_total", "Marker jobs whose slot was released"))
	m.batchesCompleted = auto.NewCounter(m.counter("batches_completed_total", "Arrival batches reported as completed"))
	m.batchSize = auto.NewHistogram(m.histogram("batch_size", "Markers per completed batch", prometheus.ExponentialBuckets(1, 2, 10)))
	m.pumpPolls = auto.NewCounter(m.counter("pump_polls_total", "Pump polls scheduled while the slot pool was saturated"))
	m.markerLifetime = auto.NewHistogram(m.histogram("marker_lifetime_milliseconds", "Time from enqueue to slot release in milliseconds", lifetimeBuckets))
	m.soundErrors = auto.NewCounterVec(m.counter("sound_errors_total", "Audio cue playback failures (ignored)"), []string{"cue"})

	// Sources
	m.sourceConnects = auto.NewCounterVec(m.counter("source_connects_total", "Successful connections to an event source"), []string{"source"})
	m.sourceErrors = auto.NewCounterVec(m.counter("source_errors_total", "Event source failures"), []string{"source", "error_type"})

	// HTTP
	m.httpRequests = auto.NewCounterVec(
		m.counter("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogram("http_request_duration_seconds", "HTTP request duration in seconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counter("errors_by_endpoint_total", "Errors by HTTP endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	// Errors
	m.errorRateByComponent = auto.NewCounterVec(
		m.counter("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)

	// System
	m.systemMemoryUsage = auto.NewGauge(m.gauge("system_memory_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gauge("system_goroutines", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds", m.histogramBuckets))
}

// Ingest Metrics Functions.

// RecordEventReceived counts an event accepted from source.
func RecordEventReceived(source string) {
	globalManager.eventsReceived.WithLabelValues(source).Inc()
}

// RecordEventDuplicate counts an event dropped by the dedupe window.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// RecordEventRejected counts an event rejected for reason.
func RecordEventRejected(reason string) {
	globalManager.eventsRejected.WithLabelValues(reason).Inc()
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current ingest queue size and utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Feed Metrics Functions.

// RecordFeedFlush records one debounced arrival of size events.
func RecordFeedFlush(size int) {
	globalManager.feedFlushes.Inc()
	globalManager.feedFlushSize.Observe(float64(size))
}

// UpdateMarkerState sets the number of markers held upstream of the panel.
func UpdateMarkerState(size int) {
	globalManager.markerState.Set(float64(size))
}

// UpdateAttackLogSize sets the number of attack log entries.
func UpdateAttackLogSize(size int) {
	globalManager.attackLogCount.Set(float64(size))
}

// Animation Metrics Functions.

// UpdatePoolSize sets the number of animation slots.
func UpdatePoolSize(size int) {
	globalManager.poolSize.Set(float64(size))
}

// UpdateSlotUsage sets busy slots and pending jobs.
func UpdateSlotUsage(busy, pending int) {
	globalManager.slotsBusy.Set(float64(busy))
	globalManager.markersPending.Set(float64(pending))
}

// RecordMarkerShot counts a job entering the drawing phase.
func RecordMarkerShot() {
	globalManager.markersShot.Inc()
}

// RecordMarkerImpact counts a job reaching its defender.
func RecordMarkerImpact() {
	globalManager.markersImpact.Inc()
}

// RecordMarkerDone counts a released slot and observes the job lifetime.
func RecordMarkerDone(lifetime time.Duration) {
	globalManager.markersDone.Inc()
	globalManager.markerLifetime.Observe(float64(lifetime.Milliseconds()))
}

// RecordBatchCompleted counts a completed batch of count markers.
func RecordBatchCompleted(count int) {
	globalManager.batchesCompleted.Inc()
	globalManager.batchSize.Observe(float64(count))
}

// RecordPumpPoll counts a saturated-pool poll.
func RecordPumpPoll() {
	globalManager.pumpPolls.Inc()
}

// RecordSoundError counts a failed audio cue.
func RecordSoundError(cue string) {
	globalManager.soundErrors.WithLabelValues(cue).Inc()
}

// Source Metrics Functions.

// RecordSourceConnect counts a successful source connection.
func RecordSourceConnect(source string) {
	globalManager.sourceConnects.WithLabelValues(source).Inc()
}

// RecordSourceError counts a source failure.
func RecordSourceError(source, errorType string) {
	globalManager.sourceErrors.WithLabelValues(source, errorType).Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
