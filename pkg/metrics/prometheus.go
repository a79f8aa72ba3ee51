// Package metrics provides Prometheus metrics for the headhunt service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Proposal lifecycle
	transitions        *prometheus.CounterVec
	invalidTransitions prometheus.Counter

	// Reputation
	pointsAwarded    *prometheus.CounterVec
	statsConflicts   prometheus.Counter
	statsReconciles  prometheus.Counter
	statsDeferred    prometheus.Counter
	badgesGranted    *prometheus.CounterVec
	evalFailures     *prometheus.CounterVec
	rankedRecruiters prometheus.Gauge
	leaderboardBuild prometheus.Histogram
	cacheLookups     *prometheus.CounterVec

	// Storage
	storeLatency    *prometheus.HistogramVec
	proposalsTotal  prometheus.Gauge
	recruitersTotal prometheus.Gauge

	// Notification queue and workers
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueued           prometheus.Counter
	queueDropped            *prometheus.CounterVec
	notificationsDuplicate  prometheus.Counter
	notificationsDelivered  prometheus.Counter
	notificationsFailed     prometheus.Counter
	deliveryLatency         prometheus.Histogram
	workerActiveCount       prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

var globalManager = NewManager(WithPrometheusRegistry(customRegistry)) //nolint:gochecknoglobals // package-level recorders

// NewManager creates a manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "headhunt",
		subsystem:        "service",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.transitions = auto.NewCounterVec(m.counterOpts("transitions_total", "Applied proposal transitions by source and target status"), []string{"from", "to"})
	m.invalidTransitions = auto.NewCounter(m.counterOpts("invalid_transitions_total", "Refused proposal transitions"))

	m.pointsAwarded = auto.NewCounterVec(m.counterOpts("points_awarded_total", "Reputation points awarded by transition kind"), []string{"kind"})
	m.statsConflicts = auto.NewCounter(m.counterOpts("stats_conflicts_total", "Lost optimistic stats writes"))
	m.statsReconciles = auto.NewCounter(m.counterOpts("stats_reconciles_total", "Stats rebuilt from history while recording a transition"))
	m.statsDeferred = auto.NewCounter(m.counterOpts("stats_deferred_total", "Committed transitions whose stats write failed and waits for the next write"))
	m.badgesGranted = auto.NewCounterVec(m.counterOpts("badges_granted_total", "Achievements granted by family and tier"), []string{"family", "tier"})
	m.evalFailures = auto.NewCounterVec(m.counterOpts("badge_evaluation_failures_total", "Skipped badge family evaluations"), []string{"family"})
	m.rankedRecruiters = auto.NewGauge(m.gaugeOpts("ranked_recruiters", "Recruiters on the last built leaderboard"))
	m.leaderboardBuild = auto.NewHistogram(m.histogramOpts("leaderboard_build_milliseconds", "Leaderboard build latency in milliseconds"))
	m.cacheLookups = auto.NewCounterVec(m.counterOpts("cache_lookups_total", "Read cache lookups by cache and result"), []string{"cache", "result"})

	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_latency_milliseconds", "Store call latency in milliseconds"), []string{"backend", "op"})
	m.proposalsTotal = auto.NewGauge(m.gaugeOpts("proposals", "Stored proposals"))
	m.recruitersTotal = auto.NewGauge(m.gaugeOpts("recruiters", "Recruiters with at least one proposal"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("notify_queue_size", "Pending notifications"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("notify_queue_capacity", "Notification queue capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("notify_enqueued_total", "Queued notifications"))
	m.queueDropped = auto.NewCounterVec(m.counterOpts("notify_dropped_total", "Dropped notifications by reason"), []string{"reason"})
	m.notificationsDuplicate = auto.NewCounter(m.counterOpts("notify_duplicates_total", "Suppressed duplicate notifications"))
	m.notificationsDelivered = auto.NewCounter(m.counterOpts("notify_delivered_total", "Delivered notifications"))
	m.notificationsFailed = auto.NewCounter(m.counterOpts("notify_failed_total", "Failed notification deliveries"))
	m.deliveryLatency = auto.NewHistogram(m.histogramOpts("notify_delivery_milliseconds", "Notification delivery latency in milliseconds"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("notify_workers", "Running notification workers"))
	m.workerMessagesPerSecond = auto.NewGauge(m.gaugeOpts("notify_messages_per_second", "Notification delivery throughput"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status code"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and kind"), []string{"component", "error_type"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "HTTP errors by endpoint, method and kind"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Running goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds", "Last GC pause in milliseconds"))
}

// RecordTransition counts an applied transition; from is empty on submission.
func RecordTransition(from, to string) {
	if from == "" {
		from = "none"
	}
	globalManager.transitions.WithLabelValues(from, to).Inc()
}

func RecordInvalidTransition() { globalManager.invalidTransitions.Inc() }

func RecordPointsAwarded(kind string, points int64) {
	if points > 0 {
		globalManager.pointsAwarded.WithLabelValues(kind).Add(float64(points))
	}
}

func RecordStatsConflict() { globalManager.statsConflicts.Inc() }

func RecordStatsReconcile() { globalManager.statsReconciles.Inc() }

func RecordStatsDeferred() { globalManager.statsDeferred.Inc() }

func RecordBadgeGranted(family, tier string) {
	globalManager.badgesGranted.WithLabelValues(family, tier).Inc()
}

func RecordEvaluationFailure(family string) {
	globalManager.evalFailures.WithLabelValues(family).Inc()
}

func UpdateRankedRecruiters(n int) { globalManager.rankedRecruiters.Set(float64(n)) }

func RecordLeaderboardBuild(latencyMs float64) { globalManager.leaderboardBuild.Observe(latencyMs) }

func RecordCacheHit(name string) { globalManager.cacheLookups.WithLabelValues(name, "hit").Inc() }

func RecordCacheMiss(name string) { globalManager.cacheLookups.WithLabelValues(name, "miss").Inc() }

func RecordStoreLatency(backend, op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(backend, op).Observe(latencyMs)
}

func UpdateProposalsTotal(n int) { globalManager.proposalsTotal.Set(float64(n)) }

func UpdateRecruitersTotal(n int) { globalManager.recruitersTotal.Set(float64(n)) }

func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDropped counts a notification refused by the queue.
func RecordQueueDropped(reason string) {
	globalManager.queueDropped.WithLabelValues(reason).Inc()
	RecordErrorByComponent("queue", reason)
}

func RecordNotificationDuplicate() { globalManager.notificationsDuplicate.Inc() }

func RecordNotificationDelivered() { globalManager.notificationsDelivered.Inc() }

func RecordNotificationFailed() { globalManager.notificationsFailed.Inc() }

func RecordDeliveryLatency(latencyMs float64) { globalManager.deliveryLatency.Observe(latencyMs) }

func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

func UpdateWorkerMessagesPerSecond(rate float64) { globalManager.workerMessagesPerSecond.Set(rate) }

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the registry served at /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
