// Package metrics provides Prometheus metrics for the hantei referee relay.
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

// Manager manages all Prometheus metrics for the relay.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          atomic.Bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Consensus
	signalsIngested  *prometheus.CounterVec
	signalsDebounced prometheus.Counter
	signalsPurged    prometheus.Counter
	confirmations    prometheus.Counter
	judgeActions     *prometheus.CounterVec
	agreementSize    prometheus.Histogram

	// Sessions and partitions
	sessions           *prometheus.GaugeVec
	partitions         prometheus.Gauge
	registrations      *prometheus.CounterVec
	capacityRejections *prometheus.CounterVec
	evictions          prometheus.Counter
	framesRejected     *prometheus.CounterVec
	framesDropped      prometheus.Counter
	framesSent         prometheus.Counter
	writeLatency       prometheus.Histogram

	// Licensing
	licenceLookups       *prometheus.CounterVec
	licenceLookupLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "hantei",
		subsystem:        "relay",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	m.enabled.Store(true)

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

	m.signalsIngested = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("signals_ingested_total"),
		Help: "Referee signals accepted into the aggregator",
	}, []string{"target"})

	m.signalsDebounced = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("signals_debounced_total"),
		Help: "Signals absorbed by a live confirmation record",
	})

	m.signalsPurged = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("signals_purged_total"),
		Help: "Unconfirmed signals that aged out of the window",
	})

	m.confirmations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("confirmations_total"),
		Help: "Confirmed scoring events broadcast to displays",
	})

	m.judgeActions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("judge_actions_total"),
		Help: "Judge actions relayed verbatim",
	}, []string{"kind"})

	m.agreementSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("agreement_size"),
		Help:    "Distinct referees behind each confirmation",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8},
	})

	m.sessions = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("sessions"),
		Help: "Open sessions by role",
	}, []string{"role"})

	m.partitions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("partitions"),
		Help: "Partitions with at least one registered session",
	})

	m.registrations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("registrations_total"),
		Help: "Successful registrations by role",
	}, []string{"role"})

	m.capacityRejections = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("capacity_rejections_total"),
		Help: "Referee registrations refused by the plan ceiling",
	}, []string{"plan"})

	m.evictions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("liveness_evictions_total"),
		Help: "Sessions closed for missing a heartbeat",
	})

	m.framesRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("frames_rejected_total"),
		Help: "Inbound frames dropped by reason",
	}, []string{"reason"})

	m.framesDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("frames_dropped_total"),
		Help: "Outbound frames dropped because a session outbox was full",
	})

	m.framesSent = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("frames_sent_total"),
		Help: "Outbound frames written to client connections",
	})

	m.writeLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("frame_write_latency_milliseconds"),
		Help:    "Time spent writing one outbound frame",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500},
	})

	m.licenceLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("licence_lookups_total"),
		Help: "Licence resolutions by outcome",
	}, []string{"outcome"})

	m.licenceLookupLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("licence_lookup_latency_milliseconds"),
		Help:    "Licence resolution latency in milliseconds",
		Buckets: []float64{1, 5, 10, 50, 100, 250, 500, 1000, 2500},
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("http_requests_total"),
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("http_request_duration_milliseconds"),
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("system_memory_usage_bytes"),
		Help: "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("system_goroutine_count"),
		Help: "Number of goroutines",
	})
}

// RecordSignalIngested counts a signal accepted into the aggregator.
func RecordSignalIngested(target string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.signalsIngested.WithLabelValues(target).Inc()
}

// RecordSignalDebounced counts a signal absorbed by a live confirmation record.
func RecordSignalDebounced() {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.signalsDebounced.Inc()
}

// RecordSignalsPurged adds n aged-out signals.
func RecordSignalsPurged(n int) {
	if !globalManager.enabled.Load() || n <= 0 {
		return
	}
	globalManager.signalsPurged.Add(float64(n))
}

// RecordConfirmation counts a confirmed event and the agreement behind it.
func RecordConfirmation(agreement int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.confirmations.Inc()
	globalManager.agreementSize.Observe(float64(agreement))
}

// RecordJudgeAction counts a relayed judge action.
func RecordJudgeAction(kind string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.judgeActions.WithLabelValues(kind).Inc()
}

// UpdateSessions sets the number of open sessions for role.
func UpdateSessions(role string, count int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.sessions.WithLabelValues(role).Set(float64(count))
}

// UpdatePartitions sets the number of live partitions.
func UpdatePartitions(count int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.partitions.Set(float64(count))
}

// RecordRegistration counts a successful registration.
func RecordRegistration(role string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.registrations.WithLabelValues(role).Inc()
}

// RecordCapacityRejection counts a refused referee registration.
func RecordCapacityRejection(plan string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.capacityRejections.WithLabelValues(plan).Inc()
}

// RecordEviction counts a liveness eviction.
func RecordEviction() {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.evictions.Inc()
}

// RecordFrameRejected counts an inbound frame dropped for reason.
func RecordFrameRejected(reason string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.framesRejected.WithLabelValues(reason).Inc()
}

// RecordFrameDropped counts an outbound frame lost to a full outbox.
func RecordFrameDropped() {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.framesDropped.Inc()
}

// RecordFrameSent counts a frame written to a connection and its write time.
func RecordFrameSent(latencyMs float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.framesSent.Inc()
	globalManager.writeLatency.Observe(latencyMs)
}

// RecordLicenceLookup records the outcome and latency of a licence resolution.
func RecordLicenceLookup(outcome string, latencyMs float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.licenceLookups.WithLabelValues(outcome).Inc()
	globalManager.licenceLookupLatency.Observe(latencyMs)
}

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

// Enabled reports whether the manager records anything.
func (m *Manager) Enabled() bool { return m.enabled.Load() }

// RefreshInterval is the period at which polled gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// SetEnabled switches recording on or off for the package-level helpers.
// Collectors stay registered; they simply stop moving.
func SetEnabled(enabled bool) { globalManager.enabled.Store(enabled) }

// RefreshInterval returns the gauge refresh period of the global manager.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
