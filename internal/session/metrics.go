package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains session resolution metrics.
type Metrics struct {
	registerer prometheus.Registerer

	// resolutionTotal counts resolutions by result.
	resolutionTotal *prometheus.CounterVec

	// resolutionDuration measures resolution duration.
	resolutionDuration prometheus.Histogram

	// cacheHits counts cache hits.
	cacheHits prometheus.Counter

	// cacheMisses counts cache misses.
	cacheMisses prometheus.Counter

	// sharedResolutions counts resolutions collapsed into another
	// in-flight resolution of the same credential.
	sharedResolutions prometheus.Counter

	// notificationTotal counts watcher deliveries.
	notificationTotal prometheus.Counter

	// staleUpdates counts watcher updates superseded before delivery.
	staleUpdates prometheus.Counter
}

// NewMetrics creates new session metrics registered with the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates a new Metrics instance with a custom
// registerer, for tests and for servers with their own registry.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "teamreel"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{registerer: registerer}

	m.resolutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "resolution_total",
			Help:      "Total number of session resolutions by result",
		},
		[]string{"result"},
	)

	m.resolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "resolution_duration_seconds",
			Help:      "Session resolution duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	m.cacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "cache_hits_total",
			Help:      "Total number of session cache hits",
		},
	)

	m.cacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "cache_misses_total",
			Help:      "Total number of session cache misses",
		},
	)

	m.sharedResolutions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "shared_resolutions_total",
			Help:      "Total number of resolutions deduplicated against an in-flight one",
		},
	)

	m.notificationTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "notification_total",
			Help:      "Total number of session change notifications delivered",
		},
	)

	m.staleUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "stale_updates_total",
			Help:      "Total number of session updates discarded as superseded",
		},
	)

	// Register all metrics with the provided registerer, ignoring duplicates.
	collectors := []prometheus.Collector{
		m.resolutionTotal,
		m.resolutionDuration,
		m.cacheHits,
		m.cacheMisses,
		m.sharedResolutions,
		m.notificationTotal,
		m.staleUpdates,
	}
	for _, c := range collectors {
		_ = registerer.Register(c)
	}

	return m
}

// Init pre-initializes common label combinations with zero values so the
// metrics appear in /metrics output immediately after startup. Idempotent.
func (m *Metrics) Init() {
	if m == nil {
		return
	}
	for _, result := range []string{"success", "no_session", "expired", "malformed", "error"} {
		m.resolutionTotal.WithLabelValues(result)
	}
}

// RecordResolution records a session resolution.
func (m *Metrics) RecordResolution(result string, duration time.Duration) {
	if m == nil || m.resolutionTotal == nil {
		return
	}
	m.resolutionTotal.WithLabelValues(result).Inc()
	m.resolutionDuration.Observe(duration.Seconds())
}

// RecordCacheHit records a session cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil || m.cacheHits == nil {
		return
	}
	m.cacheHits.Inc()
}

// RecordCacheMiss records a session cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil || m.cacheMisses == nil {
		return
	}
	m.cacheMisses.Inc()
}

// RecordSharedResolution records a deduplicated resolution.
func (m *Metrics) RecordSharedResolution() {
	if m == nil || m.sharedResolutions == nil {
		return
	}
	m.sharedResolutions.Inc()
}

// RecordNotification records watcher deliveries to subscribers.
func (m *Metrics) RecordNotification(subscribers int) {
	if m == nil || m.notificationTotal == nil {
		return
	}
	m.notificationTotal.Add(float64(subscribers))
}

// RecordStaleUpdate records a watcher update discarded as superseded.
func (m *Metrics) RecordStaleUpdate() {
	if m == nil || m.staleUpdates == nil {
		return
	}
	m.staleUpdates.Inc()
}
