package authz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains authorization metrics.
type Metrics struct {
	registerer prometheus.Registerer

	// evaluationTotal counts policy evaluations by outcome.
	evaluationTotal *prometheus.CounterVec

	// evaluationDuration measures policy evaluation duration.
	evaluationDuration prometheus.Histogram

	// denialTotal counts denials by reason.
	denialTotal *prometheus.CounterVec

	// redirectTotal counts page redirects by destination.
	redirectTotal *prometheus.CounterVec
}

// NewMetrics creates new authorization metrics registered with the
// default registerer so they are exposed on the /metrics endpoint.
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

	m.evaluationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authz",
			Name:      "evaluation_total",
			Help:      "Total number of policy evaluations",
		},
		[]string{"result"},
	)

	m.evaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "authz",
			Name:      "evaluation_duration_seconds",
			Help:      "Policy evaluation duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	m.denialTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authz",
			Name:      "denial_total",
			Help:      "Total number of denials by reason",
		},
		[]string{"reason"},
	)

	m.redirectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authz",
			Name:      "redirect_total",
			Help:      "Total number of page redirects by destination",
		},
		[]string{"destination"},
	)

	// Register all metrics with the provided registerer, ignoring duplicates.
	collectors := []prometheus.Collector{
		m.evaluationTotal,
		m.evaluationDuration,
		m.denialTotal,
		m.redirectTotal,
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
	for _, result := range []string{"allowed", "denied"} {
		m.evaluationTotal.WithLabelValues(result)
	}
	for _, reason := range []DenyReason{DenyUnauthenticated, DenyNotAdmin, DenyMissingRole, DenyWrongTeam} {
		m.denialTotal.WithLabelValues(string(reason))
	}
}

// RecordEvaluation records a policy evaluation.
func (m *Metrics) RecordEvaluation(decision Decision, duration time.Duration) {
	if m == nil || m.evaluationTotal == nil {
		return
	}
	result := "denied"
	if decision.Allowed {
		result = "allowed"
	}
	m.evaluationTotal.WithLabelValues(result).Inc()
	m.evaluationDuration.Observe(duration.Seconds())
	if !decision.Allowed {
		m.denialTotal.WithLabelValues(string(decision.Reason)).Inc()
	}
}

// RecordRedirect records a page redirect.
func (m *Metrics) RecordRedirect(destination string) {
	if m == nil || m.redirectTotal == nil {
		return
	}
	m.redirectTotal.WithLabelValues(destination).Inc()
}
