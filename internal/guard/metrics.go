package guard

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains guard metrics.
type Metrics struct {
	registerer prometheus.Registerer

	// requestTotal counts guarded requests by guard kind and outcome.
	requestTotal *prometheus.CounterVec
}

// NewMetrics creates new guard metrics registered with the default
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

	m.requestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "request_total",
			Help:      "Total number of guarded requests by guard kind and outcome",
		},
		[]string{"guard", "outcome"},
	)

	_ = registerer.Register(m.requestTotal)

	return m
}

// Init pre-initializes common label combinations with zero values so the
// metrics appear in /metrics output immediately after startup. Idempotent.
func (m *Metrics) Init() {
	if m == nil {
		return
	}
	for _, guard := range []string{"api", "page"} {
		m.requestTotal.WithLabelValues(guard, "allowed")
	}
}

// RecordRequest records a guarded request outcome.
func (m *Metrics) RecordRequest(guard, outcome string) {
	if m == nil || m.requestTotal == nil {
		return
	}
	m.requestTotal.WithLabelValues(guard, outcome).Inc()
}
