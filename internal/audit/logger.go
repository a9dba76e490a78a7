package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/teamreel/teamreel/internal/observability"
)

// Logger records audit events.
type Logger interface {
	// LogEvent records an audit event. The trace id is taken from the
	// context when the event does not carry one.
	LogEvent(ctx context.Context, event *Event)

	// Close flushes and closes the underlying sink.
	Close() error
}

// Metrics contains audit metrics.
type Metrics struct {
	// eventsTotal counts audit events by type and outcome.
	eventsTotal *prometheus.CounterVec
}

// NewMetrics creates new audit metrics registered with the default
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

	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "events_total",
				Help:      "Total number of audit events by type and outcome",
			},
			[]string{"type", "outcome"},
		),
	}

	_ = registerer.Register(m.eventsTotal)

	return m
}

// Init pre-initializes common label combinations with zero values so the
// metrics appear in /metrics output immediately after startup. Idempotent.
func (m *Metrics) Init() {
	if m == nil {
		return
	}
	for _, t := range []EventType{EventAuthentication, EventAuthorization} {
		for _, o := range []Outcome{OutcomeAllowed, OutcomeDenied, OutcomeRedirected} {
			m.eventsTotal.WithLabelValues(string(t), string(o))
		}
	}
}

// RecordEvent records an audit event.
func (m *Metrics) RecordEvent(event *Event) {
	if m == nil || m.eventsTotal == nil {
		return
	}
	m.eventsTotal.WithLabelValues(string(event.Type), string(event.Outcome)).Inc()
}

// logger writes audit events as JSON lines.
type logger struct {
	mu      sync.Mutex
	writer  io.Writer
	closer  io.Closer
	logger  observability.Logger
	metrics *Metrics
}

// Option is a functional option for the audit logger.
type Option func(*logger)

// WithLogger sets the operational logger used for write failures.
func WithLogger(l observability.Logger) Option {
	return func(a *logger) {
		a.logger = l
	}
}

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(a *logger) {
		a.metrics = metrics
	}
}

// NewLogger creates an audit logger writing to w.
func NewLogger(w io.Writer, opts ...Option) Logger {
	a := &logger{
		writer: w,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFileLogger creates an audit logger appending to the file at path.
// An empty path writes to stdout.
func NewFileLogger(path string, opts ...Option) (Logger, error) {
	if path == "" {
		return NewLogger(os.Stdout, opts...), nil
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	a := &logger{
		writer: f,
		closer: f,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// LogEvent records an audit event.
func (a *logger) LogEvent(ctx context.Context, event *Event) {
	if event == nil {
		return
	}

	if event.TraceID == "" {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			event.TraceID = sc.TraceID().String()
		}
	}

	data, err := json.Marshal(event)
	if err != nil {
		a.logger.Error("audit event encode failed", observability.Error(err))
		return
	}

	a.mu.Lock()
	_, err = a.writer.Write(append(data, '\n'))
	a.mu.Unlock()
	if err != nil {
		a.logger.Error("audit event write failed", observability.Error(err))
		return
	}

	a.metrics.RecordEvent(event)
}

// Close closes the underlying sink.
func (a *logger) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// nopLogger discards all events.
type nopLogger struct{}

// NopLogger returns a logger that discards all events.
func NopLogger() Logger {
	return nopLogger{}
}

func (nopLogger) LogEvent(context.Context, *Event) {}

func (nopLogger) Close() error { return nil }

// Ensure implementations satisfy Logger.
var (
	_ Logger = (*logger)(nil)
	_ Logger = nopLogger{}
)
