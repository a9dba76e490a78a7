package authz

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/teamreel/teamreel/internal/observability"
)

// authzTracer is the OTEL tracer used for authorization operations.
var authzTracer = otel.Tracer("teamreel/authz")

// Evaluator evaluates policies with logging, metrics, and tracing around
// the pure Evaluate function. The observability wrapping never changes
// the decision: identical inputs yield identical outputs.
type Evaluator interface {
	// Evaluate evaluates claims against a policy.
	Evaluate(ctx context.Context, claims *Claims, policy Policy) Decision
}

// evaluator implements the Evaluator interface.
type evaluator struct {
	logger  observability.Logger
	metrics *Metrics
}

// EvaluatorOption is a functional option for the evaluator.
type EvaluatorOption func(*evaluator)

// WithEvaluatorLogger sets the logger.
func WithEvaluatorLogger(logger observability.Logger) EvaluatorOption {
	return func(e *evaluator) {
		e.logger = logger
	}
}

// WithEvaluatorMetrics sets the metrics.
func WithEvaluatorMetrics(metrics *Metrics) EvaluatorOption {
	return func(e *evaluator) {
		e.metrics = metrics
	}
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(opts ...EvaluatorOption) Evaluator {
	e := &evaluator{
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.metrics == nil {
		e.metrics = NewMetrics("teamreel")
	}

	return e
}

// Evaluate evaluates claims against a policy.
func (e *evaluator) Evaluate(ctx context.Context, claims *Claims, policy Policy) Decision {
	start := time.Now()

	_, span := authzTracer.Start(ctx, "authz.evaluate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("authz.team_scope", string(policy.scope())),
			attribute.Bool("authz.require_admin", policy.RequireAdmin),
		),
	)
	defer span.End()

	decision := Evaluate(claims, policy)

	e.metrics.RecordEvaluation(decision, time.Since(start))

	span.SetAttributes(attribute.Bool("authz.allowed", decision.Allowed))
	if !decision.Allowed {
		span.SetAttributes(attribute.String("authz.reason", string(decision.Reason)))
	}

	e.logger.Debug("authorization decision",
		observability.Bool("allowed", decision.Allowed),
		observability.String("reason", string(decision.Reason)),
		observability.String("effective_role", string(decision.EffectiveRole)),
		observability.String("team_scope", string(policy.scope())),
	)

	return decision
}

// Ensure evaluator implements Evaluator.
var _ Evaluator = (*evaluator)(nil)
