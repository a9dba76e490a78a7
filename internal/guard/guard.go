package guard

import (
	"errors"
	"net/http"

	"github.com/teamreel/teamreel/internal/audit"
	"github.com/teamreel/teamreel/internal/authz"
	"github.com/teamreel/teamreel/internal/observability"
	"github.com/teamreel/teamreel/internal/session"
)

// Guard enforces access policies on HTTP routes.
type Guard struct {
	resolver     session.Resolver
	extractor    session.Extractor
	evaluator    authz.Evaluator
	logger       observability.Logger
	metrics      *Metrics
	authzMetrics *authz.Metrics
	audit        audit.Logger
}

// Option is a functional option for the guard.
type Option func(*Guard)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithMetrics sets the guard metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(g *Guard) {
		g.metrics = metrics
	}
}

// WithAuthzMetrics sets the authorization metrics used for redirect
// accounting.
func WithAuthzMetrics(metrics *authz.Metrics) Option {
	return func(g *Guard) {
		g.authzMetrics = metrics
	}
}

// WithAuditLogger sets the audit logger. Decisions are not audited
// without one.
func WithAuditLogger(logger audit.Logger) Option {
	return func(g *Guard) {
		g.audit = logger
	}
}

// WithExtractor sets the credential extractor.
func WithExtractor(extractor session.Extractor) Option {
	return func(g *Guard) {
		g.extractor = extractor
	}
}

// New creates a guard around a session resolver and a policy evaluator.
func New(resolver session.Resolver, evaluator authz.Evaluator, opts ...Option) *Guard {
	g := &Guard{
		resolver:  resolver,
		evaluator: evaluator,
		extractor: session.NewExtractor(""),
		logger:    observability.NopLogger(),
		audit:     audit.NopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// check resolves the request's session and evaluates the policy against
// it. Resolution failures fold into an unauthenticated check; they are
// logged but never surfaced to the client.
func (g *Guard) check(r *http.Request, policy authz.Policy) (*session.Session, authz.Decision) {
	sess := g.resolveSession(r)

	var claims *authz.Claims
	if sess != nil {
		claims = sess.Claims
	}

	decision := g.evaluator.Evaluate(r.Context(), claims, policy)
	return sess, decision
}

// resolveSession resolves the request credential, returning nil for any
// failure so the caller sees a plain unauthenticated request.
func (g *Guard) resolveSession(r *http.Request) *session.Session {
	credential, err := g.extractor.Extract(r)
	if err != nil {
		if !errors.Is(err, session.ErrNoCredentials) {
			g.logger.Debug("request credential rejected",
				observability.String("path", r.URL.Path),
				observability.Error(err),
			)
		}
		return nil
	}

	sess, err := g.resolver.Resolve(r.Context(), credential)
	if err != nil {
		if session.IsAuthFailure(err) {
			g.logger.Debug("session resolution rejected",
				observability.String("path", r.URL.Path),
				observability.Error(err),
			)
		} else {
			g.logger.Error("session resolution failed",
				observability.String("path", r.URL.Path),
				observability.Error(err),
			)
		}
		return nil
	}

	return sess
}

// auditDecision records one audit event per guarded request.
func (g *Guard) auditDecision(r *http.Request, sess *session.Session, policy authz.Policy, decision authz.Decision, guardKind string) {
	outcome := audit.OutcomeAllowed
	if !decision.Allowed {
		outcome = audit.OutcomeDenied
		if guardKind == "page" {
			outcome = audit.OutcomeRedirected
		}
	}

	event := audit.NewEvent(audit.EventAuthorization, outcome)
	event.Reason = string(decision.Reason)

	subject := &audit.Subject{ID: session.Anonymous.ID}
	if sess != nil {
		subject = &audit.Subject{
			ID:    sess.Identity.ID,
			Email: sess.Identity.Email,
			Admin: sess.Claims.IsGlobalAdmin(),
		}
		for _, team := range sess.Claims.UserTeams() {
			subject.Teams = append(subject.Teams, string(team))
		}
	}
	event.Subject = subject

	resource := &audit.Resource{
		Path:   r.URL.Path,
		Method: r.Method,
		Guard:  guardKind,
	}
	if policy.TeamScope != "" && policy.TeamScope != authz.TeamScopeAny {
		resource.Team = string(policy.TeamScope)
	}
	event.Resource = resource

	g.audit.LogEvent(r.Context(), event)
}

// requestContext builds the downstream request context for an allowed
// request: the session (anonymous when the policy permitted an
// unauthenticated request) and the policy's concrete team scope.
func (g *Guard) requestContext(r *http.Request, sess *session.Session, policy authz.Policy) *http.Request {
	if sess == nil {
		sess = &session.Session{
			Identity: session.Anonymous,
			Claims:   &authz.Claims{},
		}
	}

	ctx := session.ContextWithSession(r.Context(), sess)
	if policy.TeamScope != "" && policy.TeamScope != authz.TeamScopeAny {
		ctx = session.ContextWithTeamScope(ctx, policy.TeamScope)
	}
	return r.WithContext(ctx)
}
