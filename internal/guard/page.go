package guard

import (
	"net/http"

	"github.com/teamreel/teamreel/internal/authz"
	"github.com/teamreel/teamreel/internal/observability"
	"github.com/teamreel/teamreel/internal/session"
)

// Page wraps a page handler with policy enforcement. A denied visitor
// is redirected, never shown an error page: unauthenticated visitors go
// to the login page, authenticated ones to the landing page of their
// highest role. The view renders only after the check allowed it.
func (g *Guard) Page(policy authz.Policy, view http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, decision := g.check(r, policy)
		g.auditDecision(r, sess, policy, decision, "page")

		// The client may be gone by the time resolution finished. Write
		// nothing in that case.
		select {
		case <-r.Context().Done():
			return
		default:
		}

		if !decision.Allowed {
			destination := g.redirectDestination(sess, decision)
			g.metrics.RecordRequest("page", string(decision.Reason))
			g.authzMetrics.RecordRedirect(destination)
			g.logger.Debug("page request redirected",
				observability.String("path", r.URL.Path),
				observability.String("reason", string(decision.Reason)),
				observability.String("destination", destination),
			)
			http.Redirect(w, r, destination, http.StatusFound)
			return
		}

		g.metrics.RecordRequest("page", "allowed")
		view.ServeHTTP(w, g.requestContext(r, sess, policy))
	})
}

// redirectDestination picks where a denied page request goes. An
// unauthenticated visitor always lands on the login page; an
// authenticated one lands on the page for their highest role across all
// memberships.
func (g *Guard) redirectDestination(sess *session.Session, decision authz.Decision) string {
	if decision.Reason == authz.DenyUnauthenticated || sess == nil {
		return authz.LoginPath
	}
	return authz.RedirectPath(sess.Claims.FlattenedRoles())
}
