package guard

import (
	"encoding/json"
	"net/http"

	"github.com/teamreel/teamreel/internal/authz"
	"github.com/teamreel/teamreel/internal/observability"
)

// API wraps an API handler with policy enforcement. Denials are
// answered with a JSON error body: 401 for a missing or invalid
// session, 403 for a session that lacks the required access. The
// response never echoes the policy or the caller's memberships.
func (g *Guard) API(policy authz.Policy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, decision := g.check(r, policy)
		g.auditDecision(r, sess, policy, decision, "api")

		if !decision.Allowed {
			g.metrics.RecordRequest("api", string(decision.Reason))
			g.logger.Debug("api request denied",
				observability.String("path", r.URL.Path),
				observability.String("reason", string(decision.Reason)),
			)
			writeDenial(w, decision)
			return
		}

		g.metrics.RecordRequest("api", "allowed")
		next.ServeHTTP(w, g.requestContext(r, sess, policy))
	})
}

// denialStatus maps a denial to its HTTP status.
func denialStatus(decision authz.Decision) int {
	if decision.Reason == authz.DenyUnauthenticated {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

// writeDenial writes the JSON denial body.
func writeDenial(w http.ResponseWriter, decision authz.Decision) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(denialStatus(decision))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": string(decision.Reason),
	})
}
