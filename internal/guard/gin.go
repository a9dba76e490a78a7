package guard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teamreel/teamreel/internal/authz"
	"github.com/teamreel/teamreel/internal/observability"
)

// APIMiddleware returns gin middleware enforcing the policy in API
// style: denials abort the chain with a JSON error body.
func (g *Guard) APIMiddleware(policy authz.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, decision := g.check(c.Request, policy)
		g.auditDecision(c.Request, sess, policy, decision, "api")

		if !decision.Allowed {
			g.metrics.RecordRequest("api", string(decision.Reason))
			g.logger.Debug("api request denied",
				observability.String("path", c.Request.URL.Path),
				observability.String("reason", string(decision.Reason)),
			)
			c.AbortWithStatusJSON(denialStatus(decision), gin.H{
				"error": string(decision.Reason),
			})
			return
		}

		g.metrics.RecordRequest("api", "allowed")
		c.Request = g.requestContext(c.Request, sess, policy)
		c.Next()
	}
}

// APIMiddlewareFunc returns gin middleware whose policy is derived per
// request, for routes whose team scope comes from a path parameter.
func (g *Guard) APIMiddlewareFunc(policyFunc func(*gin.Context) authz.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		g.APIMiddleware(policyFunc(c))(c)
	}
}

// PageMiddleware returns gin middleware enforcing the policy in page
// style: denials abort the chain with a 302.
func (g *Guard) PageMiddleware(policy authz.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, decision := g.check(c.Request, policy)
		g.auditDecision(c.Request, sess, policy, decision, "page")

		select {
		case <-c.Request.Context().Done():
			c.Abort()
			return
		default:
		}

		if !decision.Allowed {
			destination := g.redirectDestination(sess, decision)
			g.metrics.RecordRequest("page", string(decision.Reason))
			g.authzMetrics.RecordRedirect(destination)
			g.logger.Debug("page request redirected",
				observability.String("path", c.Request.URL.Path),
				observability.String("reason", string(decision.Reason)),
				observability.String("destination", destination),
			)
			c.Redirect(http.StatusFound, destination)
			c.Abort()
			return
		}

		g.metrics.RecordRequest("page", "allowed")
		c.Request = g.requestContext(c.Request, sess, policy)
		c.Next()
	}
}
