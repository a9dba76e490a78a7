package guard

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamreel/teamreel/internal/authz"
	"github.com/teamreel/teamreel/internal/session"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Guard) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	return gin.New(), newTestGuard(t)
}

func TestAPIMiddlewareAllows(t *testing.T) {
	t.Parallel()

	router, g := newTestRouter(t)
	router.GET("/api/teams/team-1/roster",
		g.APIMiddleware(authz.Policy{
			RequiredRoles: authz.NewRoleSet(authz.RoleCoach),
			TeamScope:     "team-1",
		}),
		func(c *gin.Context) {
			sess, ok := session.FromContext(c.Request.Context())
			require.True(t, ok)
			c.JSON(http.StatusOK, gin.H{"user": sess.Identity.ID})
		},
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, bearerRequest("/api/teams/team-1/roster", "coach-token"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"user":"user-coach"}`, rr.Body.String())
}

func TestAPIMiddlewareDenies(t *testing.T) {
	t.Parallel()

	router, g := newTestRouter(t)
	router.GET("/api/admin",
		g.APIMiddleware(authz.Policy{RequireAdmin: true}),
		func(c *gin.Context) {
			t.Error("handler ran for a denied request")
		},
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, bearerRequest("/api/admin", "coach-token"))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"error":"not_admin"}`, rr.Body.String())
}

func TestAPIMiddlewareUnauthenticated(t *testing.T) {
	t.Parallel()

	router, g := newTestRouter(t)
	router.GET("/api/teams",
		g.APIMiddleware(authz.Policy{RequiredRoles: authz.NewRoleSet(authz.RolePlayer)}),
		func(c *gin.Context) {
			t.Error("handler ran for a denied request")
		},
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, bearerRequest("/api/teams", ""))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"unauthenticated"}`, rr.Body.String())
}

func TestPageMiddlewareRedirects(t *testing.T) {
	t.Parallel()

	router, g := newTestRouter(t)
	router.GET("/admin",
		g.PageMiddleware(authz.Policy{RequireAdmin: true}),
		func(c *gin.Context) {
			t.Error("view rendered for a denied visitor")
		},
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, bearerRequest("/admin", "coach-token"))

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/coach", rr.Header().Get("Location"))
}

func TestPageMiddlewareAllows(t *testing.T) {
	t.Parallel()

	router, g := newTestRouter(t)
	router.GET("/coach",
		g.PageMiddleware(authz.Policy{
			RequiredRoles: authz.NewRoleSet(authz.RoleCoach),
		}),
		func(c *gin.Context) {
			c.String(http.StatusOK, "coach home")
		},
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, bearerRequest("/coach", "coach-token"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "coach home", rr.Body.String())
}
