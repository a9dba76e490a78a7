package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teamreel/teamreel/internal/authz"
	"github.com/teamreel/teamreel/internal/config"
	"github.com/teamreel/teamreel/internal/session"
)

// rolePages maps each role's landing page to its policy.
var rolePages = []struct {
	path   string
	role   authz.Role
	policy authz.Policy
}{
	{path: "/admin", role: authz.RoleAdmin, policy: authz.Policy{RequireAdmin: true}},
	{path: "/coach", role: authz.RoleCoach, policy: authz.Policy{RequiredRoles: authz.NewRoleSet(authz.RoleCoach)}},
	{path: "/manager", role: authz.RoleManager, policy: authz.Policy{RequiredRoles: authz.NewRoleSet(authz.RoleManager)}},
	{path: "/player", role: authz.RolePlayer, policy: authz.Policy{RequiredRoles: authz.NewRoleSet(authz.RolePlayer)}},
	{path: "/parent", role: authz.RoleParent, policy: authz.Policy{RequiredRoles: authz.NewRoleSet(authz.RoleParent)}},
}

func (s *Server) registerRoutes() error {
	e := s.engine

	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if s.cfg.Metrics.Enabled {
		e.GET(s.cfg.Metrics.Path, gin.WrapH(
			promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}),
		))
	}

	e.GET(authz.LoginPath, s.handleLoginPage)

	for _, page := range rolePages {
		e.GET(page.path, s.guard.PageMiddleware(page.policy), s.handleRolePage(page.role))
	}

	api := e.Group("/api")
	api.GET("/me",
		s.guard.APIMiddleware(authz.Policy{}),
		s.handleMe,
	)
	api.POST("/logout",
		s.guard.APIMiddleware(authz.Policy{}),
		s.handleLogout,
	)
	api.GET("/teams/:team/roster",
		s.guard.APIMiddlewareFunc(func(c *gin.Context) authz.Policy {
			return authz.Policy{
				RequiredRoles: authz.NewRoleSet(
					authz.RoleCoach, authz.RoleManager, authz.RolePlayer, authz.RoleParent,
				),
				TeamScope: authz.TeamID(c.Param("team")),
			}
		}),
		s.handleRoster,
	)
	api.GET("/teams/:team/settings",
		s.guard.APIMiddlewareFunc(func(c *gin.Context) authz.Policy {
			return authz.Policy{
				RequiredRoles: authz.NewRoleSet(authz.RoleCoach, authz.RoleManager),
				TeamScope:     authz.TeamID(c.Param("team")),
			}
		}),
		s.handleTeamSettings,
	)

	return s.registerConfiguredRoutes()
}

// registerConfiguredRoutes mounts the guarded routes declared in the
// configuration file.
func (s *Server) registerConfiguredRoutes() error {
	for _, route := range s.cfg.Routes {
		policy, err := route.Policy()
		if err != nil {
			return err
		}
		switch route.Kind {
		case config.GuardKindAPI:
			s.engine.GET(route.Path, s.guard.APIMiddleware(policy), func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})
		case config.GuardKindPage:
			s.engine.GET(route.Path, s.guard.PageMiddleware(policy), func(c *gin.Context) {
				c.Header("Content-Type", "text/html; charset=utf-8")
				c.String(http.StatusOK, "<!doctype html><title>TeamReel</title><h1>%s</h1>", c.Request.URL.Path)
			})
		default:
			return fmt.Errorf("route %s: unknown guard kind %q", route.Path, route.Kind)
		}
	}
	return nil
}

func (s *Server) handleLoginPage(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, "<!doctype html><title>Sign in</title><h1>Sign in to TeamReel</h1>")
}

// handleRolePage renders a role's landing page.
func (s *Server) handleRolePage(role authz.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, _ := session.FromContext(c.Request.Context())
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK,
			"<!doctype html><title>TeamReel</title><h1>%s home</h1><p>%s</p>",
			role, sess.Identity.ID,
		)
	}
}

// handleMe returns the caller's identity and memberships.
func (s *Server) handleMe(c *gin.Context) {
	sess, ok := session.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no session in context"})
		return
	}

	teams := make(map[string][]string)
	for _, team := range sess.Claims.UserTeams() {
		teams[string(team)] = sess.Claims.TeamRoles(team).Names()
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        sess.Identity.ID,
		"email":     sess.Identity.Email,
		"admin":     sess.Claims.IsGlobalAdmin(),
		"teams":     teams,
		"anonymous": sess.Identity == session.Anonymous,
	})
}

// handleLogout signals the caller's session change so cached claims are
// dropped immediately instead of waiting out the cache TTL.
func (s *Server) handleLogout(c *gin.Context) {
	if sess, ok := session.FromContext(c.Request.Context()); ok {
		s.SessionWatcher().Update(sess)
	}
	c.Status(http.StatusNoContent)
}

// handleRoster returns the team scope the request was admitted under.
func (s *Server) handleRoster(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())
	team, _ := session.TeamScopeFromContext(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"team":  string(team),
		"roles": sess.Claims.TeamRoles(team).Names(),
	})
}

// handleTeamSettings is restricted to coaches and managers of the team.
func (s *Server) handleTeamSettings(c *gin.Context) {
	team, _ := session.TeamScopeFromContext(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"team":     string(team),
		"editable": true,
	})
}
