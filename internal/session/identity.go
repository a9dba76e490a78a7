package session

import (
	"context"
	"time"

	"github.com/teamreel/teamreel/internal/authz"
)

// Identity is the principal a session belongs to. It is owned by the
// session provider and immutable for the lifetime of a request.
type Identity struct {
	// ID is the stable unique identifier of the principal.
	ID string `json:"id"`

	// Email is the principal's email address.
	Email string `json:"email,omitempty"`
}

// Anonymous is the identity used when a policy allows unauthenticated
// access.
var Anonymous = Identity{ID: "anonymous"}

// Session pairs a resolved identity with the claims derived from it.
// Claims are derived fresh on every resolution and are immutable for the
// request's duration.
type Session struct {
	// Identity is the authenticated principal.
	Identity Identity `json:"identity"`

	// Claims is the derived authorization state.
	Claims *authz.Claims `json:"claims"`

	// ExpiresAt is when the underlying credential expires.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session's credential has expired.
func (s *Session) Expired() bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(s.ExpiresAt)
}

// Context key types.
type (
	sessionContextKey   struct{}
	teamScopeContextKey struct{}
)

// ContextWithSession adds a resolved session to the context.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// FromContext extracts the session from the context.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	return s, ok && s != nil
}

// ContextWithTeamScope records the concrete team a policy was scoped to,
// so guarded handlers can pick it up without re-parsing the route.
func ContextWithTeamScope(ctx context.Context, team authz.TeamID) context.Context {
	return context.WithValue(ctx, teamScopeContextKey{}, team)
}

// TeamScopeFromContext extracts the policy's team scope from the context.
func TeamScopeFromContext(ctx context.Context) (authz.TeamID, bool) {
	team, ok := ctx.Value(teamScopeContextKey{}).(authz.TeamID)
	return team, ok
}
