package authz

import "fmt"

// TeamScopeAny makes a policy's role requirement match a role held in any
// of the identity's teams.
const TeamScopeAny TeamID = "any"

// Policy is the authorization requirement declared by a protected
// resource. Policies are declared once at route registration and never
// mutated at runtime.
type Policy struct {
	// RequiredRoles is the set of roles that satisfy the policy. When
	// empty, any authenticated identity suffices unless RequireAdmin is
	// set.
	RequiredRoles RoleSet

	// TeamScope restricts the role check to a concrete team, or to any
	// team the identity belongs to when set to TeamScopeAny. An empty
	// scope is treated as TeamScopeAny.
	TeamScope TeamID

	// RequireAdmin admits only global administrators. RequiredRoles and
	// TeamScope are ignored when set.
	RequireAdmin bool

	// AllowUnauthenticated makes the absence of an identity an allow,
	// for endpoints that degrade gracefully instead of rejecting.
	AllowUnauthenticated bool
}

// Validate checks that the policy is well formed.
func (p Policy) Validate() error {
	for r := range p.RequiredRoles {
		if !r.Valid() {
			return fmt.Errorf("%w: unknown role %q", ErrInvalidPolicy, r)
		}
		if !r.TeamScoped() {
			return fmt.Errorf("%w: role %q cannot be required per-team", ErrInvalidPolicy, r)
		}
	}
	return nil
}

// scope returns the effective team scope.
func (p Policy) scope() TeamID {
	if p.TeamScope == "" {
		return TeamScopeAny
	}
	return p.TeamScope
}
