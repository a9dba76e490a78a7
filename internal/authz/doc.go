// Package authz implements the team-scoped authorization core.
//
// An identity's authorization state is captured by Claims: a global
// administrator flag plus a mapping from team to the roles held in that
// team. Protected resources declare a Policy, and Evaluate combines the
// two into a Decision. All of it is pure: no I/O, no hidden state, and
// identical inputs always produce identical decisions.
//
// The global administrator flag supersedes every team-scoped check. A
// team with an empty role set is treated exactly like a team the
// identity does not belong to.
//
// Typical usage:
//
//	policy := authz.Policy{
//	    RequiredRoles: authz.NewRoleSet(authz.RoleCoach),
//	    TeamScope:     "team-1",
//	}
//	decision := authz.Evaluate(claims, policy)
//	if !decision.Allowed {
//	    // decision.Reason says why
//	}
//
// RedirectPath maps a role set to the canonical landing route for an
// identity, used by the page guard when a denial needs a destination.
package authz
