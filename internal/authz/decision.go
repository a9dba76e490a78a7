package authz

// DenyReason classifies why a policy denied an identity.
type DenyReason string

// Denial reasons.
const (
	// DenyUnauthenticated means no identity was resolved.
	DenyUnauthenticated DenyReason = "unauthenticated"

	// DenyNotAdmin means the policy requires a global administrator.
	DenyNotAdmin DenyReason = "not_admin"

	// DenyMissingRole means the identity lacks a required role.
	DenyMissingRole DenyReason = "missing_role"

	// DenyWrongTeam means the identity holds memberships only in teams
	// other than the one the policy is scoped to.
	DenyWrongTeam DenyReason = "wrong_team"
)

// Decision is the outcome of evaluating claims against a policy. It is
// computed fresh per request and never cached.
type Decision struct {
	// Allowed indicates whether the identity may proceed.
	Allowed bool

	// Reason classifies the denial. Empty when allowed.
	Reason DenyReason

	// EffectiveRole is the role under which access was granted, when one
	// is derivable. Empty for anonymous allows and for allows that did
	// not require a role.
	EffectiveRole Role

	// Anonymous marks an allow granted without a resolved identity.
	Anonymous bool
}

// Allow builds an allowing decision under the given effective role.
func Allow(role Role) Decision {
	return Decision{Allowed: true, EffectiveRole: role}
}

// AllowAnonymous builds an allowing decision for an absent identity.
func AllowAnonymous() Decision {
	return Decision{Allowed: true, Anonymous: true}
}

// Deny builds a denying decision with the given reason.
func Deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Evaluate combines claims and a policy into a decision. The function is
// pure and total; the evaluation order is fixed and short-circuiting:
//
//  1. Absent claims with AllowUnauthenticated allow anonymously.
//  2. Absent claims otherwise deny as unauthenticated.
//  3. RequireAdmin admits only global administrators, regardless of the
//     policy's role set or team scope.
//  4. An empty role set admits any authenticated identity.
//  5. With TeamScopeAny, a matching role in any of the identity's teams
//     suffices.
//  6. With a concrete team scope, a matching role in that team is
//     required; membership elsewhere only yields a wrong-team denial,
//     membership in the team without the role a missing-role denial.
//
// The global administrator bypass applies before any role-set check.
func Evaluate(claims *Claims, policy Policy) Decision {
	if claims == nil {
		if policy.AllowUnauthenticated {
			return AllowAnonymous()
		}
		return Deny(DenyUnauthenticated)
	}

	if policy.RequireAdmin {
		if claims.IsGlobalAdmin() {
			return Allow(RoleAdmin)
		}
		return Deny(DenyNotAdmin)
	}

	if policy.RequiredRoles.Empty() {
		return Allow(HighestRole(claims.FlattenedRoles()))
	}

	if claims.IsGlobalAdmin() {
		return Allow(RoleAdmin)
	}

	if policy.scope() == TeamScopeAny {
		for _, team := range claims.UserTeams() {
			if match := intersection(claims.TeamRoles(team), policy.RequiredRoles); !match.Empty() {
				return Allow(HighestRole(match))
			}
		}
		return Deny(DenyMissingRole)
	}

	team := policy.scope()
	if match := intersection(claims.TeamRoles(team), policy.RequiredRoles); !match.Empty() {
		return Allow(HighestRole(match))
	}
	if !claims.IsTeamMember(team) && len(claims.UserTeams()) > 0 {
		return Deny(DenyWrongTeam)
	}
	return Deny(DenyMissingRole)
}

// intersection returns the roles present in both sets.
func intersection(a, b RoleSet) RoleSet {
	out := NewRoleSet()
	for r := range a {
		if b.Has(r) {
			out.Add(r)
		}
	}
	return out
}
