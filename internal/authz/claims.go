package authz

import "sort"

// TeamID identifies a team.
type TeamID string

// Claims is the derived authorization state for one identity. Claims are
// request-scoped: they are built once from the resolved session, stay
// immutable for the request's duration, and are never persisted.
//
// A nil *Claims means the identity has not been resolved yet; every
// predicate below returns false for it rather than panicking, so callers
// can query claims during a loading state without guarding for nil.
type Claims struct {
	// GlobalAdmin supersedes every team-scoped check.
	GlobalAdmin bool

	// TeamMemberships maps a team to the roles held in that team. An
	// absent team and a team with an empty role set are equivalent.
	TeamMemberships map[TeamID]RoleSet
}

// IsGlobalAdmin reports whether the identity is a global administrator.
func (c *Claims) IsGlobalAdmin() bool {
	return c != nil && c.GlobalAdmin
}

// IsTeamMember reports whether the identity belongs to the team with at
// least one role, or is a global administrator.
func (c *Claims) IsTeamMember(team TeamID) bool {
	if c == nil {
		return false
	}
	if c.GlobalAdmin {
		return true
	}
	return !c.TeamMemberships[team].Empty()
}

// HasTeamRole reports whether the identity holds the role in the team.
// Global administrators satisfy any team role check.
func (c *Claims) HasTeamRole(team TeamID, role Role) bool {
	if c == nil {
		return false
	}
	if c.GlobalAdmin {
		return true
	}
	return c.TeamMemberships[team].Has(role)
}

// IsTeamCoach reports whether the identity coaches the team.
func (c *Claims) IsTeamCoach(team TeamID) bool {
	return c.HasTeamRole(team, RoleCoach)
}

// UserTeams returns the teams the identity actually belongs to, sorted.
// Teams with empty role sets are excluded. Global administrators do not
// implicitly belong to every team; only real memberships are returned.
func (c *Claims) UserTeams() []TeamID {
	if c == nil {
		return nil
	}
	teams := make([]TeamID, 0, len(c.TeamMemberships))
	for team, roles := range c.TeamMemberships {
		if !roles.Empty() {
			teams = append(teams, team)
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i] < teams[j] })
	return teams
}

// TeamRoles returns the roles held in the team, or nil when not a member.
// The global administrator flag is not reflected here.
func (c *Claims) TeamRoles(team TeamID) RoleSet {
	if c == nil {
		return nil
	}
	return c.TeamMemberships[team]
}

// FlattenedRoles returns the union of roles across all team memberships,
// with the global administrator flag contributing the synthetic admin
// role. This is the input the redirect policy operates on.
func (c *Claims) FlattenedRoles() RoleSet {
	if c == nil {
		return NewRoleSet()
	}
	flat := NewRoleSet()
	if c.GlobalAdmin {
		flat.Add(RoleAdmin)
	}
	for _, roles := range c.TeamMemberships {
		for r := range roles {
			flat.Add(r)
		}
	}
	return flat
}
