package authz

import (
	"encoding/json"
	"sort"
)

// Role is one of the recognized roles. The enumeration is closed: values
// outside the constants below are rejected by ParseRole and ignored by
// claims derivation.
type Role string

// Recognized roles.
const (
	// RoleAdmin is the global administrator role. It is never stored
	// per-team; it exists only as the synthetic role derived from the
	// global administrator flag.
	RoleAdmin Role = "admin"

	// RoleCoach is the team coach role.
	RoleCoach Role = "coach"

	// RoleManager is the team manager role.
	RoleManager Role = "manager"

	// RolePlayer is the team player role.
	RolePlayer Role = "player"

	// RoleParent is the team parent role.
	RoleParent Role = "parent"
)

// teamScopedRoles lists the roles that may appear in a team membership.
var teamScopedRoles = map[Role]bool{
	RoleCoach:   true,
	RoleManager: true,
	RolePlayer:  true,
	RoleParent:  true,
}

// Valid reports whether the role is part of the closed enumeration.
func (r Role) Valid() bool {
	return r == RoleAdmin || teamScopedRoles[r]
}

// TeamScoped reports whether the role may be held within a team.
func (r Role) TeamScoped() bool {
	return teamScopedRoles[r]
}

// String returns the role name.
func (r Role) String() string {
	return string(r)
}

// ParseRole parses a role name. Unknown names return false.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	if !r.Valid() {
		return "", false
	}
	return r, true
}

// RoleSet is an unordered set of unique roles.
type RoleSet map[Role]struct{}

// NewRoleSet creates a role set from the given roles. Invalid roles are
// silently dropped so the set stays within the closed enumeration.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		if r.Valid() {
			s[r] = struct{}{}
		}
	}
	return s
}

// Has reports whether the set contains the role.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Add adds a role to the set. Invalid roles are ignored.
func (s RoleSet) Add(r Role) {
	if r.Valid() {
		s[r] = struct{}{}
	}
}

// Empty reports whether the set has no roles. A nil set is empty.
func (s RoleSet) Empty() bool {
	return len(s) == 0
}

// Intersects reports whether the set shares at least one role with other.
func (s RoleSet) Intersects(other RoleSet) bool {
	for r := range s {
		if other.Has(r) {
			return true
		}
	}
	return false
}

// Union returns a new set containing the roles of both sets.
func (s RoleSet) Union(other RoleSet) RoleSet {
	u := make(RoleSet, len(s)+len(other))
	for r := range s {
		u[r] = struct{}{}
	}
	for r := range other {
		u[r] = struct{}{}
	}
	return u
}

// Roles returns the roles in the set, sorted by name for determinism.
func (s RoleSet) Roles() []Role {
	roles := make([]Role, 0, len(s))
	for r := range s {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Names returns the role names in the set, sorted.
func (s RoleSet) Names() []string {
	roles := s.Roles()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return names
}

// MarshalJSON encodes the set as a sorted array of role names.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes an array of role names, dropping unknown ones.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set := make(RoleSet, len(names))
	for _, name := range names {
		if r, ok := ParseRole(name); ok {
			set[r] = struct{}{}
		}
	}
	*s = set
	return nil
}
