package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_AbsentClaims(t *testing.T) {
	t.Parallel()

	decision := Evaluate(nil, Policy{AllowUnauthenticated: true})
	assert.True(t, decision.Allowed)
	assert.True(t, decision.Anonymous)

	decision = Evaluate(nil, Policy{})
	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyUnauthenticated, decision.Reason)
}

func TestEvaluate_RequireAdmin(t *testing.T) {
	t.Parallel()

	// RequireAdmin ignores role set and team scope, even contradictory ones.
	policy := Policy{
		RequireAdmin:  true,
		RequiredRoles: NewRoleSet(RoleParent),
		TeamScope:     "team-1",
	}

	admin := &Claims{GlobalAdmin: true}
	decision := Evaluate(admin, policy)
	assert.True(t, decision.Allowed)
	assert.Equal(t, RoleAdmin, decision.EffectiveRole)

	coach := &Claims{
		TeamMemberships: map[TeamID]RoleSet{
			"team-1": NewRoleSet(RoleCoach, RoleParent),
		},
	}
	decision = Evaluate(coach, policy)
	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyNotAdmin, decision.Reason)
}

func TestEvaluate_EmptyRoleSetAdmitsAuthenticated(t *testing.T) {
	t.Parallel()

	claims := &Claims{
		TeamMemberships: map[TeamID]RoleSet{
			"team-1": NewRoleSet(RolePlayer),
		},
	}

	decision := Evaluate(claims, Policy{})
	assert.True(t, decision.Allowed)
	assert.Equal(t, RolePlayer, decision.EffectiveRole)
}

func TestEvaluate_TeamScopes(t *testing.T) {
	t.Parallel()

	coach := &Claims{
		TeamMemberships: map[TeamID]RoleSet{
			"team-1": NewRoleSet(RoleCoach),
		},
	}
	player := &Claims{
		TeamMemberships: map[TeamID]RoleSet{
			"team-1": NewRoleSet(RolePlayer),
		},
	}

	tests := []struct {
		name      string
		claims    *Claims
		policy    Policy
		allowed   bool
		reason    DenyReason
		effective Role
	}{
		{
			name:      "coach allowed in own team",
			claims:    coach,
			policy:    Policy{RequiredRoles: NewRoleSet(RoleCoach), TeamScope: "team-1"},
			allowed:   true,
			effective: RoleCoach,
		},
		{
			name:   "coach denied for another team",
			claims: coach,
			policy: Policy{RequiredRoles: NewRoleSet(RoleCoach), TeamScope: "team-2"},
			reason: DenyWrongTeam,
		},
		{
			name:   "player lacks coach or manager role in any team",
			claims: player,
			policy: Policy{RequiredRoles: NewRoleSet(RoleCoach, RoleManager), TeamScope: TeamScopeAny},
			reason: DenyMissingRole,
		},
		{
			name:   "member of named team without the role",
			claims: player,
			policy: Policy{RequiredRoles: NewRoleSet(RoleCoach), TeamScope: "team-1"},
			reason: DenyMissingRole,
		},
		{
			name:      "any-team scope matches any membership",
			claims:    coach,
			policy:    Policy{RequiredRoles: NewRoleSet(RoleCoach), TeamScope: TeamScopeAny},
			allowed:   true,
			effective: RoleCoach,
		},
		{
			name:      "empty scope defaults to any",
			claims:    coach,
			policy:    Policy{RequiredRoles: NewRoleSet(RoleCoach)},
			allowed:   true,
			effective: RoleCoach,
		},
		{
			name:   "no memberships at all",
			claims: &Claims{},
			policy: Policy{RequiredRoles: NewRoleSet(RoleCoach), TeamScope: "team-1"},
			reason: DenyMissingRole,
		},
		{
			name:      "admin bypasses team scope",
			claims:    &Claims{GlobalAdmin: true},
			policy:    Policy{RequiredRoles: NewRoleSet(RoleCoach), TeamScope: "team-2"},
			allowed:   true,
			effective: RoleAdmin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			decision := Evaluate(tt.claims, tt.policy)
			assert.Equal(t, tt.allowed, decision.Allowed)
			if tt.allowed {
				assert.Equal(t, tt.effective, decision.EffectiveRole)
			} else {
				assert.Equal(t, tt.reason, decision.Reason)
			}
		})
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	t.Parallel()

	claims := &Claims{
		TeamMemberships: map[TeamID]RoleSet{
			"team-1": NewRoleSet(RoleCoach, RolePlayer),
			"team-2": NewRoleSet(RoleManager),
		},
	}
	policy := Policy{RequiredRoles: NewRoleSet(RoleCoach, RoleManager), TeamScope: TeamScopeAny}

	first := Evaluate(claims, policy)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Evaluate(claims, policy))
	}
}
