package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{
			name:   "zero policy",
			policy: Policy{},
		},
		{
			name:   "team roles",
			policy: Policy{RequiredRoles: NewRoleSet(RoleCoach, RoleManager), TeamScope: "team-1"},
		},
		{
			name:    "admin cannot be required per-team",
			policy:  Policy{RequiredRoles: RoleSet{RoleAdmin: {}}},
			wantErr: true,
		},
		{
			name:    "unknown role",
			policy:  Policy{RequiredRoles: RoleSet{Role("superuser"): {}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.policy.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPolicy)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
