package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/teamreel/teamreel/internal/authz"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Session.SigningSecret = "test-secret"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 60*time.Second, cfg.Session.CacheTTL.Duration())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name: "valid with routes",
			mutate: func(c *Config) {
				c.Routes = []RouteConfig{
					{Path: "/coach", Kind: GuardKindPage, Roles: []string{"coach"}},
					{Path: "/api/admin", Kind: GuardKindAPI, RequireAdmin: true},
				}
			},
		},
		{
			name:    "missing listen addr",
			mutate:  func(c *Config) { c.Server.ListenAddr = "" },
			wantErr: "listenAddr",
		},
		{
			name:    "missing key source",
			mutate:  func(c *Config) { c.Session.SigningSecret = "" },
			wantErr: "signingSecret or jwksUrl",
		},
		{
			name:    "redis without addr",
			mutate:  func(c *Config) { c.Redis = &RedisConfig{} },
			wantErr: "redis.addr",
		},
		{
			name: "route without path",
			mutate: func(c *Config) {
				c.Routes = []RouteConfig{{Kind: GuardKindAPI}}
			},
			wantErr: "path is required",
		},
		{
			name: "route with unknown kind",
			mutate: func(c *Config) {
				c.Routes = []RouteConfig{{Path: "/x", Kind: "socket"}}
			},
			wantErr: "unknown guard kind",
		},
		{
			name: "route with unknown role",
			mutate: func(c *Config) {
				c.Routes = []RouteConfig{{Path: "/x", Kind: GuardKindAPI, Roles: []string{"referee"}}}
			},
			wantErr: "unknown role",
		},
		{
			name: "duplicate route",
			mutate: func(c *Config) {
				c.Routes = []RouteConfig{
					{Path: "/x", Kind: GuardKindAPI},
					{Path: "/x", Kind: GuardKindPage},
				}
			},
			wantErr: "declared twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRouteConfigPolicy(t *testing.T) {
	t.Parallel()

	route := RouteConfig{
		Path:      "/api/teams/team-1/roster",
		Kind:      GuardKindAPI,
		Roles:     []string{"coach", "manager"},
		TeamScope: "team-1",
	}

	policy, err := route.Policy()
	require.NoError(t, err)

	assert.True(t, policy.RequiredRoles.Has(authz.RoleCoach))
	assert.True(t, policy.RequiredRoles.Has(authz.RoleManager))
	assert.Equal(t, authz.TeamID("team-1"), policy.TeamScope)
	assert.False(t, policy.RequireAdmin)

	_, err = RouteConfig{Path: "/x", Kind: GuardKindAPI, Roles: []string{"admin"}}.Policy()
	assert.Error(t, err, "admin cannot be required per-team")
}

func TestDurationYAML(t *testing.T) {
	t.Parallel()

	var s struct {
		Timeout Duration `yaml:"timeout"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("timeout: 1h30m\n"), &s))
	assert.Equal(t, 90*time.Minute, s.Timeout.Duration())

	require.NoError(t, yaml.Unmarshal([]byte(`timeout: ""`), &s))
	assert.Zero(t, s.Timeout.Duration())

	assert.Error(t, yaml.Unmarshal([]byte("timeout: soon"), &s))

	out, err := yaml.Marshal(Duration(5 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, "5s\n", string(out))
}

func TestSessionConfigConversion(t *testing.T) {
	t.Parallel()

	sc := SessionConfig{
		Issuer:        "https://id.teamreel.test",
		Audience:      "teamreel",
		SigningSecret: "secret",
		ClockSkew:     Duration(10 * time.Second),
		CacheTTL:      Duration(time.Minute),
	}

	rc := sc.ResolverConfig()
	assert.Equal(t, "https://id.teamreel.test", rc.Issuer)
	assert.Equal(t, 10*time.Second, rc.ClockSkew)
	assert.Equal(t, time.Minute, rc.CacheTTL)
}
