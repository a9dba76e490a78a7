package config

import (
	"fmt"
	"time"

	"github.com/teamreel/teamreel/internal/authz"
	"github.com/teamreel/teamreel/internal/observability"
	"github.com/teamreel/teamreel/internal/session"
)

// Config is the root service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Redis   *RedisConfig  `yaml:"redis,omitempty"`
	Routes  []RouteConfig `yaml:"routes,omitempty"`
	Audit   AuditConfig   `yaml:"audit"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// AuditConfig configures the security audit log.
type AuditConfig struct {
	// Enabled turns audit logging on.
	Enabled bool `yaml:"enabled"`

	// Path is the audit log file. Empty writes to stdout.
	Path string `yaml:"path,omitempty"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	ListenAddr      string   `yaml:"listenAddr"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
}

// SessionConfig configures session resolution.
type SessionConfig struct {
	Issuer        string   `yaml:"issuer"`
	Audience      string   `yaml:"audience"`
	SigningSecret string   `yaml:"signingSecret"`
	JWKSURL       string   `yaml:"jwksUrl"`
	ClockSkew     Duration `yaml:"clockSkew"`
	CacheTTL      Duration `yaml:"cacheTTL"`
	CookieName    string   `yaml:"cookieName"`
	AdminClaim    string   `yaml:"adminClaim"`
	TeamsClaim    string   `yaml:"teamsClaim"`
	EmailClaim    string   `yaml:"emailClaim"`
}

// ResolverConfig converts to the session resolver's configuration.
func (c SessionConfig) ResolverConfig() *session.Config {
	return &session.Config{
		Issuer:        c.Issuer,
		Audience:      c.Audience,
		SigningSecret: c.SigningSecret,
		JWKSURL:       c.JWKSURL,
		ClockSkew:     c.ClockSkew.Duration(),
		CacheTTL:      c.CacheTTL.Duration(),
		AdminClaim:    c.AdminClaim,
		TeamsClaim:    c.TeamsClaim,
		EmailClaim:    c.EmailClaim,
	}
}

// RedisConfig configures the shared session cache.
type RedisConfig struct {
	Addr        string   `yaml:"addr"`
	Password    string   `yaml:"password"`
	DB          int      `yaml:"db"`
	DialTimeout Duration `yaml:"dialTimeout"`
	ReadTimeout Duration `yaml:"readTimeout"`
}

// CacheConfig converts to the session cache's configuration.
func (c *RedisConfig) CacheConfig() *session.RedisConfig {
	return &session.RedisConfig{
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: c.DialTimeout.Duration(),
		ReadTimeout: c.ReadTimeout.Duration(),
	}
}

// Guard kinds for configured routes.
const (
	GuardKindAPI  = "api"
	GuardKindPage = "page"
)

// RouteConfig declares a guarded route.
type RouteConfig struct {
	// Path is the route path, in gin syntax.
	Path string `yaml:"path"`

	// Kind selects the guard style: "api" or "page".
	Kind string `yaml:"kind"`

	// Roles are the role names that satisfy the route's policy.
	Roles []string `yaml:"roles,omitempty"`

	// TeamScope scopes the role check to a concrete team. Empty means
	// any team.
	TeamScope string `yaml:"teamScope,omitempty"`

	// RequireAdmin admits only global administrators.
	RequireAdmin bool `yaml:"requireAdmin,omitempty"`

	// AllowUnauthenticated admits visitors without a session.
	AllowUnauthenticated bool `yaml:"allowUnauthenticated,omitempty"`
}

// Policy converts the route declaration into an authorization policy.
func (r RouteConfig) Policy() (authz.Policy, error) {
	roles := authz.NewRoleSet()
	for _, name := range r.Roles {
		role, ok := authz.ParseRole(name)
		if !ok {
			return authz.Policy{}, fmt.Errorf("route %s: unknown role %q", r.Path, name)
		}
		roles.Add(role)
	}

	p := authz.Policy{
		RequiredRoles:        roles,
		TeamScope:            authz.TeamID(r.TeamScope),
		RequireAdmin:         r.RequireAdmin,
		AllowUnauthenticated: r.AllowUnauthenticated,
	}
	if err := p.Validate(); err != nil {
		return authz.Policy{}, fmt.Errorf("route %s: %w", r.Path, err)
	}
	return p, nil
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// LogConfig converts to the logger's configuration.
func (c LoggingConfig) LogConfig() observability.LogConfig {
	return observability.LogConfig{
		Level:  c.Level,
		Format: c.Format,
		Output: c.Output,
	}
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	ServiceName  string  `yaml:"serviceName"`
}

// TracerConfig converts to the tracer's configuration.
func (c TracingConfig) TracerConfig() observability.TracerConfig {
	name := c.ServiceName
	if name == "" {
		name = "teamreel"
	}
	return observability.TracerConfig{
		ServiceName:  name,
		OTLPEndpoint: c.OTLPEndpoint,
		SamplingRate: c.SamplingRate,
		Enabled:      c.Enabled,
	}
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns a configuration with defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(10 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Session: SessionConfig{
			ClockSkew:  Duration(session.DefaultClockSkew),
			CacheTTL:   Duration(60 * time.Second),
			CookieName: session.DefaultSessionCookie,
		},
		Audit: AuditConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Tracing: TracingConfig{
			SamplingRate: 1.0,
			ServiceName:  "teamreel",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "teamreel",
		},
	}
}

// Validate checks the configuration for errors that would surface only
// at request time.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listenAddr is required")
	}
	if c.Session.SigningSecret == "" && c.Session.JWKSURL == "" {
		return fmt.Errorf("session requires signingSecret or jwksUrl")
	}
	if c.Redis != nil && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is configured")
	}

	seen := make(map[string]bool, len(c.Routes))
	for _, route := range c.Routes {
		if route.Path == "" {
			return fmt.Errorf("route path is required")
		}
		if route.Kind != GuardKindAPI && route.Kind != GuardKindPage {
			return fmt.Errorf("route %s: unknown guard kind %q", route.Path, route.Kind)
		}
		if seen[route.Path] {
			return fmt.Errorf("route %s: declared twice", route.Path)
		}
		seen[route.Path] = true
		if _, err := route.Policy(); err != nil {
			return err
		}
	}

	return nil
}
