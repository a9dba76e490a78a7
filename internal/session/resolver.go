package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/teamreel/teamreel/internal/authz"
	"github.com/teamreel/teamreel/internal/observability"
)

// sessionTracer is the OTEL tracer used for session resolution.
var sessionTracer = otel.Tracer("teamreel/session")

// Default claim names in the session token.
const (
	// DefaultAdminClaim is the boolean claim carrying the global
	// administrator flag.
	DefaultAdminClaim = "admin"

	// DefaultTeamsClaim is the claim mapping team ids to role names.
	DefaultTeamsClaim = "teams"

	// DefaultEmailClaim is the claim carrying the principal's email.
	DefaultEmailClaim = "email"
)

// DefaultClockSkew is the allowed clock skew for token validation.
const DefaultClockSkew = 30 * time.Second

// Config configures the session resolver.
type Config struct {
	// Issuer is the required token issuer. Empty disables the check.
	Issuer string `yaml:"issuer"`

	// Audience is the required token audience. Empty disables the check.
	Audience string `yaml:"audience"`

	// SigningSecret is the shared HMAC secret for HS256 tokens.
	SigningSecret string `yaml:"signingSecret"`

	// JWKSURL is the JWKS endpoint for asymmetric keys. Used when
	// SigningSecret is empty.
	JWKSURL string `yaml:"jwksUrl"`

	// ClockSkew is the allowed clock skew for time-based validation.
	ClockSkew time.Duration `yaml:"clockSkew"`

	// CacheTTL bounds how long a resolved session may be served from
	// cache. This is the explicit staleness window for claims: a role
	// revoked mid-session is observed at the next cache expiry. Zero
	// disables caching.
	CacheTTL time.Duration `yaml:"cacheTTL"`

	// AdminClaim overrides the admin flag claim name.
	AdminClaim string `yaml:"adminClaim"`

	// TeamsClaim overrides the team membership claim name.
	TeamsClaim string `yaml:"teamsClaim"`

	// EmailClaim overrides the email claim name.
	EmailClaim string `yaml:"emailClaim"`
}

func (c *Config) adminClaim() string {
	if c.AdminClaim != "" {
		return c.AdminClaim
	}
	return DefaultAdminClaim
}

func (c *Config) teamsClaim() string {
	if c.TeamsClaim != "" {
		return c.TeamsClaim
	}
	return DefaultTeamsClaim
}

func (c *Config) emailClaim() string {
	if c.EmailClaim != "" {
		return c.EmailClaim
	}
	return DefaultEmailClaim
}

func (c *Config) clockSkew() time.Duration {
	if c.ClockSkew > 0 {
		return c.ClockSkew
	}
	return DefaultClockSkew
}

// Resolver resolves a request credential into a session. Repeated calls
// with the same credential yield the same result absent an external
// state change, and claims derivation is idempotent and free of side
// effects.
type Resolver interface {
	// Resolve resolves a bearer credential. An empty credential returns
	// ErrNoSession.
	Resolve(ctx context.Context, credential string) (*Session, error)
}

// resolver implements the Resolver interface on top of signed tokens.
type resolver struct {
	config  *Config
	key     jwk.Key
	jwks    *jwk.Cache
	cache   Cache
	group   singleflight.Group
	watcher *Watcher
	logger  observability.Logger
	metrics *Metrics

	// mu guards bySubject, the subject-to-cache-key index used for
	// out-of-band invalidation. Only maintained when a watcher is set.
	mu        sync.Mutex
	bySubject map[string][]string
}

// ResolverOption is a functional option for the resolver.
type ResolverOption func(*resolver)

// WithResolverLogger sets the logger.
func WithResolverLogger(logger observability.Logger) ResolverOption {
	return func(r *resolver) {
		r.logger = logger
	}
}

// WithResolverMetrics sets the metrics.
func WithResolverMetrics(metrics *Metrics) ResolverOption {
	return func(r *resolver) {
		r.metrics = metrics
	}
}

// WithCache sets the session cache.
func WithCache(cache Cache) ResolverOption {
	return func(r *resolver) {
		r.cache = cache
	}
}

// WithSessionWatcher subscribes the resolver to out-of-band session
// changes. A change drops the subject's cached sessions so the next
// request re-derives claims instead of waiting out the cache TTL.
func WithSessionWatcher(watcher *Watcher) ResolverOption {
	return func(r *resolver) {
		r.watcher = watcher
	}
}

// NewResolver creates a new token-backed session resolver.
func NewResolver(config *Config, opts ...ResolverOption) (Resolver, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	r := &resolver{
		config: config,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.metrics == nil {
		r.metrics = NewMetrics("teamreel")
	}
	if r.cache == nil {
		if config.CacheTTL > 0 {
			r.cache = NewMemoryCache(config.CacheTTL)
		} else {
			r.cache = NewNoopCache()
		}
	}

	switch {
	case config.SigningSecret != "":
		key, err := jwk.FromRaw([]byte(config.SigningSecret))
		if err != nil {
			return nil, err
		}
		r.key = key
	case config.JWKSURL != "":
		cache := jwk.NewCache(context.Background())
		if err := cache.Register(config.JWKSURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
			return nil, err
		}
		r.jwks = cache
	default:
		return nil, errors.New("no key source configured")
	}

	if r.watcher != nil {
		r.bySubject = make(map[string][]string)
		r.watcher.Subscribe(r.invalidate)
	}

	return r, nil
}

// Resolve resolves a bearer credential into a session.
func (r *resolver) Resolve(ctx context.Context, credential string) (*Session, error) {
	start := time.Now()

	ctx, span := sessionTracer.Start(ctx, "session.resolve",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	if credential == "" {
		span.SetAttributes(attribute.String("session.result", "no_session"))
		r.metrics.RecordResolution("no_session", time.Since(start))
		return nil, ErrNoSession
	}

	cacheKey := credentialDigest(credential)

	if sess, ok := r.cache.Get(ctx, cacheKey); ok && !sess.Expired() {
		span.SetAttributes(attribute.Bool("session.cached", true))
		r.metrics.RecordCacheHit()
		r.metrics.RecordResolution("success", time.Since(start))
		return sess, nil
	}
	r.metrics.RecordCacheMiss()

	// Collapse concurrent resolutions of the same credential into one
	// validation round-trip.
	v, err, shared := r.group.Do(cacheKey, func() (interface{}, error) {
		return r.resolve(ctx, credential, cacheKey)
	})
	if shared {
		r.metrics.RecordSharedResolution()
	}
	if err != nil {
		span.SetAttributes(attribute.String("session.result", resultLabel(err)))
		r.metrics.RecordResolution(resultLabel(err), time.Since(start))
		return nil, err
	}

	sess := v.(*Session)
	span.SetAttributes(
		attribute.String("session.result", "success"),
		attribute.String("session.subject", sess.Identity.ID),
	)
	r.metrics.RecordResolution("success", time.Since(start))

	return sess, nil
}

// resolve validates the credential and derives a fresh session from it.
func (r *resolver) resolve(ctx context.Context, credential, cacheKey string) (*Session, error) {
	parseOpts := []jwt.ParseOption{
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(r.config.clockSkew()),
	}
	if r.config.Issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(r.config.Issuer))
	}
	if r.config.Audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(r.config.Audience))
	}

	if r.key != nil {
		parseOpts = append(parseOpts, jwt.WithKey(jwa.HS256, r.key))
	} else {
		set, err := r.jwks.Get(ctx, r.config.JWKSURL)
		if err != nil {
			return nil, wrapResolveError(ErrSessionMalformed, err)
		}
		parseOpts = append(parseOpts, jwt.WithKeySet(set))
	}

	tok, err := jwt.Parse([]byte(credential), parseOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return nil, wrapResolveError(ErrSessionExpired, err)
		}
		return nil, wrapResolveError(ErrSessionMalformed, err)
	}

	sess := &Session{
		Identity: Identity{
			ID:    tok.Subject(),
			Email: stringClaim(tok, r.config.emailClaim()),
		},
		Claims:    deriveClaims(tok, r.config),
		ExpiresAt: tok.Expiration(),
	}

	if ttl := r.cacheTTL(sess); ttl > 0 {
		r.cache.Set(ctx, cacheKey, sess, ttl)
		r.trackSubject(sess.Identity.ID, cacheKey)
	}

	r.logger.Debug("session resolved",
		observability.String("subject", sess.Identity.ID),
		observability.Bool("global_admin", sess.Claims.IsGlobalAdmin()),
		observability.Strings("roles", sess.Claims.FlattenedRoles().Names()),
		observability.Int("teams", len(sess.Claims.UserTeams())),
	)

	return sess, nil
}

// trackSubject remembers which cache keys hold sessions for a subject.
func (r *resolver) trackSubject(subject, cacheKey string) {
	if r.watcher == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range r.bySubject[subject] {
		if key == cacheKey {
			return
		}
	}
	r.bySubject[subject] = append(r.bySubject[subject], cacheKey)
}

// invalidate drops cached sessions after an out-of-band change. A nil
// session is a broadcast without a subject and flushes every tracked
// entry.
func (r *resolver) invalidate(sess *Session) {
	r.mu.Lock()
	var keys []string
	if sess == nil {
		for _, tracked := range r.bySubject {
			keys = append(keys, tracked...)
		}
		r.bySubject = make(map[string][]string)
	} else {
		keys = r.bySubject[sess.Identity.ID]
		delete(r.bySubject, sess.Identity.ID)
	}
	r.mu.Unlock()

	for _, key := range keys {
		r.cache.Delete(context.Background(), key)
	}
	if len(keys) > 0 {
		r.logger.Debug("cached sessions invalidated",
			observability.Int("entries", len(keys)),
		)
	}
}

// cacheTTL returns the cache TTL for a session, capped at its expiry.
func (r *resolver) cacheTTL(sess *Session) time.Duration {
	ttl := r.config.CacheTTL
	if ttl <= 0 {
		return 0
	}
	if !sess.ExpiresAt.IsZero() {
		if until := time.Until(sess.ExpiresAt); until < ttl {
			ttl = until
		}
	}
	return ttl
}

// deriveClaims builds authorization claims from token claims. Derivation
// is pure: the same token always yields the same claims.
func deriveClaims(tok jwt.Token, cfg *Config) *authz.Claims {
	claims := &authz.Claims{
		TeamMemberships: make(map[authz.TeamID]authz.RoleSet),
	}

	if v, ok := tok.Get(cfg.adminClaim()); ok {
		if admin, ok := v.(bool); ok {
			claims.GlobalAdmin = admin
		}
	}

	if v, ok := tok.Get(cfg.teamsClaim()); ok {
		if teams, ok := v.(map[string]interface{}); ok {
			for team, raw := range teams {
				claims.TeamMemberships[authz.TeamID(team)] = parseRoleNames(raw)
			}
		}
	}

	return claims
}

// parseRoleNames converts a raw claim value into a role set. Unknown
// names and the admin role are dropped: admin is global only and never
// stored per-team.
func parseRoleNames(raw interface{}) authz.RoleSet {
	set := authz.NewRoleSet()
	add := func(name string) {
		if role, ok := authz.ParseRole(name); ok && role.TeamScoped() {
			set.Add(role)
		}
	}
	switch list := raw.(type) {
	case []interface{}:
		for _, item := range list {
			if name, ok := item.(string); ok {
				add(name)
			}
		}
	case []string:
		for _, name := range list {
			add(name)
		}
	}
	return set
}

// stringClaim returns a string claim value, or empty.
func stringClaim(tok jwt.Token, name string) string {
	if v, ok := tok.Get(name); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// credentialDigest derives a cache and deduplication key from the raw
// credential without storing the credential itself.
func credentialDigest(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// resultLabel maps a resolution error to a metrics label.
func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrNoSession):
		return "no_session"
	case errors.Is(err, ErrSessionExpired):
		return "expired"
	case errors.Is(err, ErrSessionMalformed):
		return "malformed"
	default:
		return "error"
	}
}

// Ensure resolver implements Resolver.
var _ Resolver = (*resolver)(nil)
