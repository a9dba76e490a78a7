package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamreel/teamreel/internal/authz"
)

const testSecret = "resolver-test-secret-0123456789ab"

func signToken(t *testing.T, secret string, mutate func(b *jwt.Builder)) string {
	t.Helper()

	b := jwt.NewBuilder().
		Subject("user-1").
		Issuer("https://id.teamreel.test").
		Audience([]string{"teamreel"}).
		Expiration(time.Now().Add(time.Hour))
	if mutate != nil {
		mutate(b)
	}

	tok, err := b.Build()
	require.NoError(t, err)

	key, err := jwk.FromRaw([]byte(secret))
	require.NoError(t, err)

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, key))
	require.NoError(t, err)

	return string(signed)
}

func newTestResolver(t *testing.T, config *Config, opts ...ResolverOption) Resolver {
	t.Helper()

	if config == nil {
		config = &Config{
			Issuer:        "https://id.teamreel.test",
			Audience:      "teamreel",
			SigningSecret: testSecret,
		}
	}
	opts = append(opts, WithResolverMetrics(newTestMetrics()))

	r, err := NewResolver(config, opts...)
	require.NoError(t, err)
	return r
}

func TestResolverResolveSuccess(t *testing.T) {
	t.Parallel()

	credential := signToken(t, testSecret, func(b *jwt.Builder) {
		b.Claim("email", "coach@example.com").
			Claim("admin", false).
			Claim("teams", map[string]interface{}{
				"team-1": []interface{}{"coach", "player"},
				"team-2": []interface{}{"parent"},
			})
	})

	r := newTestResolver(t, nil)

	sess, err := r.Resolve(context.Background(), credential)
	require.NoError(t, err)

	assert.Equal(t, "user-1", sess.Identity.ID)
	assert.Equal(t, "coach@example.com", sess.Identity.Email)
	assert.False(t, sess.Claims.IsGlobalAdmin())
	assert.True(t, sess.Claims.HasTeamRole("team-1", authz.RoleCoach))
	assert.True(t, sess.Claims.HasTeamRole("team-1", authz.RolePlayer))
	assert.True(t, sess.Claims.HasTeamRole("team-2", authz.RoleParent))
	assert.False(t, sess.Claims.HasTeamRole("team-2", authz.RoleCoach))
	assert.False(t, sess.Expired())
}

func TestResolverResolveGlobalAdmin(t *testing.T) {
	t.Parallel()

	credential := signToken(t, testSecret, func(b *jwt.Builder) {
		b.Claim("admin", true)
	})

	r := newTestResolver(t, nil)

	sess, err := r.Resolve(context.Background(), credential)
	require.NoError(t, err)

	assert.True(t, sess.Claims.IsGlobalAdmin())
	assert.Empty(t, sess.Claims.UserTeams())
}

func TestResolverResolveEmptyCredential(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, nil)

	sess, err := r.Resolve(context.Background(), "")
	require.ErrorIs(t, err, ErrNoSession)
	assert.Nil(t, sess)
}

func TestResolverResolveExpired(t *testing.T) {
	t.Parallel()

	credential := signToken(t, testSecret, func(b *jwt.Builder) {
		b.Expiration(time.Now().Add(-time.Minute))
	})

	r := newTestResolver(t, &Config{
		Issuer:        "https://id.teamreel.test",
		Audience:      "teamreel",
		SigningSecret: testSecret,
		ClockSkew:     time.Second,
	})

	sess, err := r.Resolve(context.Background(), credential)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Nil(t, sess)
	assert.True(t, IsAuthFailure(err))
}

func TestResolverResolveMalformed(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, nil)

	tests := []struct {
		name       string
		credential string
	}{
		{name: "garbage", credential: "not-a-token"},
		{name: "truncated", credential: "eyJhbGciOiJIUzI1NiJ9"},
		{name: "wrong signature", credential: signToken(t, "another-secret-for-wrong-sig-aa", nil)},
		{name: "wrong issuer", credential: signToken(t, testSecret, func(b *jwt.Builder) {
			b.Issuer("https://other.example.com")
		})},
		{name: "wrong audience", credential: signToken(t, testSecret, func(b *jwt.Builder) {
			b.Audience([]string{"other"})
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sess, err := r.Resolve(context.Background(), tt.credential)
			require.ErrorIs(t, err, ErrSessionMalformed)
			assert.Nil(t, sess)
			assert.True(t, IsAuthFailure(err))
		})
	}
}

func TestResolverDropsUnknownAndGlobalRoles(t *testing.T) {
	t.Parallel()

	credential := signToken(t, testSecret, func(b *jwt.Builder) {
		b.Claim("teams", map[string]interface{}{
			// "admin" must not survive inside a team membership and
			// unknown names are ignored.
			"team-1": []interface{}{"coach", "admin", "goalkeeper"},
		})
	})

	r := newTestResolver(t, nil)

	sess, err := r.Resolve(context.Background(), credential)
	require.NoError(t, err)

	roles := sess.Claims.TeamRoles("team-1")
	assert.Equal(t, []authz.Role{authz.RoleCoach}, roles.Roles())
}

func TestResolverResolveIdempotent(t *testing.T) {
	t.Parallel()

	credential := signToken(t, testSecret, func(b *jwt.Builder) {
		b.Claim("teams", map[string]interface{}{
			"team-1": []interface{}{"manager"},
		})
	})

	r := newTestResolver(t, nil)

	first, err := r.Resolve(context.Background(), credential)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), credential)
	require.NoError(t, err)

	assert.Equal(t, first.Identity, second.Identity)
	assert.Equal(t, first.Claims, second.Claims)
}

func TestResolverUsesCache(t *testing.T) {
	t.Parallel()

	credential := signToken(t, testSecret, func(b *jwt.Builder) {
		b.Claim("teams", map[string]interface{}{
			"team-1": []interface{}{"player"},
		})
	})

	spy := &spyCache{inner: NewMemoryCache(time.Minute)}
	r := newTestResolver(t, &Config{
		Issuer:        "https://id.teamreel.test",
		Audience:      "teamreel",
		SigningSecret: testSecret,
		CacheTTL:      time.Minute,
	}, WithCache(spy))

	_, err := r.Resolve(context.Background(), credential)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), credential)
	require.NoError(t, err)

	assert.Equal(t, 1, spy.sets(), "second resolution should be served from cache")
}

func TestResolverSharesConcurrentResolutions(t *testing.T) {
	t.Parallel()

	const workers = 8

	credential := signToken(t, testSecret, func(b *jwt.Builder) {
		b.Claim("teams", map[string]interface{}{
			"team-1": []interface{}{"coach"},
		})
	})

	cache := &gateCache{gate: make(chan struct{})}
	cache.ready.Add(workers)

	r := newTestResolver(t, &Config{
		Issuer:        "https://id.teamreel.test",
		Audience:      "teamreel",
		SigningSecret: testSecret,
		CacheTTL:      time.Minute,
	}, WithCache(cache))

	sessions := make([]*Session, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = r.Resolve(context.Background(), credential)
		}(i)
	}

	cache.ready.Wait()
	close(cache.gate)
	wg.Wait()

	assert.EqualValues(t, 1, cache.setN.Load(), "overlapping resolutions must share one validation")
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, sessions[i])
		assert.Equal(t, "user-1", sessions[i].Identity.ID)
		assert.True(t, sessions[i].Claims.HasTeamRole("team-1", authz.RoleCoach))
	}
}

func TestResolverWatcherInvalidatesSubject(t *testing.T) {
	t.Parallel()

	credential := signToken(t, testSecret, func(b *jwt.Builder) {
		b.Claim("teams", map[string]interface{}{
			"team-1": []interface{}{"player"},
		})
	})

	w := NewWatcher()
	defer w.Close()

	spy := &spyCache{inner: NewMemoryCache(time.Minute)}
	r := newTestResolver(t, &Config{
		Issuer:        "https://id.teamreel.test",
		Audience:      "teamreel",
		SigningSecret: testSecret,
		CacheTTL:      time.Minute,
	}, WithCache(spy), WithSessionWatcher(w))

	sess, err := r.Resolve(context.Background(), credential)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), credential)
	require.NoError(t, err)
	require.Equal(t, 1, spy.sets(), "second resolution should be served from cache")

	w.Update(sess)

	require.Eventually(t, func() bool {
		_, err := r.Resolve(context.Background(), credential)
		return err == nil && spy.sets() == 2
	}, time.Second, 10*time.Millisecond, "session change must force claims re-derivation")
}

func TestResolverWatcherBroadcastFlushesAll(t *testing.T) {
	t.Parallel()

	first := signToken(t, testSecret, nil)
	second := signToken(t, testSecret, func(b *jwt.Builder) {
		b.Subject("user-2")
	})

	w := NewWatcher()
	defer w.Close()

	spy := &spyCache{inner: NewMemoryCache(time.Minute)}
	r := newTestResolver(t, &Config{
		Issuer:        "https://id.teamreel.test",
		Audience:      "teamreel",
		SigningSecret: testSecret,
		CacheTTL:      time.Minute,
	}, WithCache(spy), WithSessionWatcher(w))

	_, err := r.Resolve(context.Background(), first)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), second)
	require.NoError(t, err)
	require.Equal(t, 2, spy.sets())

	w.Update(nil)

	require.Eventually(t, func() bool {
		_, err1 := r.Resolve(context.Background(), first)
		_, err2 := r.Resolve(context.Background(), second)
		return err1 == nil && err2 == nil && spy.sets() == 4
	}, time.Second, 10*time.Millisecond, "broadcast must drop every cached session")
}

func TestNewResolverRequiresKeySource(t *testing.T) {
	t.Parallel()

	_, err := NewResolver(&Config{Issuer: "https://id.teamreel.test"})
	require.Error(t, err)

	_, err = NewResolver(nil)
	require.Error(t, err)
}

// gateCache releases all pending Gets at once and stalls the winning
// Set long enough for the remaining callers to join the in-flight
// resolution.
type gateCache struct {
	gate  chan struct{}
	ready sync.WaitGroup
	setN  atomic.Int32
}

func (c *gateCache) Get(context.Context, string) (*Session, bool) {
	c.ready.Done()
	<-c.gate
	return nil, false
}

func (c *gateCache) Set(context.Context, string, *Session, time.Duration) {
	c.setN.Add(1)
	time.Sleep(200 * time.Millisecond)
}

func (c *gateCache) Delete(context.Context, string) {}

func (c *gateCache) Close() error { return nil }

// spyCache counts writes while delegating to a real cache.
type spyCache struct {
	inner Cache
	mu    sync.Mutex
	setN  int
}

func (c *spyCache) Get(ctx context.Context, key string) (*Session, bool) {
	return c.inner.Get(ctx, key)
}

func (c *spyCache) Set(ctx context.Context, key string, sess *Session, ttl time.Duration) {
	c.mu.Lock()
	c.setN++
	c.mu.Unlock()
	c.inner.Set(ctx, key, sess, ttl)
}

func (c *spyCache) Delete(ctx context.Context, key string) {
	c.inner.Delete(ctx, key)
}

func (c *spyCache) Close() error {
	return c.inner.Close()
}

func (c *spyCache) sets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setN
}
