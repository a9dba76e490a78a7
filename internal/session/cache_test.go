package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamreel/teamreel/internal/authz"
)

func newTestMetrics() *Metrics {
	return NewMetricsWithRegisterer("teamreel", prometheus.NewRegistry())
}

func testSession() *Session {
	return &Session{
		Identity: Identity{ID: "user-1", Email: "user@example.com"},
		Claims: &authz.Claims{
			TeamMemberships: map[authz.TeamID]authz.RoleSet{
				"team-1": authz.NewRoleSet(authz.RoleCoach),
			},
		},
		ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second),
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache(time.Minute)
	defer c.Close()

	ctx := context.Background()
	sess := testSession()

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)

	c.Set(ctx, "k1", sess, time.Minute)

	got, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, sess, got)

	c.Delete(ctx, "k1")
	_, ok = c.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestMemoryCacheExpiry(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache(time.Minute)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "k1", testSession(), 20*time.Millisecond)

	_, ok := c.Get(ctx, "k1")
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)

	_, ok = c.Get(ctx, "k1")
	assert.False(t, ok, "entry must not outlive its TTL")
}

func TestMemoryCacheZeroTTLNotStored(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache(0)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "k1", testSession(), 0)

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestNoopCache(t *testing.T) {
	t.Parallel()

	c := NewNoopCache()
	ctx := context.Background()

	c.Set(ctx, "k1", testSession(), time.Minute)
	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)

	c.Delete(ctx, "k1")
	assert.NoError(t, c.Close())
}

func newTestRedisCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheWithClient(client)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	t.Parallel()

	c, _ := newTestRedisCache(t)
	ctx := context.Background()
	sess := testSession()

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)

	c.Set(ctx, "k1", sess, time.Minute)

	got, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, sess.Identity, got.Identity)
	assert.Equal(t, sess.Claims, got.Claims)
	assert.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))

	c.Delete(ctx, "k1")
	_, ok = c.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestRedisCacheTTL(t *testing.T) {
	t.Parallel()

	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	c.Set(ctx, "k1", testSession(), time.Minute)

	_, ok := c.Get(ctx, "k1")
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	_, ok = c.Get(ctx, "k1")
	assert.False(t, ok, "entry must not outlive its TTL")
}

func TestRedisCacheCorruptEntryDropped(t *testing.T) {
	t.Parallel()

	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(redisKeyPrefix+"k1", "{not json"))

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)
	assert.False(t, mr.Exists(redisKeyPrefix+"k1"), "corrupt entry should be evicted")
}

func TestRedisCacheZeroTTLNotStored(t *testing.T) {
	t.Parallel()

	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	c.Set(ctx, "k1", testSession(), 0)
	assert.False(t, mr.Exists(redisKeyPrefix+"k1"))
}
