package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teamreel/teamreel/internal/observability"
)

// redisKeyPrefix namespaces session entries in a shared Redis instance.
const redisKeyPrefix = "teamreel:session:"

// RedisConfig configures the Redis session cache.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string `yaml:"addr"`

	// Password is the Redis password, if any.
	Password string `yaml:"password"`

	// DB is the Redis database number.
	DB int `yaml:"db"`

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration `yaml:"dialTimeout"`

	// ReadTimeout bounds individual read operations.
	ReadTimeout time.Duration `yaml:"readTimeout"`
}

// redisCache stores sessions in Redis so replicas share one staleness
// window. Entries are JSON encoded; Redis enforces the TTL server-side.
type redisCache struct {
	client *redis.Client
	logger observability.Logger
}

// RedisCacheOption is a functional option for the Redis cache.
type RedisCacheOption func(*redisCache)

// WithRedisCacheLogger sets the logger.
func WithRedisCacheLogger(logger observability.Logger) RedisCacheOption {
	return func(c *redisCache) {
		c.logger = logger
	}
}

// NewRedisCache creates a Redis-backed session cache.
func NewRedisCache(config *RedisConfig, opts ...RedisCacheOption) Cache {
	client := redis.NewClient(&redis.Options{
		Addr:        config.Addr,
		Password:    config.Password,
		DB:          config.DB,
		DialTimeout: config.DialTimeout,
		ReadTimeout: config.ReadTimeout,
	})

	c := &redisCache{
		client: client,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewRedisCacheWithClient creates a Redis-backed session cache around an
// existing client. The caller retains ownership of the client.
func NewRedisCacheWithClient(client *redis.Client, opts ...RedisCacheOption) Cache {
	c := &redisCache{
		client: client,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *redisCache) Get(ctx context.Context, key string) (*Session, bool) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("session cache read failed", observability.Error(err))
		}
		return nil, false
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// A corrupt entry is dropped rather than served.
		c.logger.Warn("session cache entry corrupt", observability.Error(err))
		c.client.Del(ctx, redisKeyPrefix+key)
		return nil, false
	}
	return &sess, true
}

func (c *redisCache) Set(ctx context.Context, key string, sess *Session, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(sess)
	if err != nil {
		c.logger.Warn("session cache encode failed", observability.Error(err))
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
		c.logger.Warn("session cache write failed", observability.Error(err))
	}
}

func (c *redisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		c.logger.Warn("session cache delete failed", observability.Error(err))
	}
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

// Ensure redisCache implements Cache.
var _ Cache = (*redisCache)(nil)
