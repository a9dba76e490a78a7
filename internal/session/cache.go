package session

import (
	"context"
	"sync"
	"time"
)

// Cache stores resolved sessions keyed by credential digest. The TTL
// passed to Set is the upper bound on claim staleness: entries must not
// be served beyond it.
type Cache interface {
	// Get returns the cached session for the key, if present and fresh.
	Get(ctx context.Context, key string) (*Session, bool)

	// Set stores a session under the key for at most ttl.
	Set(ctx context.Context, key string, sess *Session, ttl time.Duration)

	// Delete removes the session under the key.
	Delete(ctx context.Context, key string)

	// Close releases cache resources.
	Close() error
}

// memoryCache is an in-process session cache with lazy expiry.
type memoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	defaultTTL time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

type memoryEntry struct {
	sess      *Session
	expiresAt time.Time
}

// NewMemoryCache creates an in-process session cache. A background
// sweeper evicts expired entries so an abandoned credential does not pin
// its session forever.
func NewMemoryCache(defaultTTL time.Duration) Cache {
	c := &memoryCache{
		entries:    make(map[string]memoryEntry),
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
	}
	go c.sweep()
	return c
}

func (c *memoryCache) Get(_ context.Context, key string) (*Session, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.sess, true
}

func (c *memoryCache) Set(_ context.Context, key string, sess *Session, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{sess: sess, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

func (c *memoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *memoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *memoryCache) sweep() {
	interval := c.defaultTTL
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// noopCache caches nothing. Used when caching is disabled.
type noopCache struct{}

// NewNoopCache creates a cache that stores nothing.
func NewNoopCache() Cache {
	return noopCache{}
}

func (noopCache) Get(context.Context, string) (*Session, bool) { return nil, false }

func (noopCache) Set(context.Context, string, *Session, time.Duration) {}

func (noopCache) Delete(context.Context, string) {}

func (noopCache) Close() error { return nil }

// Ensure implementations satisfy Cache.
var (
	_ Cache = (*memoryCache)(nil)
	_ Cache = noopCache{}
)
