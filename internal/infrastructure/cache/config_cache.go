// Package cache provides a read-only sequence-configuration cache.
// Configurations change rarely, so a bounded TTL is acceptable; counter
// values are never cached anywhere, preserving the atomicity guarantee.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"seqgen/internal/domain/sequence"
)

// ConfigCache caches ConfigRepository.Get results with a bounded TTL.
// Concurrent misses for the same key are collapsed into one repository load.
type ConfigCache struct {
	source sequence.ConfigRepository
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

type entry struct {
	cfg       sequence.Config
	expiresAt time.Time
}

// NewConfigCache wraps a repository with a TTL cache.
func NewConfigCache(source sequence.ConfigRepository, ttl time.Duration) *ConfigCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ConfigCache{
		source:  source,
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

func cacheKey(scopeID, name string) string {
	return scopeID + "\x00" + name
}

// Get returns the cached config or loads it from the repository.
func (c *ConfigCache) Get(ctx context.Context, scopeID, name string) (sequence.Config, error) {
	key := cacheKey(scopeID, name)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(e.expiresAt) {
		return e.cfg, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		cfg, err := c.source.Get(ctx, scopeID, name)
		if err != nil {
			return sequence.Config{}, err
		}
		c.mu.Lock()
		c.entries[key] = entry{cfg: cfg, expiresAt: time.Now().Add(c.ttl)}
		c.mu.Unlock()
		return cfg, nil
	})
	if err != nil {
		return sequence.Config{}, err
	}
	return v.(sequence.Config), nil
}

// Invalidate drops one cached config (call after administrative updates).
func (c *ConfigCache) Invalidate(scopeID, name string) {
	c.mu.Lock()
	delete(c.entries, cacheKey(scopeID, name))
	c.mu.Unlock()
}

// Len returns the number of cached entries, expired ones included.
func (c *ConfigCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
