package profile

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 5 * time.Minute
)

// CacheStats is a point-in-time view of cache effectiveness.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// Cached wraps a [Store] with an expirable LRU. Only successful fetches are
// cached; errors always pass through so a flaky backend never pins a miss.
type Cached struct {
	inner Store
	cache *lru.LRU[string, *Profile]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCached wraps inner. size <= 0 and ttl <= 0 fall back to 256 entries
// and 5 minutes.
func NewCached(inner Store, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cached{
		inner: inner,
		cache: lru.NewLRU[string, *Profile](size, nil, ttl),
	}
}

// ProfileByID serves from cache when possible. Returned profiles are clones;
// callers may mutate them freely.
func (c *Cached) ProfileByID(ctx context.Context, id string) (*Profile, error) {
	if p, ok := c.cache.Get(id); ok {
		c.hits.Add(1)
		return p.Clone(), nil
	}
	c.misses.Add(1)

	p, err := c.inner.ProfileByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, p.Clone())
	return p, nil
}

// Invalidate drops one entry, forcing the next lookup to hit the backend.
func (c *Cached) Invalidate(id string) {
	c.cache.Remove(id)
}

// Purge drops every entry.
func (c *Cached) Purge() {
	c.cache.Purge()
}

// Stats reports hit and miss counts since construction.
func (c *Cached) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.cache.Len(),
	}
}
