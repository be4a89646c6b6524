// Package throttle reduces redundant RPC calls from read-only surfaces.
package throttle

import (
	"context"
	"sync"
	"time"
)

// DefaultHeadTTL is how long a cached head height stays fresh.
const DefaultHeadTTL = 15 * time.Second

// HeadSource returns the current head height of one chain.
type HeadSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// HeadCache caches BlockNumber for status and health queries. The scan pass
// reads the head directly so its window always ends at a fresh height.
type HeadCache struct {
	src HeadSource
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	cached   uint64
	cachedAt time.Time
}

// NewHeadCache creates a head cache. ttl <= 0 means DefaultHeadTTL.
func NewHeadCache(src HeadSource, ttl time.Duration) *HeadCache {
	if ttl <= 0 {
		ttl = DefaultHeadTTL
	}
	return &HeadCache{src: src, ttl: ttl, now: time.Now}
}

// BlockNumber returns the cached height if within TTL, otherwise fetches
// fresh. Errors are not cached.
func (c *HeadCache) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	if c.cached > 0 && c.now().Sub(c.cachedAt) < c.ttl {
		cached := c.cached
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	head, err := c.src.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.cached = head
	c.cachedAt = c.now()
	c.mu.Unlock()
	return head, nil
}

// Observe stores a height read elsewhere, such as at the start of a pass.
func (c *HeadCache) Observe(head uint64) {
	c.mu.Lock()
	if head >= c.cached {
		c.cached = head
		c.cachedAt = c.now()
	}
	c.mu.Unlock()
}

// Invalidate clears the cache, forcing the next call to fetch fresh data.
func (c *HeadCache) Invalidate() {
	c.mu.Lock()
	c.cachedAt = time.Time{}
	c.mu.Unlock()
}
