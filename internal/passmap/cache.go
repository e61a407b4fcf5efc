package passmap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/festworks/festpass-backend/pkg/logger"
)

// Loader is the storage surface the cache refreshes from.
type Loader interface {
	LoadAll(ctx context.Context) (Snapshot, error)
}

// Cache serves a point-in-time whitelist snapshot, re-querying storage at most
// once per TTL window. A load failure degrades to an empty snapshot so
// ingestion falls through to "everything pending" instead of failing.
type Cache struct {
	loader Loader
	ttl    time.Duration
	logger *logger.Logger
	now    func() time.Time

	mu       sync.RWMutex
	snapshot Snapshot
	loadedAt time.Time
}

// CacheParams bundles the dependencies required to build a mapping cache.
type CacheParams struct {
	Loader Loader
	TTL    time.Duration
	Logger *logger.Logger
	Now    func() time.Time
}

// NewCache constructs the mapping cache.
func NewCache(params CacheParams) (*Cache, error) {
	if params.Loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("ttl must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		loader: params.Loader,
		ttl:    params.TTL,
		logger: params.Logger,
		now:    now,
	}, nil
}

// Load returns the whitelist snapshot, serving from cache within the
// freshness window. Never returns an error: a failed refresh yields an empty
// snapshot and the next call re-queries.
func (c *Cache) Load(ctx context.Context) Snapshot {
	c.mu.RLock()
	fresh := c.snapshot != nil && c.now().Sub(c.loadedAt) < c.ttl
	snapshot := c.snapshot
	c.mu.RUnlock()
	if fresh {
		return snapshot
	}

	loaded, err := c.loader.LoadAll(ctx)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn(c.logger.WithField(ctx, "error", err.Error()), "pass map load failed, serving empty whitelist")
		}
		return Snapshot{}
	}

	c.mu.Lock()
	c.snapshot = loaded
	c.loadedAt = c.now()
	c.mu.Unlock()
	return loaded
}

// Invalidate clears the cache immediately; the next Load re-queries storage.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}
