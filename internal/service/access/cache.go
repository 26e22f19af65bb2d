package access

import (
	"context"
	"sync"

	"teamdrive/internal/domain/models"
	"teamdrive/internal/domain/services"
)

// CachedResolver memoizes resolution results keyed by
// (entity, user, generation). Any grant mutation bumps the generation,
// invalidating every cached result at once; the underlying resolver
// stays a pure function of its inputs.
type CachedResolver struct {
	inner services.AccessResolver

	mu      sync.RWMutex
	gen     uint64
	entries map[cacheKey]models.Access
}

type cacheKey struct {
	entityID string
	userID   string
	gen      uint64
}

// NewCachedResolver wraps a resolver with a generation-keyed cache.
func NewCachedResolver(inner services.AccessResolver) *CachedResolver {
	return &CachedResolver{
		inner:   inner,
		entries: make(map[cacheKey]models.Access),
	}
}

// ResolveAccess returns a cached result for the current generation or
// delegates and stores.
func (c *CachedResolver) ResolveAccess(ctx context.Context, entityID, userID string) (models.Access, error) {
	c.mu.RLock()
	key := cacheKey{entityID: entityID, userID: userID, gen: c.gen}
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	result, err := c.inner.ResolveAccess(ctx, entityID, userID)
	if err != nil {
		return models.Access{}, err
	}

	c.mu.Lock()
	// Store under the generation captured before resolving: if a grant
	// mutation landed in between, the entry is already orphaned.
	c.entries[key] = result
	c.mu.Unlock()

	return result, nil
}

// Invalidate advances the generation, orphaning all cached entries.
// Called after any grant mutation.
func (c *CachedResolver) Invalidate() {
	c.mu.Lock()
	c.gen++
	if len(c.entries) > 0 {
		c.entries = make(map[cacheKey]models.Access)
	}
	c.mu.Unlock()
}

var _ services.AccessResolver = (*CachedResolver)(nil)
