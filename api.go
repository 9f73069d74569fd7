package coordcache

import (
	"context"
	"time"

	c "github.com/coordcache/coordcache/codec"
)

// Loader computes a value on a cache miss. Loader errors always propagate
// unchanged to the caller; caching never masks business-logic failures.
type Loader[V any] func(ctx context.Context) (V, error)

// Persister writes a value to the source of truth for WriteThrough.
type Persister func(ctx context.Context) error

// Cache is the typed orchestration API over a shared CacheContext. V is the
// caller's value type; serialization is handled by a pluggable Codec[V].
// All ttl parameters accept 0 for "use the per-cache TTL table".
type Cache[V any] interface {
	// Get reads a cached value without loading. Backend failures degrade
	// to a miss.
	Get(ctx context.Context, cacheName, key string) (v V, ok bool, err error)

	// Put writes a value directly, bypassing persistence.
	Put(ctx context.Context, cacheName, key string, value V, ttl time.Duration) error

	// GetOrLoad is cache-aside with stampede protection: on a miss, a
	// per-key distributed lock serializes the load; lock losers that time
	// out fail open and load uncached.
	GetOrLoad(ctx context.Context, cacheName, key string, ttl time.Duration, loader Loader[V]) (V, error)

	// WriteThrough persists first and caches only after persistence
	// succeeds, under an exclusive per-key write lock. Fails outright when
	// the lock cannot be acquired.
	WriteThrough(ctx context.Context, cacheName, key string, value V, ttl time.Duration, persister Persister) error

	// WriteBehind caches synchronously and enqueues the persistence for an
	// external consumer. persisterRef must be registered on the
	// CacheContext.
	WriteBehind(ctx context.Context, cacheName, key string, value V, ttl time.Duration, persisterRef string) error

	// MultiLevelGet checks caches in priority order and promotes the first
	// hit into every earlier level. Never invokes a loader.
	MultiLevelGet(ctx context.Context, cacheNames []string, key string) (V, bool, error)

	// WarmUp preloads entries that are not cached yet. Single-entry
	// failures are logged and skipped, never abort the batch.
	WarmUp(ctx context.Context, cacheName string, loaders map[string]Loader[V], ttl time.Duration) (loaded, failed int)

	// Context exposes the shared CacheContext (invalidation, statistics,
	// locks, write-behind queue).
	Context() *CacheContext
}

// New builds a typed cache over a shared CacheContext.
func New[V any](cc *CacheContext, codec c.Codec[V]) (Cache[V], error) {
	if cc == nil {
		return nil, errRequired("cache context")
	}
	if codec == nil {
		return nil, errRequired("codec")
	}
	return &orchestrator[V]{cc: cc, codec: codec}, nil
}
