package coordcache

import "errors"

var (
	// ErrBackendUnavailable marks remote-store I/O failures on cache read,
	// write and eviction paths. It is logged and recovered locally (reads
	// degrade to a miss, writes and evictions to a no-op) and never
	// surfaces from GetOrLoad, MultiLevelGet or the invalidation calls.
	ErrBackendUnavailable = errors.New("coordcache: cache backend unavailable")

	// ErrUnknownPersister is returned by WriteBehind when persisterRef does
	// not name a persister registered on the CacheContext.
	ErrUnknownPersister = errors.New("coordcache: unknown write-behind persister")

	// ErrWriteBehindEnqueue wraps failures to push a write-behind operation
	// onto the durable queue. The cache write has already happened; the
	// caller decides whether to retry or persist directly.
	ErrWriteBehindEnqueue = errors.New("coordcache: write-behind enqueue failed")
)
