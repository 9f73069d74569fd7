// Package coordcache implements distributed cache patterns coordinated by
// distributed locks over a shared store (Redis). Caching strategies stay
// consistent across replicas: cache-aside loads are stampede-protected,
// write-through is atomic per key, and write-behind defers persistence
// through a durable queue.
//
// Components:
//   - CacheContext: shared configuration, store access, statistics and
//     invalidation rules for all typed caches.
//   - Cache[V]: typed façade over the patterns (GetOrLoad, WriteThrough,
//     WriteBehind, MultiLevelGet, WarmUp).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - lock.Coordinator: exclusive, fair (FIFO), and read-write locks plus
//     semaphores and countdown latches.
//   - Provider: optional local tiers (e.g. Ristretto, BigCache) in front of
//     the shared store for MultiLevelGet.
//
// Keys:
//
//	<ns>:<cache>:<key>          - cache entries
//	<ns>:lock:<name>            - exclusive locks
//	<ns>:cache:stats:<cache>    - hit/miss/eviction counters
//
// Cache-aside pattern:
//
//	v, err := cache.GetOrLoad(ctx, "users", id, 0, func(ctx context.Context) (User, error) {
//		return loadFromDB(ctx, id)
//	})
package coordcache
