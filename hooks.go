package coordcache

// Hooks lightweight callbacks for high-signal cache events.
// Implementations MUST be cheap and non-blocking.
// The orchestrator calls them on hot paths; wrap with hooks/async when an
// implementation does real work.
type Hooks interface {
	// A read returned a cached value (initial read or the double-check
	// inside the per-key load lock).
	Hit(cacheName, key string)

	// The loader ran for this key (cache miss, or fail-open load).
	Miss(cacheName, key string)

	// An entry was evicted (explicit invalidation, batch or pattern pass).
	Eviction(cacheName, key string)

	// The per-key load lock could not be obtained and the loader ran
	// uncached. reason is "lock_timeout" or "interrupted".
	LoadFailOpen(cacheName, key, reason string)

	// The remote store failed on a recovered path.
	// op is one of "get", "set", "evict", "scan", "stats".
	BackendError(op, key string, err error)

	// A write-behind operation landed on the durable queue.
	WriteBehindEnqueued(cacheName, key string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string, string)                  {}
func (NopHooks) Miss(string, string)                 {}
func (NopHooks) Eviction(string, string)             {}
func (NopHooks) LoadFailOpen(string, string, string) {}
func (NopHooks) BackendError(string, string, error)  {}
func (NopHooks) WriteBehindEnqueued(string, string)  {}
