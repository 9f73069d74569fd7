package coordcache

import (
	"context"
	"fmt"
	"time"

	"github.com/coordcache/coordcache/internal/util"
	"github.com/coordcache/coordcache/lock"
	"github.com/coordcache/coordcache/provider"
	"github.com/coordcache/coordcache/store"
)

// CacheContext is the shared, immutable wiring for the coordination layer:
// the remote store, the lock coordinator, the TTL table, the invalidation
// rule table, the write-behind persister registry and optional local
// near-cache tiers. Build one at process start and hand it to every
// Orchestrator; there is no ambient global state.
type CacheContext struct {
	store store.Store
	locks *lock.Coordinator
	stats *tracker
	log   Logger
	hooks Hooks

	ns         string
	defaultTTL time.Duration
	ttls       map[string]time.Duration
	lockLease  time.Duration
	lockWait   time.Duration

	rules      map[string][]InvalidationRule
	queue      string
	persisters map[string]QueuedPersister
	tiers      map[string]provider.Provider
}

// ContextOptions wires a CacheContext. Store, Locks and Config are required.
type ContextOptions struct {
	Store  store.Store
	Locks  *lock.Coordinator
	Config *Config

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	// Persisters registers the write-behind persistence callables by name.
	// Queue entries carry the name, not the callable.
	Persisters map[string]QueuedPersister

	// LocalTiers maps cache names to in-process byte stores. A tiered cache
	// name is served from memory instead of the remote store, which is what
	// makes MultiLevelGet a memory-to-remote hierarchy.
	LocalTiers map[string]provider.Provider
}

func NewCacheContext(opts ContextOptions) (*CacheContext, error) {
	if opts.Store == nil {
		return nil, errRequired("store")
	}
	if opts.Locks == nil {
		return nil, errRequired("lock coordinator")
	}
	if opts.Config == nil {
		return nil, errRequired("config")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	cfg := opts.Config

	log := opts.Logger
	if log == nil {
		log = NopLogger{}
	}
	hooks := opts.Hooks
	if hooks == nil {
		hooks = NopHooks{}
	}

	cc := &CacheContext{
		store:      opts.Store,
		locks:      opts.Locks,
		log:        log,
		hooks:      hooks,
		ns:         cfg.Namespace,
		defaultTTL: coalesce(cfg.DefaultTTL.Std(), defaultTTL),
		ttls:       make(map[string]time.Duration, len(cfg.TTLs)),
		lockLease:  coalesce(cfg.Lock.Lease.Std(), defaultLockLease),
		lockWait:   coalesce(cfg.Lock.Wait.Std(), defaultLockWait),
		rules:      cfg.InvalidationRules,
		queue:      cfg.Namespace + ":" + coalesce(cfg.WriteBehindQueue, defaultQueueName),
		persisters: opts.Persisters,
		tiers:      opts.LocalTiers,
	}
	for name, ttl := range cfg.TTLs {
		cc.ttls[name] = ttl.Std()
	}
	cc.stats = &tracker{store: opts.Store, ns: cfg.Namespace, log: cc.log, hooks: cc.hooks}
	return cc, nil
}

// Locks exposes the lock coordinator for callers that need named locks,
// semaphores or latches outside cache operations.
func (cc *CacheContext) Locks() *lock.Coordinator { return cc.locks }

// Namespace returns the key namespace this context writes under.
func (cc *CacheContext) Namespace() string { return cc.ns }

// Close releases local tiers and the remote store.
func (cc *CacheContext) Close(ctx context.Context) error {
	for name, p := range cc.tiers {
		if err := p.Close(ctx); err != nil {
			cc.log.Warn("local tier close failed", Fields{"cache": name, "err": err})
		}
	}
	return cc.store.Close(ctx)
}

// ttlFor resolves the effective TTL: explicit override, then the per-cache
// table, then the default.
func (cc *CacheContext) ttlFor(cacheName string, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if ttl, ok := cc.ttls[cacheName]; ok {
		return ttl
	}
	return cc.defaultTTL
}

// --- backend-facing helpers -------------------------------------------------
//
// Every cache read/write/evict goes through these. They return a tagged
// outcome instead of raising: backend failures are logged, reported to hooks
// and wrapped as ErrBackendUnavailable internally; the orchestrator treats
// them as a miss or a no-op and only ever surfaces loader/persister errors.

// read returns the raw payload for a cache entry; ok=false covers both a
// clean miss and a degraded (backend-failed) read.
func (cc *CacheContext) read(ctx context.Context, cacheName, key string) ([]byte, bool) {
	k := util.EntryKey(cc.ns, cacheName, key)
	var (
		raw []byte
		ok  bool
		err error
	)
	if tier, tiered := cc.tiers[cacheName]; tiered {
		raw, ok, err = tier.Get(ctx, k)
	} else {
		raw, ok, err = cc.store.Get(ctx, k)
	}
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		cc.log.Warn("cache read degraded to miss", Fields{"cache": cacheName, "key": key, "err": err})
		cc.hooks.BackendError("get", k, err)
		return nil, false
	}
	return raw, ok
}

// write stores a payload; returns false when the backend rejected or failed
// the write. Never an error for callers.
func (cc *CacheContext) write(ctx context.Context, cacheName, key string, payload []byte, ttl time.Duration) bool {
	k := util.EntryKey(cc.ns, cacheName, key)
	if tier, tiered := cc.tiers[cacheName]; tiered {
		ok, err := tier.Set(ctx, k, payload, ttl)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
			cc.log.Warn("cache write dropped", Fields{"cache": cacheName, "key": key, "err": err})
			cc.hooks.BackendError("set", k, err)
			return false
		}
		if !ok {
			cc.log.Debug("cache write rejected by tier (pressure)", Fields{"cache": cacheName, "key": key})
		}
		return ok
	}
	if err := cc.store.Set(ctx, k, payload, ttl); err != nil {
		err = fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		cc.log.Warn("cache write dropped", Fields{"cache": cacheName, "key": key, "err": err})
		cc.hooks.BackendError("set", k, err)
		return false
	}
	return true
}

// evict removes one entry and records the eviction. Best effort.
func (cc *CacheContext) evict(ctx context.Context, cacheName, key string) {
	k := util.EntryKey(cc.ns, cacheName, key)
	var err error
	if tier, tiered := cc.tiers[cacheName]; tiered {
		err = tier.Del(ctx, k)
	} else {
		err = cc.store.Delete(ctx, k)
	}
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		cc.log.Warn("cache evict failed", Fields{"cache": cacheName, "key": key, "err": err})
		cc.hooks.BackendError("evict", k, err)
		return
	}
	cc.stats.recordEviction(ctx, cacheName)
	cc.hooks.Eviction(cacheName, key)
}

// --- invalidation -----------------------------------------------------------

// Invalidate evicts one entry, then applies the declarative related-cache
// rules for cacheName. Backend and rule failures are logged, never
// propagated.
func (cc *CacheContext) Invalidate(ctx context.Context, cacheName, key string) {
	cc.evict(ctx, cacheName, key)
	cc.applyRules(ctx, cacheName, key)
}

// InvalidateBatch evicts each unique key, with one related-invalidation pass
// per unique key.
func (cc *CacheContext) InvalidateBatch(ctx context.Context, cacheName string, keys []string) {
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cc.evict(ctx, cacheName, key)
	}
	for key := range seen {
		cc.applyRules(ctx, cacheName, key)
	}
	cc.log.Debug("batch invalidated", Fields{"cache": cacheName, "keys": len(seen)})
}

// InvalidateByPattern evicts every entry of cacheName whose key matches the
// glob keyPattern, and returns how many were evicted. The scan is anchored to
// this context's namespace and cacheName, so entries of sibling caches that
// happen to match the pattern substring are never touched. Local tiers cannot
// be scanned; pattern invalidation applies to the remote store only.
func (cc *CacheContext) InvalidateByPattern(ctx context.Context, cacheName, keyPattern string) int {
	if _, tiered := cc.tiers[cacheName]; tiered {
		cc.log.Debug("pattern invalidation skipped for local tier", Fields{"cache": cacheName, "pattern": keyPattern})
		return 0
	}
	pattern := util.EntryPattern(cc.ns, cacheName, keyPattern)
	keys, err := cc.store.ScanKeys(ctx, pattern)
	if err != nil {
		cc.log.Warn("pattern scan failed", Fields{"cache": cacheName, "pattern": keyPattern, "err": err})
		cc.hooks.BackendError("scan", pattern, err)
		return 0
	}
	evicted := 0
	for _, full := range keys {
		key, ok := util.ExtractKey(cc.ns, cacheName, full)
		if !ok {
			continue
		}
		cc.evict(ctx, cacheName, key)
		evicted++
	}
	if evicted > 0 {
		cc.log.Debug("pattern invalidation", Fields{"cache": cacheName, "pattern": keyPattern, "evicted": evicted})
	}
	return evicted
}

// applyRules runs the related-invalidation rules declared for cacheName.
// Related evictions are terminal: they do not cascade into further rules, so
// a rule table cannot loop.
func (cc *CacheContext) applyRules(ctx context.Context, cacheName, key string) {
	for _, r := range cc.rules[cacheName] {
		target, isPattern := r.expand(key)
		if isPattern {
			cc.InvalidateByPattern(ctx, r.Cache, target)
		} else {
			cc.evict(ctx, r.Cache, target)
		}
	}
}

// --- statistics ---------------------------------------------------------

// Statistics returns the accumulated counters for cacheName. Zeroed
// statistics (never an error) when none exist yet or the backend is down.
func (cc *CacheContext) Statistics(ctx context.Context, cacheName string) Statistics {
	return cc.stats.snapshot(ctx, cacheName)
}

// ResetStatistics clears the counters for cacheName.
func (cc *CacheContext) ResetStatistics(ctx context.Context, cacheName string) error {
	return cc.stats.reset(ctx, cacheName)
}

type requiredError string

func (e requiredError) Error() string { return "coordcache: " + string(e) + " is required" }

func errRequired(what string) error { return requiredError(what) }
