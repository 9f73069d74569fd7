package coordcache

import (
	"context"
	"errors"
	"reflect"
	"time"

	c "github.com/coordcache/coordcache/codec"
	"github.com/coordcache/coordcache/lock"
)

type orchestrator[V any] struct {
	cc    *CacheContext
	codec c.Codec[V]
}

func (o *orchestrator[V]) Context() *CacheContext { return o.cc }

func (o *orchestrator[V]) Get(ctx context.Context, cacheName, key string) (V, bool, error) {
	v, ok := o.lookup(ctx, cacheName, key)
	return v, ok, nil
}

func (o *orchestrator[V]) Put(ctx context.Context, cacheName, key string, value V, ttl time.Duration) error {
	payload, err := o.codec.Encode(value)
	if err != nil {
		return err
	}
	o.cc.write(ctx, cacheName, key, payload, o.cc.ttlFor(cacheName, ttl))
	return nil
}

// GetOrLoad implements cache-aside. The per-key lock bounds duplicate work:
// among callers that obtain it, the loader runs at most once. Callers that
// exhaust the wait window fail open and load uncached: a stuck cache must
// never block a caller indefinitely.
//
// A miss is recorded at the moment the loader actually runs; a hit whenever a
// read returns a value, including the double-check inside the lock. A waiter
// served by the winner's population therefore counts as a hit, not a miss.
func (o *orchestrator[V]) GetOrLoad(ctx context.Context, cacheName, key string, ttl time.Duration, loader Loader[V]) (V, error) {
	if v, ok := o.lookup(ctx, cacheName, key); ok {
		return v, nil
	}

	lockName := "cache:" + cacheName + ":" + key
	h, err := o.cc.locks.Acquire(ctx, lockName, o.cc.lockLease, o.cc.lockWait)
	if err != nil {
		reason := "lock_timeout"
		if errors.Is(err, lock.ErrInterrupted) {
			reason = "interrupted"
		}
		o.cc.log.Warn("load lock unavailable; loading uncached", Fields{
			"cache": cacheName, "key": key, "reason": reason,
		})
		o.cc.hooks.LoadFailOpen(cacheName, key, reason)
		o.recordLoad(ctx, cacheName, key)
		return loader(ctx)
	}
	defer o.release(h)

	// Another caller may have populated the entry while we waited.
	if v, ok := o.lookup(ctx, cacheName, key); ok {
		return v, nil
	}

	o.recordLoad(ctx, cacheName, key)
	v, err := loader(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	if !isNilValue(v) {
		if payload, encErr := o.codec.Encode(v); encErr != nil {
			o.cc.log.Warn("loaded value not cacheable", Fields{"cache": cacheName, "key": key, "err": encErr})
		} else {
			o.cc.write(ctx, cacheName, key, payload, o.cc.ttlFor(cacheName, ttl))
		}
	}
	return v, nil
}

// WriteThrough favors correctness over availability: no lock, no write. The
// value is encoded before the persister runs so that an unserializable value
// cannot end up persisted but uncacheable.
func (o *orchestrator[V]) WriteThrough(ctx context.Context, cacheName, key string, value V, ttl time.Duration, persister Persister) error {
	payload, err := o.codec.Encode(value)
	if err != nil {
		return err
	}

	h, err := o.cc.locks.Acquire(ctx, "write:"+cacheName+":"+key, o.cc.lockLease, o.cc.lockWait)
	if err != nil {
		return err
	}
	defer o.release(h)

	// Source of truth first; the cache is only updated on success.
	if err := persister(ctx); err != nil {
		return err
	}
	o.cc.write(ctx, cacheName, key, payload, o.cc.ttlFor(cacheName, ttl))
	return nil
}

// WriteBehind returns once the cache write and the enqueue succeeded;
// persistence happens later in the external consumer. No lock is taken;
// this path accepts eventual persistence.
func (o *orchestrator[V]) WriteBehind(ctx context.Context, cacheName, key string, value V, ttl time.Duration, persisterRef string) error {
	if _, ok := o.cc.persisters[persisterRef]; !ok {
		return ErrUnknownPersister
	}
	payload, err := o.codec.Encode(value)
	if err != nil {
		return err
	}
	o.cc.write(ctx, cacheName, key, payload, o.cc.ttlFor(cacheName, ttl))
	return o.cc.enqueueWriteBehind(ctx, WriteBehindOperation{
		CacheName:  cacheName,
		Key:        key,
		Value:      payload,
		EnqueuedAt: time.Now(),
		Persister:  persisterRef,
	})
}

func (o *orchestrator[V]) MultiLevelGet(ctx context.Context, cacheNames []string, key string) (V, bool, error) {
	for i, name := range cacheNames {
		raw, ok := o.cc.read(ctx, name, key)
		if !ok {
			continue
		}
		v, err := o.codec.Decode(raw)
		if err != nil {
			o.cc.log.Warn("corrupt entry dropped", Fields{"cache": name, "key": key, "err": err})
			o.cc.evict(ctx, name, key)
			continue
		}
		// Promote into every higher-priority level checked before this one.
		for j := 0; j < i; j++ {
			o.cc.write(ctx, cacheNames[j], key, raw, o.cc.ttlFor(cacheNames[j], 0))
		}
		o.cc.log.Debug("multi-level hit", Fields{"cache": name, "key": key, "promoted": i})
		return v, true, nil
	}
	var zero V
	return zero, false, nil
}

func (o *orchestrator[V]) WarmUp(ctx context.Context, cacheName string, loaders map[string]Loader[V], ttl time.Duration) (loaded, failed int) {
	for key, loader := range loaders {
		if _, ok := o.cc.read(ctx, cacheName, key); ok {
			continue
		}
		v, err := loader(ctx)
		if err != nil {
			failed++
			o.cc.log.Warn("warmup load failed", Fields{"cache": cacheName, "key": key, "err": err})
			continue
		}
		if isNilValue(v) {
			continue
		}
		payload, err := o.codec.Encode(v)
		if err != nil {
			failed++
			o.cc.log.Warn("warmup value not cacheable", Fields{"cache": cacheName, "key": key, "err": err})
			continue
		}
		o.cc.write(ctx, cacheName, key, payload, o.cc.ttlFor(cacheName, ttl))
		loaded++
	}
	o.cc.log.Info("cache warmup finished", Fields{"cache": cacheName, "loaded": loaded, "failed": failed})
	return loaded, failed
}

// lookup reads and decodes an entry, recording a hit on success. Corrupt
// entries are dropped (self-heal) and count as a miss.
func (o *orchestrator[V]) lookup(ctx context.Context, cacheName, key string) (V, bool) {
	var zero V
	raw, ok := o.cc.read(ctx, cacheName, key)
	if !ok {
		return zero, false
	}
	v, err := o.codec.Decode(raw)
	if err != nil {
		o.cc.log.Warn("corrupt entry dropped", Fields{"cache": cacheName, "key": key, "err": err})
		o.cc.evict(ctx, cacheName, key)
		return zero, false
	}
	o.cc.stats.recordHit(ctx, cacheName)
	o.cc.hooks.Hit(cacheName, key)
	return v, true
}

func (o *orchestrator[V]) recordLoad(ctx context.Context, cacheName, key string) {
	o.cc.stats.recordMiss(ctx, cacheName)
	o.cc.hooks.Miss(cacheName, key)
}

func (o *orchestrator[V]) release(h *lock.Handle) {
	// the lock must be released even when the caller's ctx is already gone
	rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Release(rctx); err != nil && !errors.Is(err, lock.ErrNotHeld) {
		o.cc.log.Warn("lock release failed", Fields{"name": h.Name(), "err": err})
	}
}

// isNilValue reports nil-ish loader results that must not be cached
// (typed nil pointers, nil maps/slices, nil interfaces).
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
