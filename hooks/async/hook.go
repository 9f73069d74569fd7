// Package asynchook decouples hook implementations from the cache hot path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{HitEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cc, _ := coordcache.NewCacheContext(coordcache.ContextOptions{
//	    Store: store,
//	    Locks: locks,
//	    Hooks: hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/coordcache/coordcache"
)

type Hooks struct {
	inner coordcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ coordcache.Hooks = (*Hooks)(nil)

func New(inner coordcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) Hit(c, k string)      { h.try(func() { h.inner.Hit(c, k) }) }
func (h *Hooks) Miss(c, k string)     { h.try(func() { h.inner.Miss(c, k) }) }
func (h *Hooks) Eviction(c, k string) { h.try(func() { h.inner.Eviction(c, k) }) }
func (h *Hooks) LoadFailOpen(c, k, r string) {
	h.try(func() { h.inner.LoadFailOpen(c, k, r) })
}
func (h *Hooks) BackendError(op, k string, err error) {
	h.try(func() { h.inner.BackendError(op, k, err) })
}
func (h *Hooks) WriteBehindEnqueued(c, k string) {
	h.try(func() { h.inner.WriteBehindEnqueued(c, k) })
}
