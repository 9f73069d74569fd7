package coordcache

import (
	"context"
	"time"
)

// WithLock runs op under the named exclusive lock using the context's
// configured lease and wait, returning op's result. The lock is released on
// every path, including panics inside op.
func WithLock[T any](ctx context.Context, cc *CacheContext, name string, op func(context.Context) (T, error)) (T, error) {
	return WithLockTimed(ctx, cc, name, cc.lockLease, cc.lockWait, op)
}

// WithLockTimed is WithLock with an explicit lease and wait window.
func WithLockTimed[T any](ctx context.Context, cc *CacheContext, name string, lease, wait time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T
	h, err := cc.locks.Acquire(ctx, name, lease, wait)
	if err != nil {
		return zero, err
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := h.Release(rctx); rerr != nil {
			cc.log.Warn("lock release failed", Fields{"name": name, "err": rerr})
		}
	}()
	return op(ctx)
}
