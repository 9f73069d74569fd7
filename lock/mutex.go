package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	goredis "github.com/redis/go-redis/v9"

	"github.com/coordcache/coordcache/logging"
)

// Acquire obtains the named exclusive lock, blocking up to wait. The lock
// auto-expires after lease unless extended or released. Waiters are granted
// in arbitrary order; use AcquireFair for FIFO ordering.
//
// Returns ErrLockTimeout when the wait window is exhausted and ErrInterrupted
// when ctx is cancelled while waiting.
func (c *Coordinator) Acquire(ctx context.Context, name string, lease, wait time.Duration) (*Handle, error) {
	tries := 1
	if wait > 0 {
		tries = int(wait/c.retry) + 1
	}
	m := c.rs.NewMutex(c.lockKey(name),
		redsync.WithExpiry(lease),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(c.retry),
	)

	actx := ctx
	if wait > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	if err := m.LockContext(actx); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
		}
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) || actx.Err() != nil {
			c.log.Debug("lock wait timed out", logging.Fields{"name": name, "wait": wait.String()})
			return nil, fmt.Errorf("lock %q: %w", name, ErrLockTimeout)
		}
		return nil, fmt.Errorf("lock %q: %w", name, err)
	}

	c.log.Debug("lock acquired", logging.Fields{"name": name})
	h := &Handle{
		c:     c,
		name:  name,
		key:   c.lockKey(name),
		token: m.Value(),
		lease: lease,
		releaseFn: func(ctx context.Context) (bool, error) {
			ok, err := m.UnlockContext(ctx)
			if errors.Is(err, redsync.ErrLockAlreadyExpired) {
				return false, nil
			}
			return ok, err
		},
		extendFn: func(ctx context.Context) (bool, error) {
			ok, err := m.ExtendContext(ctx)
			if errors.Is(err, redsync.ErrLockAlreadyExpired) {
				return false, nil
			}
			return ok, err
		},
		verifyFn: func(ctx context.Context) (bool, error) {
			v, err := c.rdb.Get(ctx, c.lockKey(name)).Result()
			if err == goredis.Nil {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			return v == m.Value(), nil
		},
	}
	c.track(h)
	return h, nil
}

// TryAcquire is Acquire with a zero wait window: it returns immediately with
// ErrLockTimeout when the lock is contended.
func (c *Coordinator) TryAcquire(ctx context.Context, name string, lease time.Duration) (*Handle, error) {
	return c.Acquire(ctx, name, lease, 0)
}
