package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/coordcache/coordcache/logging"
)

// InitLatch sets the named countdown latch to count. The latch is one-shot:
// initialization only takes effect when no latch with that name is currently
// counting. Returns true when this call set the count.
func (c *Coordinator) InitLatch(ctx context.Context, name string, count int64) (bool, error) {
	if count <= 0 {
		return false, fmt.Errorf("latch %q: count must be positive", name)
	}
	ok, err := c.rdb.SetNX(ctx, c.latchKey(name), count, 0).Result()
	if err != nil {
		return false, fmt.Errorf("latch %q: init: %w", name, err)
	}
	if ok {
		c.log.Debug("latch initialized", logging.Fields{"name": name, "count": count})
	}
	return ok, nil
}

// CountDown decrements the latch. At zero the latch key is removed, which is
// what releases all awaiters. Counting down a missing latch is a no-op.
func (c *Coordinator) CountDown(ctx context.Context, name string) error {
	remaining, err := latchCountDownScript.Run(ctx, c.rdb, []string{c.latchKey(name)}).Int64()
	if err != nil {
		return fmt.Errorf("latch %q: count down: %w", name, err)
	}
	c.log.Debug("latch counted down", logging.Fields{"name": name, "remaining": remaining})
	return nil
}

// LatchCount returns the remaining count; 0 for an open or missing latch.
func (c *Coordinator) LatchCount(ctx context.Context, name string) (int64, error) {
	n, err := c.rdb.Get(ctx, c.latchKey(name)).Int64()
	if err != nil {
		if isRedisNil(err) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// AwaitLatch blocks until the latch reaches zero, up to timeout. A latch that
// was never initialized counts as already open. Fails with ErrLatchTimeout
// when the count does not reach zero in time and ErrInterrupted when ctx is
// cancelled.
func (c *Coordinator) AwaitLatch(ctx context.Context, name string, timeout time.Duration) error {
	attempt := func(ctx context.Context) (bool, error) {
		n, err := c.LatchCount(ctx, name)
		if err != nil {
			return false, fmt.Errorf("latch %q: %w", name, err)
		}
		return n <= 0, nil
	}
	return c.waitLoop(ctx, timeout, fmt.Errorf("latch %q: %w", name, ErrLatchTimeout), attempt)
}

func isRedisNil(err error) bool { return errors.Is(err, goredis.Nil) }
