package lock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/coordcache/coordcache/logging"
)

// AcquireFair obtains the named lock with strict FIFO ordering: waiters are
// granted in arrival order, so no waiter starves under sustained contention.
//
// Each caller enqueues a unique token on a per-lock waiter queue and may only
// take the lock while its token is at the head. Waiters that crash or give up
// carry a deadline and are pruned from the head by later attempts, so a dead
// waiter cannot wedge the queue.
func (c *Coordinator) AcquireFair(ctx context.Context, name string, lease, wait time.Duration) (*Handle, error) {
	lockKey := c.fairKey(name)
	queueKey := lockKey + ":queue"
	waitersKey := lockKey + ":waiters"
	token := newToken()

	// Waiter bookkeeping outlives the wait window by the lease so a granted
	// holder is never pruned mid-flight; the keys themselves expire so an
	// abandoned queue cleans itself up.
	retention := wait + lease + time.Minute
	deadline := nowMs() + durMs(wait)

	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, queueKey, token)
	pipe.HSet(ctx, waitersKey, token, strconv.FormatInt(deadline, 10))
	pipe.PExpire(ctx, queueKey, retention)
	pipe.PExpire(ctx, waitersKey, retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("fair lock %q: enqueue: %w", name, err)
	}

	attempt := func(ctx context.Context) (bool, error) {
		res, err := fairAcquireScript.Run(ctx, c.rdb,
			[]string{lockKey, queueKey, waitersKey},
			token, durMs(lease), nowMs()).Int()
		if err != nil {
			return false, fmt.Errorf("fair lock %q: %w", name, err)
		}
		return res == 1, nil
	}

	err := c.waitLoop(ctx, wait, fmt.Errorf("fair lock %q: %w", name, ErrLockTimeout), attempt)
	if err != nil {
		c.dequeueWaiter(queueKey, waitersKey, token)
		return nil, err
	}

	c.log.Debug("fair lock acquired", logging.Fields{"name": name})
	h := &Handle{
		c:     c,
		name:  name,
		key:   lockKey,
		token: token,
		lease: lease,
		releaseFn: func(ctx context.Context) (bool, error) {
			res, err := compareDelScript.Run(ctx, c.rdb, []string{lockKey}, token).Int()
			return res == 1, err
		},
		extendFn: func(ctx context.Context) (bool, error) {
			res, err := compareExpireScript.Run(ctx, c.rdb, []string{lockKey}, token, durMs(lease)).Int()
			return res == 1, err
		},
		verifyFn: func(ctx context.Context) (bool, error) {
			v, err := c.rdb.Get(ctx, lockKey).Result()
			if err == goredis.Nil {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			return v == token, nil
		},
	}
	c.track(h)
	return h, nil
}

// dequeueWaiter removes an unserved waiter after timeout or cancellation.
// Best effort: a leftover entry is pruned by later attempts once its
// deadline passes.
func (c *Coordinator) dequeueWaiter(queueKey, waitersKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pipe := c.rdb.TxPipeline()
	pipe.LRem(ctx, queueKey, 0, token)
	pipe.HDel(ctx, waitersKey, token)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Debug("fair lock waiter cleanup failed", logging.Fields{"queue": queueKey, "err": err})
	}
}
