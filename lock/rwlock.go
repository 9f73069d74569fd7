package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/coordcache/coordcache/logging"
)

// AcquireRead obtains shared access to the named resource: any number of
// readers may hold concurrently, while a writer excludes everyone. The lease
// applies to the resource as a whole; each successful acquire refreshes it.
func (c *Coordinator) AcquireRead(ctx context.Context, name string, lease, wait time.Duration) (*Handle, error) {
	key := c.rwKey(name)
	token := newToken()

	attempt := func(ctx context.Context) (bool, error) {
		res, err := readAcquireScript.Run(ctx, c.rdb, []string{key}, token, durMs(lease)).Int()
		if err != nil {
			return false, fmt.Errorf("read lock %q: %w", name, err)
		}
		return res == 1, nil
	}
	if err := c.waitLoop(ctx, wait, fmt.Errorf("read lock %q: %w", name, ErrLockTimeout), attempt); err != nil {
		return nil, err
	}

	c.log.Debug("read lock acquired", logging.Fields{"name": name})
	return &Handle{
		c:     c,
		name:  name,
		key:   key,
		token: token,
		lease: lease,
		releaseFn: func(ctx context.Context) (bool, error) {
			res, err := readReleaseScript.Run(ctx, c.rdb, []string{key}, token).Int()
			return res == 1, err
		},
		extendFn: func(ctx context.Context) (bool, error) {
			n, err := c.rdb.HExists(ctx, key, "r:"+token).Result()
			if err != nil || !n {
				return false, err
			}
			return c.rdb.PExpire(ctx, key, lease).Result()
		},
		verifyFn: func(ctx context.Context) (bool, error) {
			return c.rdb.HExists(ctx, key, "r:"+token).Result()
		},
	}, nil
}

// AcquireWrite obtains exclusive access over the same named resource used by
// AcquireRead: the writer waits out current readers and blocks new ones.
func (c *Coordinator) AcquireWrite(ctx context.Context, name string, lease, wait time.Duration) (*Handle, error) {
	key := c.rwKey(name)
	token := newToken()

	attempt := func(ctx context.Context) (bool, error) {
		res, err := writeAcquireScript.Run(ctx, c.rdb, []string{key}, token, durMs(lease)).Int()
		if err != nil {
			return false, fmt.Errorf("write lock %q: %w", name, err)
		}
		return res == 1, nil
	}
	if err := c.waitLoop(ctx, wait, fmt.Errorf("write lock %q: %w", name, ErrLockTimeout), attempt); err != nil {
		return nil, err
	}

	c.log.Debug("write lock acquired", logging.Fields{"name": name})
	h := &Handle{
		c:     c,
		name:  name,
		key:   key,
		token: token,
		lease: lease,
		releaseFn: func(ctx context.Context) (bool, error) {
			res, err := writeReleaseScript.Run(ctx, c.rdb, []string{key}, token).Int()
			return res == 1, err
		},
		extendFn: func(ctx context.Context) (bool, error) {
			v, err := c.rdb.HGet(ctx, key, "holder").Result()
			if err != nil || v != token {
				return false, nil
			}
			return c.rdb.PExpire(ctx, key, lease).Result()
		},
		verifyFn: func(ctx context.Context) (bool, error) {
			v, err := c.rdb.HGet(ctx, key, "holder").Result()
			if err != nil {
				return false, nil
			}
			return v == token, nil
		},
	}
	return h, nil
}
