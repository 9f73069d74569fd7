package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coordcache/coordcache/logging"
)

// Permit is a held semaphore permit.
type Permit struct {
	c    *Coordinator
	name string
	key  string

	mu       sync.Mutex
	released bool
}

// Release returns the permit to the semaphore. Always succeeds regardless of
// which holder releases; the count simply goes back up. Releasing twice is a
// no-op.
func (p *Permit) Release(ctx context.Context) error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return nil
	}
	p.released = true
	p.mu.Unlock()

	if err := p.c.rdb.Incr(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("semaphore %q: release: %w", p.name, err)
	}
	p.c.log.Debug("semaphore released", logging.Fields{"name": p.name})
	return nil
}

// AcquireSemaphore takes one permit from the named counting semaphore,
// blocking up to wait. The semaphore's total permit count is seeded lazily
// with permits on first use; later calls with a different permits value do
// not resize it.
//
// Permits carry no lease: a holder that never releases leaks a permit, so
// callers must pair every acquire with a deferred Release.
func (c *Coordinator) AcquireSemaphore(ctx context.Context, name string, permits int, wait time.Duration) (*Permit, error) {
	if permits <= 0 {
		return nil, fmt.Errorf("semaphore %q: permits must be positive", name)
	}
	key := c.semKey(name)

	// Lazy init: first caller seeds the counter.
	if err := c.rdb.SetNX(ctx, key, permits, 0).Err(); err != nil {
		return nil, fmt.Errorf("semaphore %q: init: %w", name, err)
	}

	attempt := func(ctx context.Context) (bool, error) {
		res, err := semAcquireScript.Run(ctx, c.rdb, []string{key}).Int()
		if err != nil {
			return false, fmt.Errorf("semaphore %q: %w", name, err)
		}
		return res == 1, nil
	}
	if err := c.waitLoop(ctx, wait, fmt.Errorf("semaphore %q: %w", name, ErrLockTimeout), attempt); err != nil {
		return nil, err
	}

	c.log.Debug("semaphore acquired", logging.Fields{"name": name})
	return &Permit{c: c, name: name, key: key}, nil
}

// AvailablePermits returns the current free permit count; 0 when the
// semaphore has not been initialized yet.
func (c *Coordinator) AvailablePermits(ctx context.Context, name string) (int, error) {
	n, err := c.rdb.Get(ctx, c.semKey(name)).Int()
	if err != nil {
		if isRedisNil(err) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}
