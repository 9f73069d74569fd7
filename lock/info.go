package lock

import "context"

// LockInfo is a point-in-time snapshot of a named exclusive lock, intended
// for monitoring endpoints.
type LockInfo struct {
	Name         string
	Key          string
	Locked       bool
	HeldByCaller bool
	TTLMillis    int64 // remaining lease; -1 when not locked
}

// SemaphoreInfo is a point-in-time snapshot of a counting semaphore.
type SemaphoreInfo struct {
	Name             string
	Key              string
	Exists           bool
	AvailablePermits int
}

func (c *Coordinator) LockInfo(ctx context.Context, name string) (LockInfo, error) {
	info := LockInfo{Name: name, Key: c.lockKey(name), TTLMillis: -1}

	locked, err := c.IsLocked(ctx, name)
	if err != nil {
		return info, err
	}
	info.Locked = locked
	if locked {
		ttl, err := c.rdb.PTTL(ctx, info.Key).Result()
		if err != nil {
			return info, err
		}
		info.TTLMillis = ttl.Milliseconds()
	}

	held, err := c.IsHeldByCaller(ctx, name)
	if err != nil {
		return info, err
	}
	info.HeldByCaller = held
	return info, nil
}

func (c *Coordinator) SemaphoreInfo(ctx context.Context, name string) (SemaphoreInfo, error) {
	info := SemaphoreInfo{Name: name, Key: c.semKey(name)}

	n, err := c.rdb.Exists(ctx, info.Key).Result()
	if err != nil {
		return info, err
	}
	info.Exists = n > 0
	if info.Exists {
		permits, err := c.AvailablePermits(ctx, name)
		if err != nil {
			return info, err
		}
		info.AvailablePermits = permits
	}
	return info, nil
}
