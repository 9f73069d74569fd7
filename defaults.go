package coordcache

import "time"

const (
	defaultTTL       = 10 * time.Minute
	defaultLockLease = 30 * time.Second
	defaultLockWait  = 5 * time.Second
	defaultQueueName = "cache:write-behind:queue"
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
