package lock

import "errors"

var (
	// ErrLockTimeout is returned when the wait window is exhausted without
	// acquiring the lock, semaphore or latch.
	ErrLockTimeout = errors.New("lock: wait timeout")

	// ErrInterrupted is returned when the caller's context is cancelled
	// while waiting. The underlying context error is attached by wrapping.
	ErrInterrupted = errors.New("lock: wait interrupted")

	// ErrLatchTimeout is returned by AwaitLatch when the count does not
	// reach zero within the timeout.
	ErrLatchTimeout = errors.New("lock: latch timeout")

	// ErrNotHeld is returned by Release when this handle is no longer the
	// current holder (lease expired or the lock was force-unlocked).
	ErrNotHeld = errors.New("lock: not held by caller")
)
