package lock

import (
	"context"
	"sync"
	"time"
)

// Handle is a held lock. It is valid between a successful acquire and the
// matching Release or lease expiry; only the holder that acquired it can
// release it.
type Handle struct {
	c     *Coordinator
	name  string // logical lock name as passed by the caller
	key   string // full Redis key
	token string // holder identity for this acquisition
	lease time.Duration

	releaseFn func(ctx context.Context) (bool, error)
	extendFn  func(ctx context.Context) (bool, error)
	verifyFn  func(ctx context.Context) (bool, error)

	mu       sync.Mutex
	released bool
}

// Name returns the logical lock name.
func (h *Handle) Name() string { return h.name }

// Lease returns the lease this handle was acquired with.
func (h *Handle) Lease() time.Duration { return h.lease }

// Release gives the lock back if and only if this handle is still the
// current holder. Releasing twice is a no-op. Returns ErrNotHeld when the
// lease already expired or the lock was force-unlocked.
func (h *Handle) Release(ctx context.Context) error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	h.mu.Unlock()

	h.c.untrack(h.key)
	ok, err := h.releaseFn(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotHeld
	}
	return nil
}

// Extend renews the lease by the handle's original lease duration. Callers
// whose operations legitimately outlive the lease must renew explicitly;
// there is no automatic watchdog.
func (h *Handle) Extend(ctx context.Context) error {
	h.mu.Lock()
	released := h.released
	h.mu.Unlock()
	if released {
		return ErrNotHeld
	}
	ok, err := h.extendFn(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotHeld
	}
	return nil
}

// heldRemotely checks the coordination store for current ownership.
func (h *Handle) heldRemotely(ctx context.Context) (bool, error) {
	h.mu.Lock()
	released := h.released
	h.mu.Unlock()
	if released {
		return false, nil
	}
	return h.verifyFn(ctx)
}
