package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewCoordinator(client, Options{
		Namespace:     "test",
		RetryInterval: 10 * time.Millisecond,
	})
	return c, s
}

func TestAcquireRelease(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	h, err := c.Acquire(ctx, "resource", 30*time.Second, 0)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "resource", h.Name())

	locked, err := c.IsLocked(ctx, "resource")
	require.NoError(t, err)
	assert.True(t, locked)

	held, err := c.IsHeldByCaller(ctx, "resource")
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, h.Release(ctx))

	locked, err = c.IsLocked(ctx, "resource")
	require.NoError(t, err)
	assert.False(t, locked)

	held, err = c.IsHeldByCaller(ctx, "resource")
	require.NoError(t, err)
	assert.False(t, held)

	// releasing twice is a no-op
	assert.NoError(t, h.Release(ctx))
}

func TestAcquireContention(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	h1, err := c.Acquire(ctx, "contended", 30*time.Second, 0)
	require.NoError(t, err)
	defer h1.Release(ctx)

	start := time.Now()
	h2, err := c.Acquire(ctx, "contended", 30*time.Second, 150*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Nil(t, h2)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestTryAcquire(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	h1, err := c.TryAcquire(ctx, "try", 30*time.Second)
	require.NoError(t, err)

	_, err = c.TryAcquire(ctx, "try", 30*time.Second)
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, h1.Release(ctx))

	h2, err := c.TryAcquire(ctx, "try", 30*time.Second)
	require.NoError(t, err)
	require.NoError(t, h2.Release(ctx))
}

func TestAcquireInterrupted(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	h1, err := c.Acquire(ctx, "held", 30*time.Second, 0)
	require.NoError(t, err)
	defer h1.Release(ctx)

	cctx, cancel := context.WithCancel(ctx)
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = c.Acquire(cctx, "held", 30*time.Second, 5*time.Second)
	assert.ErrorIs(t, err, ErrInterrupted)
}

func TestLeaseExpiry(t *testing.T) {
	c, s := newTestCoordinator(t)
	ctx := context.Background()

	h, err := c.Acquire(ctx, "leased", 100*time.Millisecond, 0)
	require.NoError(t, err)

	s.FastForward(150 * time.Millisecond)

	locked, err := c.IsLocked(ctx, "leased")
	require.NoError(t, err)
	assert.False(t, locked)

	// the expired holder cannot release what it no longer holds
	assert.ErrorIs(t, h.Release(ctx), ErrNotHeld)
}

func TestExtend(t *testing.T) {
	c, s := newTestCoordinator(t)
	ctx := context.Background()

	h, err := c.Acquire(ctx, "extended", 100*time.Millisecond, 0)
	require.NoError(t, err)

	s.FastForward(50 * time.Millisecond)
	require.NoError(t, h.Extend(ctx))

	// past the original lease but inside the renewed one
	s.FastForward(75 * time.Millisecond)
	locked, err := c.IsLocked(ctx, "extended")
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, h.Release(ctx))

	assert.ErrorIs(t, h.Extend(ctx), ErrNotHeld)
}

func TestForceUnlock(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	h, err := c.Acquire(ctx, "stuck", 30*time.Second, 0)
	require.NoError(t, err)

	removed, err := c.ForceUnlock(ctx, "stuck")
	require.NoError(t, err)
	assert.True(t, removed)

	locked, err := c.IsLocked(ctx, "stuck")
	require.NoError(t, err)
	assert.False(t, locked)

	assert.ErrorIs(t, h.Release(ctx), ErrNotHeld)

	removed, err = c.ForceUnlock(ctx, "stuck")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestWithLock(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	ran := false
	err := c.WithLock(ctx, "scoped", 30*time.Second, time.Second, func(ctx context.Context) error {
		ran = true
		locked, err := c.IsLocked(ctx, "scoped")
		require.NoError(t, err)
		assert.True(t, locked)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	locked, err := c.IsLocked(ctx, "scoped")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestFairLockFIFO(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	holder, err := c.AcquireFair(ctx, "fifo", 30*time.Second, time.Second)
	require.NoError(t, err)

	const waiters = 5
	order := make(chan int, waiters)
	var wg sync.WaitGroup
	startWaiter := func(id int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := c.AcquireFair(ctx, "fifo", 30*time.Second, 10*time.Second)
			if !assert.NoError(t, err) {
				return
			}
			order <- id
			time.Sleep(20 * time.Millisecond)
			assert.NoError(t, h.Release(ctx))
		}()
	}

	// stagger the starts so enqueue order is deterministic
	for id := 1; id <= waiters; id++ {
		startWaiter(id)
		time.Sleep(100 * time.Millisecond)
	}

	require.NoError(t, holder.Release(ctx))
	wg.Wait()
	close(order)

	var got []int
	for id := range order {
		got = append(got, id)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestFairLockTimeoutCleansQueue(t *testing.T) {
	c, s := newTestCoordinator(t)
	ctx := context.Background()

	holder, err := c.AcquireFair(ctx, "busy", 30*time.Second, time.Second)
	require.NoError(t, err)
	defer holder.Release(ctx)

	_, err = c.AcquireFair(ctx, "busy", 30*time.Second, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	// the timed-out waiter must not linger in the queue
	n, err := s.List("test:lock:fair:busy:queue")
	if err == nil {
		assert.Empty(t, n)
	}
}

func TestFairLockSingleCaller(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	h, err := c.AcquireFair(ctx, "solo", 30*time.Second, time.Second)
	require.NoError(t, err)

	held, err := c.IsHeldByCaller(ctx, "solo")
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, h.Release(ctx))

	h2, err := c.AcquireFair(ctx, "solo", 30*time.Second, time.Second)
	require.NoError(t, err)
	require.NoError(t, h2.Release(ctx))
}

func TestReadLockShared(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	r1, err := c.AcquireRead(ctx, "doc", 30*time.Second, 0)
	require.NoError(t, err)
	r2, err := c.AcquireRead(ctx, "doc", 30*time.Second, 0)
	require.NoError(t, err)

	// a writer cannot get in while readers hold
	_, err = c.AcquireWrite(ctx, "doc", 30*time.Second, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, r1.Release(ctx))

	// still one reader left
	_, err = c.AcquireWrite(ctx, "doc", 30*time.Second, 0)
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, r2.Release(ctx))

	w, err := c.AcquireWrite(ctx, "doc", 30*time.Second, time.Second)
	require.NoError(t, err)
	require.NoError(t, w.Release(ctx))
}

func TestWriteLockExclusive(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	w, err := c.AcquireWrite(ctx, "doc", 30*time.Second, 0)
	require.NoError(t, err)

	_, err = c.AcquireRead(ctx, "doc", 30*time.Second, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	_, err = c.AcquireWrite(ctx, "doc", 30*time.Second, 0)
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, w.Release(ctx))

	r, err := c.AcquireRead(ctx, "doc", 30*time.Second, time.Second)
	require.NoError(t, err)
	require.NoError(t, r.Release(ctx))
}

func TestWriteWaitsOutReaders(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	r, err := c.AcquireRead(ctx, "settings", 30*time.Second, 0)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		w, err := c.AcquireWrite(ctx, "settings", 30*time.Second, 2*time.Second)
		if err != nil {
			done <- err
			return
		}
		done <- w.Release(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, r.Release(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("writer never acquired after readers released")
	}
}

func TestSemaphore(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	p1, err := c.AcquireSemaphore(ctx, "pool", 2, 0)
	require.NoError(t, err)
	p2, err := c.AcquireSemaphore(ctx, "pool", 2, 0)
	require.NoError(t, err)

	free, err := c.AvailablePermits(ctx, "pool")
	require.NoError(t, err)
	assert.Equal(t, 0, free)

	_, err = c.AcquireSemaphore(ctx, "pool", 2, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, p1.Release(ctx))

	p3, err := c.AcquireSemaphore(ctx, "pool", 2, time.Second)
	require.NoError(t, err)

	require.NoError(t, p3.Release(ctx))
	require.NoError(t, p2.Release(ctx))

	free, err = c.AvailablePermits(ctx, "pool")
	require.NoError(t, err)
	assert.Equal(t, 2, free)

	// double release must not mint extra permits
	require.NoError(t, p2.Release(ctx))
	free, err = c.AvailablePermits(ctx, "pool")
	require.NoError(t, err)
	assert.Equal(t, 2, free)
}

func TestSemaphoreRejectsNonPositivePermits(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, err := c.AcquireSemaphore(context.Background(), "bad", 0, 0)
	assert.Error(t, err)
}

func TestLatch(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	ok, err := c.InitLatch(ctx, "startup", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	// a second init while counting is rejected
	ok, err = c.InitLatch(ctx, "startup", 5)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := c.LatchCount(ctx, "startup")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	done := make(chan error, 1)
	go func() { done <- c.AwaitLatch(ctx, "startup", 2*time.Second) }()

	require.NoError(t, c.CountDown(ctx, "startup"))
	require.NoError(t, c.CountDown(ctx, "startup"))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("awaiter never released")
	}

	n, err = c.LatchCount(ctx, "startup")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	// extra countdown on an open latch is a no-op
	assert.NoError(t, c.CountDown(ctx, "startup"))
}

func TestLatchTimeout(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := c.InitLatch(ctx, "stalled", 1)
	require.NoError(t, err)

	err = c.AwaitLatch(ctx, "stalled", 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrLatchTimeout)
}

func TestAwaitMissingLatch(t *testing.T) {
	c, _ := newTestCoordinator(t)
	// never initialized counts as already open
	assert.NoError(t, c.AwaitLatch(context.Background(), "ghost", time.Second))
}

func TestLockInfo(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	info, err := c.LockInfo(ctx, "watched")
	require.NoError(t, err)
	assert.False(t, info.Locked)
	assert.False(t, info.HeldByCaller)
	assert.Equal(t, int64(-1), info.TTLMillis)

	h, err := c.Acquire(ctx, "watched", 30*time.Second, 0)
	require.NoError(t, err)
	defer h.Release(ctx)

	info, err = c.LockInfo(ctx, "watched")
	require.NoError(t, err)
	assert.Equal(t, "watched", info.Name)
	assert.Equal(t, "test:lock:watched", info.Key)
	assert.True(t, info.Locked)
	assert.True(t, info.HeldByCaller)
	assert.Greater(t, info.TTLMillis, int64(0))
}

func TestSemaphoreInfo(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	info, err := c.SemaphoreInfo(ctx, "pool")
	require.NoError(t, err)
	assert.False(t, info.Exists)

	p, err := c.AcquireSemaphore(ctx, "pool", 3, 0)
	require.NoError(t, err)
	defer p.Release(ctx)

	info, err = c.SemaphoreInfo(ctx, "pool")
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, 2, info.AvailablePermits)
}

func TestNamespaceIsolation(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := NewCoordinator(client, Options{Namespace: "svc-a", RetryInterval: 10 * time.Millisecond})
	b := NewCoordinator(client, Options{Namespace: "svc-b", RetryInterval: 10 * time.Millisecond})
	ctx := context.Background()

	ha, err := a.Acquire(ctx, "shared-name", 30*time.Second, 0)
	require.NoError(t, err)
	defer ha.Release(ctx)

	// same name in another namespace is a different lock
	hb, err := b.Acquire(ctx, "shared-name", 30*time.Second, 0)
	require.NoError(t, err)
	require.NoError(t, hb.Release(ctx))
}
