package coordcache

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// WriteBehindOperation is the durable queue envelope for a deferred
// persistence. Callables do not serialize; the envelope carries the name of
// a persister registered on the CacheContext at startup, and the consumer
// resolves it with PersisterFor. Its lifecycle ends when a consumer persists
// it or dead-letters it after exhausting retries.
type WriteBehindOperation struct {
	CacheName  string    `msgpack:"cache_name"`
	Key        string    `msgpack:"key"`
	Value      []byte    `msgpack:"value"`
	EnqueuedAt time.Time `msgpack:"enqueued_at"`
	Persister  string    `msgpack:"persister"`
}

// QueuedPersister persists one dequeued write-behind operation.
type QueuedPersister func(ctx context.Context, op WriteBehindOperation) error

// PersisterFor resolves a registered write-behind persister by name.
func (cc *CacheContext) PersisterFor(name string) (QueuedPersister, bool) {
	p, ok := cc.persisters[name]
	return p, ok
}

// WriteBehindQueue returns the full queue key external consumers pop from.
func (cc *CacheContext) WriteBehindQueue() string { return cc.queue }

func (cc *CacheContext) enqueueWriteBehind(ctx context.Context, op WriteBehindOperation) error {
	b, err := msgpack.Marshal(op)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrWriteBehindEnqueue, err)
	}
	if err := cc.store.ListPush(ctx, cc.queue, b); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteBehindEnqueue, err)
	}
	cc.hooks.WriteBehindEnqueued(op.CacheName, op.Key)
	cc.log.Debug("write-behind enqueued", Fields{"cache": op.CacheName, "key": op.Key})
	return nil
}

// DequeueWriteBehind pops the next pending operation. Intended for the
// external write-behind consumer; this layer never consumes the queue itself.
// Returns ok=false when the queue is empty.
func (cc *CacheContext) DequeueWriteBehind(ctx context.Context) (WriteBehindOperation, bool, error) {
	var op WriteBehindOperation
	b, ok, err := cc.store.ListPop(ctx, cc.queue)
	if err != nil || !ok {
		return op, false, err
	}
	if err := msgpack.Unmarshal(b, &op); err != nil {
		return op, false, fmt.Errorf("decode write-behind operation: %w", err)
	}
	return op, true, nil
}
