// Package store defines the remote key-value backend consumed by the
// coordination layer. The interface is vendor-agnostic; the Redis
// implementation in this package is the reference backend.
//
// Implementations must be safe for concurrent use and byte-for-byte
// transparent: Get must return exactly the []byte previously passed to Set
// for the same key.
package store

import (
	"context"
	"time"
)

// Store is the remote cache/coordination backend.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key (best-effort; missing keys are not an error).
	Delete(ctx context.Context, key string) error

	// ScanKeys returns all keys matching a glob pattern.
	ScanKeys(ctx context.Context, pattern string) ([]string, error)

	// HashIncrement atomically adds delta to a hash field and returns the
	// new value. Missing hashes/fields are created at zero.
	HashIncrement(ctx context.Context, key, field string, delta int64) (int64, error)

	// HashGetAll returns all fields of a hash; empty map for a missing key.
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	// ListPush appends item to the tail of a durable queue.
	ListPush(ctx context.Context, queue string, item []byte) error

	// ListPop removes and returns the head of a queue; (nil, false, nil)
	// when the queue is empty. Intended for external queue consumers.
	ListPop(ctx context.Context, queue string) ([]byte, bool, error)

	// Close releases resources.
	Close(ctx context.Context) error
}
