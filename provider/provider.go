// Package provider defines the byte-store abstraction used for local
// near-cache tiers. A cache name registered with a local provider is served
// from process memory instead of the remote store, which is what turns
// MultiLevelGet into a true memory-to-remote hierarchy.
//
// Implementations must be safe for concurrent use and byte-for-byte
// transparent: Get must return exactly the []byte previously passed to Set
// for the same key.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. Stores without per-entry TTL
	// support may ignore it. Returns ok=false when the store rejected the
	// write under pressure.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
