// Package kv provides a small key-value abstraction with TTL semantics.
// It backs the JWT logout blacklist and other short-lived server state so
// callers depend on an injected store rather than process-global memory.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals the key does not exist or has expired.
var ErrNotFound = errors.New("kv: not found")

// Store is a key-value store with per-key expiry.
type Store interface {
	// Set writes value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
