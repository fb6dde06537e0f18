package driven

import (
	"context"
	"time"
)

// CacheStore is a key/value store with per-key expiry (Redis).
type CacheStore interface {
	// Get returns the raw value or domain.ErrNotFound on a miss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value with ttl. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// DeletePattern removes every key matching a glob pattern and
	// returns how many were removed.
	DeletePattern(ctx context.Context, pattern string) (int, error)

	// Keys lists keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// IncrBy atomically adds delta and returns the new value. ttl is applied
	// only when the increment created the key.
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	Ping(ctx context.Context) error
}
