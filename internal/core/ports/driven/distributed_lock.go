package driven

import (
	"context"
	"time"
)

// DistributedLock provides the per-schedule execution lease.
// A lease held by one instance makes concurrent firings of the same schedule
// on any instance a no-op until it is released or its TTL elapses.
type DistributedLock interface {
	// Acquire takes the named lease for ttl.
	// Returns false without error when another owner holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release gives up the lease if this instance still owns it.
	Release(ctx context.Context, name string) error

	// Extend pushes out the expiry of a lease this instance owns.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	Ping(ctx context.Context) error
}
