package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*LeaseLock)(nil)

// LeaseLock implements DistributedLock on the leases table.
// It is the fallback when no Redis lock is configured. Unlike session-scoped
// advisory locks, leases expire on their own and survive pooled connections.
type LeaseLock struct {
	db      *DB
	ownerID string
}

// NewLeaseLock creates a lease lock with a unique owner id
func NewLeaseLock(db *DB) *LeaseLock {
	return &LeaseLock{db: db, ownerID: "pg-" + uuid.NewString()}
}

// Acquire takes name for ttl unless another owner holds an unexpired lease
func (l *LeaseLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO leases (name, owner, expires_at)
		VALUES ($1, $2, NOW() + $3 * INTERVAL '1 millisecond')
		ON CONFLICT (name) DO UPDATE SET
			owner = EXCLUDED.owner,
			expires_at = EXCLUDED.expires_at
		WHERE leases.expires_at <= NOW()
	`, name, l.ownerID, ttl.Milliseconds())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release drops the lease if this instance still owns it
func (l *LeaseLock) Release(ctx context.Context, name string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM leases WHERE name = $1 AND owner = $2`, name, l.ownerID)
	return err
}

// Extend pushes out the expiry of an owned, unexpired lease
func (l *LeaseLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE leases SET expires_at = NOW() + $3 * INTERVAL '1 millisecond'
		WHERE name = $1 AND owner = $2 AND expires_at > NOW()
	`, name, l.ownerID, ttl.Milliseconds())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("lease not held")
	}
	return nil
}

func (l *LeaseLock) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

func (l *LeaseLock) OwnerID() string {
	return l.ownerID
}
