package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

var _ driven.WebhookSubscriptionStore = (*WebhookStore)(nil)

// WebhookStore implements driven.WebhookSubscriptionStore using PostgreSQL.
// Signing secrets are encrypted at rest.
type WebhookStore struct {
	db        *DB
	encryptor *SecretEncryptor
}

// NewWebhookStore creates a new WebhookStore
func NewWebhookStore(db *DB, encryptor *SecretEncryptor) *WebhookStore {
	return &WebhookStore{db: db, encryptor: encryptor}
}

const subscriptionColumns = `id, user_id, url, events, secret, active, retry_count, last_triggered, last_error, created_at`

func (s *WebhookStore) Save(ctx context.Context, sub *domain.WebhookSubscription) error {
	secret, err := s.encryptor.Encrypt(sub.ID, sub.Secret)
	if err != nil {
		return fmt.Errorf("encrypt webhook secret: %w", err)
	}

	query := `
		INSERT INTO webhook_subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url,
			events = EXCLUDED.events,
			secret = EXCLUDED.secret,
			active = EXCLUDED.active,
			retry_count = EXCLUDED.retry_count,
			last_triggered = EXCLUDED.last_triggered,
			last_error = EXCLUDED.last_error
	`
	_, err = s.db.ExecContext(ctx, query,
		sub.ID,
		sub.UserID,
		sub.URL,
		pq.Array(sub.Events),
		secret,
		sub.Active,
		sub.RetryCount,
		NullTime(sub.LastTriggered),
		sub.LastError,
		sub.CreatedAt,
	)
	return err
}

func (s *WebhookStore) scan(row scanner) (*domain.WebhookSubscription, error) {
	var sub domain.WebhookSubscription
	var secret []byte
	var lastTriggered sql.NullTime

	if err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.URL,
		pq.Array(&sub.Events),
		&secret,
		&sub.Active,
		&sub.RetryCount,
		&lastTriggered,
		&sub.LastError,
		&sub.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := s.encryptor.Decrypt(sub.ID, secret, &sub.Secret); err != nil {
		return nil, fmt.Errorf("decrypt webhook secret %s: %w", sub.ID, err)
	}
	sub.LastTriggered = TimePtr(lastTriggered)
	return &sub, nil
}

func (s *WebhookStore) Get(ctx context.Context, id string) (*domain.WebhookSubscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM webhook_subscriptions WHERE id = $1`, id)
	sub, err := s.scan(row)
	if err != nil {
		return nil, notFound(err, domain.ErrNotFound)
	}
	return sub, nil
}

func (s *WebhookStore) Delete(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return expectRow(res, domain.ErrNotFound)
}

func (s *WebhookStore) ListByUser(ctx context.Context, userID string) ([]*domain.WebhookSubscription, error) {
	return s.query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM webhook_subscriptions
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
}

func (s *WebhookStore) ListActiveForEvent(ctx context.Context, userID, event string) ([]*domain.WebhookSubscription, error) {
	return s.query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM webhook_subscriptions
		WHERE user_id = $1 AND active AND $2 = ANY(events)
	`, userID, event)
}

func (s *WebhookStore) query(ctx context.Context, query string, args ...any) ([]*domain.WebhookSubscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.WebhookSubscription
	for rows.Next() {
		sub, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}

func (s *WebhookStore) MarkTriggered(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE webhook_subscriptions SET last_triggered = $2, last_error = '' WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	return expectRow(res, domain.ErrNotFound)
}

func (s *WebhookStore) MarkFailed(ctx context.Context, id, lastError string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE webhook_subscriptions SET last_error = $2 WHERE id = $1`, id, lastError)
	if err != nil {
		return err
	}
	return expectRow(res, domain.ErrNotFound)
}
