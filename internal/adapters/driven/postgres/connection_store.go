package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

var _ driven.ConnectionStore = (*ConnectionStore)(nil)

// connectionSecrets is the encrypted part of a connection row
type connectionSecrets struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	APIKey       string `json:"api_key,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// ConnectionStore implements driven.ConnectionStore using PostgreSQL.
// Credentials are sealed in a single encrypted column.
type ConnectionStore struct {
	db        *DB
	encryptor *SecretEncryptor
}

// NewConnectionStore creates a new ConnectionStore
func NewConnectionStore(db *DB, encryptor *SecretEncryptor) *ConnectionStore {
	return &ConnectionStore{db: db, encryptor: encryptor}
}

const connectionColumns = `id, user_id, provider, auth_type, secrets, token_expires_at, status,
	webhook_enabled, webhook_url, created_at, updated_at`

func (s *ConnectionStore) Save(ctx context.Context, conn *domain.Connection) error {
	blob, err := s.encryptor.Encrypt(conn.ID, connectionSecrets{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		APIKey:       conn.APIKey,
		ClientID:     conn.ClientID,
		ClientSecret: conn.ClientSecret,
	})
	if err != nil {
		return fmt.Errorf("encrypt connection secrets: %w", err)
	}

	query := `
		INSERT INTO connections (` + connectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			auth_type = EXCLUDED.auth_type,
			secrets = EXCLUDED.secrets,
			token_expires_at = EXCLUDED.token_expires_at,
			status = EXCLUDED.status,
			webhook_enabled = EXCLUDED.webhook_enabled,
			webhook_url = EXCLUDED.webhook_url,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		conn.ID,
		conn.UserID,
		conn.Provider,
		string(conn.AuthType),
		blob,
		NullTime(conn.TokenExpiresAt),
		string(conn.Status),
		conn.Webhook.Enabled,
		conn.Webhook.URL,
		conn.CreatedAt,
		conn.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: connection for %s", domain.ErrAlreadyExists, conn.Provider)
	}
	return err
}

func (s *ConnectionStore) scan(row scanner) (*domain.Connection, error) {
	var conn domain.Connection
	var authType, status string
	var blob []byte
	var expires sql.NullTime

	if err := row.Scan(
		&conn.ID,
		&conn.UserID,
		&conn.Provider,
		&authType,
		&blob,
		&expires,
		&status,
		&conn.Webhook.Enabled,
		&conn.Webhook.URL,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var secrets connectionSecrets
	if err := s.encryptor.Decrypt(conn.ID, blob, &secrets); err != nil {
		return nil, fmt.Errorf("decrypt connection %s: %w", conn.ID, err)
	}
	conn.AuthType = domain.AuthType(authType)
	conn.Status = domain.ConnectionStatus(status)
	conn.TokenExpiresAt = TimePtr(expires)
	conn.AccessToken = secrets.AccessToken
	conn.RefreshToken = secrets.RefreshToken
	conn.APIKey = secrets.APIKey
	conn.ClientID = secrets.ClientID
	conn.ClientSecret = secrets.ClientSecret
	return &conn, nil
}

func (s *ConnectionStore) Get(ctx context.Context, id string) (*domain.Connection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id)
	conn, err := s.scan(row)
	if err != nil {
		return nil, notFound(err, domain.ErrNotFound)
	}
	return conn, nil
}

func (s *ConnectionStore) GetByProvider(ctx context.Context, userID, provider string) (*domain.Connection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE user_id = $1 AND provider = $2`, userID, provider)
	conn, err := s.scan(row)
	if err != nil {
		return nil, notFound(err, domain.ErrNotFound)
	}
	return conn, nil
}

func (s *ConnectionStore) List(ctx context.Context, userID string) ([]*domain.Connection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE user_id = $1 ORDER BY provider`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Connection
	for rows.Next() {
		conn, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, conn)
	}
	return result, rows.Err()
}

// UpdateTokens re-seals the secrets with the refreshed token pair
func (s *ConnectionStore) UpdateTokens(ctx context.Context, id string, token *domain.OAuthToken) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = $1 FOR UPDATE`, id)
		conn, err := s.scan(row)
		if err != nil {
			return notFound(err, domain.ErrNotFound)
		}

		secrets := connectionSecrets{
			AccessToken:  token.AccessToken,
			RefreshToken: conn.RefreshToken,
			APIKey:       conn.APIKey,
			ClientID:     conn.ClientID,
			ClientSecret: conn.ClientSecret,
		}
		if token.RefreshToken != "" {
			secrets.RefreshToken = token.RefreshToken
		}
		blob, err := s.encryptor.Encrypt(id, secrets)
		if err != nil {
			return fmt.Errorf("encrypt connection secrets: %w", err)
		}

		var expires sql.NullTime
		if !token.ExpiresAt.IsZero() {
			expires = sql.NullTime{Time: token.ExpiresAt, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE connections
			SET secrets = $2, token_expires_at = $3, status = $4, updated_at = NOW()
			WHERE id = $1
		`, id, blob, expires, string(domain.ConnectionStatusActive))
		return err
	})
}

func (s *ConnectionStore) UpdateStatus(ctx context.Context, id string, status domain.ConnectionStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE connections SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	return expectRow(res, domain.ErrNotFound)
}

func (s *ConnectionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(res, domain.ErrNotFound)
}
