package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bucs445fall2025/project-stackoverflowed/internal/domain/spapi"
)

// PostgresSessionStore implements SessionStore on a single-row table.
// The gateway links exactly one selling partner account per deployment.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
}

var _ SessionStore = (*PostgresSessionStore)(nil)

// NewPostgresSessionStore constructs a Postgres-backed session store.
func NewPostgresSessionStore(pool *pgxpool.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// EnsureSchema creates the session table when missing.
func (s *PostgresSessionStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS spapi_session (
			id            smallint PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			access_token  text NOT NULL,
			refresh_token text NOT NULL,
			expires_at    timestamptz NOT NULL,
			updated_at    timestamptz NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure session schema: %w", err)
	}
	return nil
}

// Load returns the stored session, or nil when none has been saved.
func (s *PostgresSessionStore) Load(ctx context.Context) (*spapi.OAuthSession, error) {
	var session spapi.OAuthSession
	err := s.pool.QueryRow(ctx,
		`SELECT access_token, refresh_token, expires_at FROM spapi_session WHERE id = 1`,
	).Scan(&session.AccessToken, &session.RefreshToken, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &session, nil
}

// Save upserts the single session row.
func (s *PostgresSessionStore) Save(ctx context.Context, session spapi.OAuthSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO spapi_session (id, access_token, refresh_token, expires_at, updated_at)
		VALUES (1, $1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()`,
		session.AccessToken, session.RefreshToken, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Clear removes the stored session.
func (s *PostgresSessionStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM spapi_session WHERE id = 1`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
