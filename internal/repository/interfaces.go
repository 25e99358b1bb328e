package repository

import (
	"context"
	"time"

	"github.com/bucs445fall2025/project-stackoverflowed/internal/domain/spapi"
)

// StateStore persists the anti-forgery state issued at /auth/login so the
// callback can verify it.
type StateStore interface {
	SaveState(ctx context.Context, key string, data spapi.AuthState, ttl time.Duration) error
	GetState(ctx context.Context, key string) (*spapi.AuthState, error)
	DeleteState(ctx context.Context, key string) error
}

// SessionStore durably persists the OAuth session so the refresh token
// survives process restarts. Load returns nil when nothing is stored.
type SessionStore interface {
	Load(ctx context.Context) (*spapi.OAuthSession, error)
	Save(ctx context.Context, session spapi.OAuthSession) error
	Clear(ctx context.Context) error
}
