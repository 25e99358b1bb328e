package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bucs445fall2025/project-stackoverflowed/internal/domain/spapi"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/repository"
)

const sessionKey = "spapi:session"

// RedisSessionStore persists the OAuth session in Redis so the refresh
// token survives restarts.
type RedisSessionStore struct {
	client redis.UniversalClient
}

var _ repository.SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore constructs a Redis-backed session store.
func NewRedisSessionStore(client redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// Load returns the stored session, or nil when none has been saved.
func (s *RedisSessionStore) Load(ctx context.Context) (*spapi.OAuthSession, error) {
	bytes, err := s.client.Get(ctx, sessionKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var session spapi.OAuthSession
	if err := json.Unmarshal(bytes, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// Save writes the session without expiry; the refresh token is long-lived.
func (s *RedisSessionStore) Save(ctx context.Context, session spapi.OAuthSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Clear removes the stored session.
func (s *RedisSessionStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, sessionKey).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
