// Package session owns the process-wide OAuth session and seller context.
// A single Cache instance is constructed at startup and handed to every
// component that needs the authenticated channel.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bucs445fall2025/project-stackoverflowed/internal/adapter/lwa"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/domain/spapi"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/repository"
)

const refreshKey = "refresh"

// Cache serves cached access tokens and coalesces concurrent renewals so
// at most one refresh call is in flight at any time.
type Cache struct {
	tokens       lwa.TokenClient
	store        repository.SessionStore
	logger       *zap.Logger
	safetyBuffer time.Duration
	clock        func() time.Time

	group singleflight.Group

	mu              sync.Mutex
	session         spapi.OAuthSession
	seller          spapi.SellerContext
	refreshFailures int
}

// NewCache constructs an empty cache. safetyBuffer is subtracted from the
// provider's expires_in to absorb clock skew and in-flight latency.
func NewCache(tokens lwa.TokenClient, store repository.SessionStore, safetyBuffer time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		tokens:       tokens,
		store:        store,
		logger:       logger,
		safetyBuffer: safetyBuffer,
		clock:        time.Now,
	}
}

// Restore loads a previously persisted session, typically at startup.
func (c *Cache) Restore(ctx context.Context) error {
	session, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if session == nil {
		return nil
	}
	c.mu.Lock()
	c.session = *session
	c.mu.Unlock()
	c.logger.Info("restored persisted session",
		zap.Bool("access_token_usable", session.Usable(c.clock())))
	return nil
}

// SetSession replaces the session after a successful code exchange.
func (c *Cache) SetSession(ctx context.Context, token *spapi.TokenResponse) spapi.OAuthSession {
	expiry := c.expiryFor(token.ExpiresIn)
	c.mu.Lock()
	c.refreshFailures = 0
	c.session = spapi.OAuthSession{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiry,
	}
	snapshot := c.session
	c.mu.Unlock()
	c.persist(ctx, snapshot)
	return snapshot
}

// GetValidAccessToken returns a usable access token, renewing it through
// the token client when expired. Concurrent callers observing an expired
// token share a single refresh attempt and its result.
func (c *Cache) GetValidAccessToken(ctx context.Context) (string, error) {
	now := c.clock()
	c.mu.Lock()
	if c.session.Usable(now) {
		token := c.session.AccessToken
		c.mu.Unlock()
		return token, nil
	}
	if c.session.RefreshToken == "" {
		c.mu.Unlock()
		return "", spapi.ErrUnauthenticated
	}
	c.mu.Unlock()

	// The renewal outcome is shared by every coalesced waiter, so it must
	// not die with whichever caller happened to trigger it; the token
	// client's own timeout still bounds the call.
	result, err, _ := c.group.Do(refreshKey, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *Cache) refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	// A caller queued behind a completed refresh takes the fresh token
	// without issuing another network call.
	if c.session.Usable(c.clock()) {
		token := c.session.AccessToken
		c.mu.Unlock()
		return token, nil
	}
	refreshToken := c.session.RefreshToken
	c.mu.Unlock()

	if refreshToken == "" {
		return "", spapi.ErrUnauthenticated
	}

	token, err := c.tokens.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		return "", c.handleRefreshError(ctx, err)
	}

	expiry := c.expiryFor(token.ExpiresIn)
	c.mu.Lock()
	c.refreshFailures = 0
	c.session.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.session.RefreshToken = token.RefreshToken
	}
	// Expiry only ever moves forward; a stale renewal result never shrinks
	// the window an earlier caller already observed.
	if expiry.After(c.session.ExpiresAt) {
		c.session.ExpiresAt = expiry
	}
	snapshot := c.session
	accessToken := c.session.AccessToken
	c.mu.Unlock()

	c.persist(ctx, snapshot)
	return accessToken, nil
}

// handleRefreshError tracks consecutive invalid_grant rejections; two in a
// row invalidate the session entirely, forcing a new consent flow.
func (c *Cache) handleRefreshError(ctx context.Context, err error) error {
	var tokenErr *spapi.TokenError
	if !errors.As(err, &tokenErr) || !tokenErr.ReauthorizeRequired() {
		return err
	}

	c.mu.Lock()
	c.refreshFailures++
	terminal := c.refreshFailures >= 2
	if terminal {
		c.session = spapi.OAuthSession{}
	}
	c.mu.Unlock()

	if terminal {
		c.logger.Warn("refresh token rejected twice, session invalidated", zap.Error(err))
		c.clearStore(ctx)
		return fmt.Errorf("%w: %v", spapi.ErrUnauthenticated, err)
	}
	return err
}

// InvalidateAccessToken drops only the cached access token so the next
// call renews it. Used when the upstream rejects a token we thought valid.
func (c *Cache) InvalidateAccessToken() {
	c.mu.Lock()
	c.session.AccessToken = ""
	c.mu.Unlock()
}

// Invalidate discards the whole session. The seller context survives; it
// is account metadata, not a credential.
func (c *Cache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.session = spapi.OAuthSession{}
	c.refreshFailures = 0
	c.mu.Unlock()
	c.clearStore(ctx)
}

// Session returns a snapshot of the current session.
func (c *Cache) Session() spapi.OAuthSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SellerContext returns the discovered identifiers and whether both are set.
func (c *Cache) SellerContext() (spapi.SellerContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seller, c.seller.Complete()
}

// UpdateSellerContext records newly discovered identifiers, keeping any
// previously known value when the new one is empty.
func (c *Cache) UpdateSellerContext(seller spapi.SellerContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seller.SellerID != "" {
		c.seller.SellerID = seller.SellerID
	}
	if seller.MarketplaceID != "" {
		c.seller.MarketplaceID = seller.MarketplaceID
	}
}

func (c *Cache) expiryFor(expiresIn int64) time.Time {
	ttl := time.Duration(expiresIn)*time.Second - c.safetyBuffer
	return c.clock().Add(ttl)
}

func (c *Cache) persist(ctx context.Context, session spapi.OAuthSession) {
	if err := c.store.Save(ctx, session); err != nil {
		c.logger.Warn("failed to persist session", zap.Error(err))
	}
}

func (c *Cache) clearStore(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("failed to clear persisted session", zap.Error(err))
	}
}
