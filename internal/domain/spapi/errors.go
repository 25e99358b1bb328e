package spapi

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated signals there is no refresh token to renew with;
	// the consent flow must be restarted.
	ErrUnauthenticated = errors.New("spapi: not authenticated")
	// ErrMissingSellerContext indicates seller/marketplace identifiers have
	// not been discovered yet.
	ErrMissingSellerContext = errors.New("spapi: seller context not populated, run participations first")
	// ErrInvalidState indicates the callback state token is missing, expired,
	// or was never issued.
	ErrInvalidState = errors.New("spapi: authorization state invalid")
	// ErrUpstreamAuth indicates the upstream rejected the access token twice
	// in a row; the session has been invalidated.
	ErrUpstreamAuth = errors.New("spapi: access token rejected by upstream")
	// ErrUpstreamTimeout indicates an outbound call exceeded its deadline.
	ErrUpstreamTimeout = errors.New("spapi: upstream call timed out")
)

// AuthorizationError reports a consent denial delivered on the callback
// redirect. Non-retryable; the user declined or the provider errored.
type AuthorizationError struct {
	Code        string
	Description string
}

func (e *AuthorizationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("spapi: authorization denied: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("spapi: authorization denied: %s", e.Code)
}

// TokenError reports a failed call to the LWA token endpoint. GrantType
// distinguishes code exchange from refresh.
type TokenError struct {
	GrantType   string
	StatusCode  int
	Code        string
	Description string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("spapi: %s grant failed: status=%d code=%q description=%q",
		e.GrantType, e.StatusCode, e.Code, e.Description)
}

// ReauthorizeRequired reports whether the provider rejected the grant
// outright, meaning a fresh consent flow is the only way forward.
func (e *TokenError) ReauthorizeRequired() bool {
	return e.Code == "invalid_grant"
}

// SigningError reports malformed input to the request signer. This is a
// programming or configuration defect, not a transient condition.
type SigningError struct {
	Reason string
}

func (e *SigningError) Error() string {
	return "spapi: cannot sign request: " + e.Reason
}

// UpstreamError carries the status and body of a non-2xx marketplace
// response so the failure can be reconstructed without re-running the call.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("spapi: upstream returned %d: %s", e.StatusCode, e.Body)
}

// Unavailable reports whether the failure looks transient (5xx); callers
// may retry idempotent requests with backoff.
func (e *UpstreamError) Unavailable() bool {
	return e.StatusCode >= 500
}
