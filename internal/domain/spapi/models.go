package spapi

import "time"

// OAuthSession holds the LWA token pair for the linked selling partner
// account. AccessToken is short-lived; RefreshToken survives until the
// partner revokes authorization and must be stored durably.
type OAuthSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Authenticated reports whether the session can still mint access tokens.
// A session with only a refresh token is valid; renewal is pending.
func (s OAuthSession) Authenticated() bool {
	return s.RefreshToken != ""
}

// Usable reports whether AccessToken can be sent upstream as of now.
func (s OAuthSession) Usable(now time.Time) bool {
	return s.AccessToken != "" && now.Before(s.ExpiresAt)
}

// SellerContext scopes marketplace calls to one selling partner account
// and regional market. Populated lazily from the first participations
// response and never cleared automatically.
type SellerContext struct {
	SellerID      string `json:"seller_id"`
	MarketplaceID string `json:"marketplace_id"`
}

// Complete reports whether both identifiers have been discovered.
func (c SellerContext) Complete() bool {
	return c.SellerID != "" && c.MarketplaceID != ""
}

// TokenResponse models the LWA token endpoint payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthState is the anti-forgery record persisted between /auth/login and
// /auth/callback.
type AuthState struct {
	State       string    `json:"state"`
	RedirectURI string    `json:"redirect_uri"`
	CreatedAt   time.Time `json:"created_at"`
}
