// Package lwa talks to the Login with Amazon token endpoint.
package lwa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bucs445fall2025/project-stackoverflowed/internal/config"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/domain/spapi"
)

// TokenClient encapsulates the two LWA token-acquisition grants.
type TokenClient interface {
	ExchangeAuthorizationCode(ctx context.Context, code string) (*spapi.TokenResponse, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*spapi.TokenResponse, error)
}

// HTTPTokenClient is the default HTTP implementation.
type HTTPTokenClient struct {
	httpClient   *http.Client
	endpoint     string
	clientID     string
	clientSecret string
	redirectURI  string
}

var _ TokenClient = (*HTTPTokenClient)(nil)

// NewHTTPTokenClient constructs the default TokenClient.
func NewHTTPTokenClient(client *http.Client, cfg config.Config) *HTTPTokenClient {
	if client == nil {
		timeout := cfg.UpstreamTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPTokenClient{
		httpClient:   client,
		endpoint:     cfg.TokenEndpoint,
		clientID:     cfg.AmazonClientID,
		clientSecret: cfg.AmazonClientSecret,
		redirectURI:  cfg.RedirectURI,
	}
}

// ExchangeAuthorizationCode swaps the callback code for a token pair.
func (c *HTTPTokenClient) ExchangeAuthorizationCode(ctx context.Context, code string) (*spapi.TokenResponse, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("authorization code missing")
	}
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("redirect_uri", c.redirectURI)

	return c.post(ctx, "authorization_code", data)
}

// RefreshAccessToken renews the short-lived access token. The refresh
// token itself is not rotated by LWA.
func (c *HTTPTokenClient) RefreshAccessToken(ctx context.Context, refreshToken string) (*spapi.TokenResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, spapi.ErrUnauthenticated
	}
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)

	return c.post(ctx, "refresh_token", data)
}

func (c *HTTPTokenClient) post(ctx context.Context, grantType string, data url.Values) (*spapi.TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	var raw struct {
		spapi.TokenResponse
		ErrorCode        string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		if resp.StatusCode >= 300 {
			return nil, &spapi.TokenError{GrantType: grantType, StatusCode: resp.StatusCode, Description: string(body)}
		}
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	if raw.ErrorCode != "" || resp.StatusCode >= 300 {
		return nil, &spapi.TokenError{
			GrantType:   grantType,
			StatusCode:  resp.StatusCode,
			Code:        raw.ErrorCode,
			Description: raw.ErrorDescription,
		}
	}
	if strings.TrimSpace(raw.AccessToken) == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	token := raw.TokenResponse
	return &token, nil
}
