// Package spapi dispatches signed requests to the Selling Partner API.
package spapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/bucs445fall2025/project-stackoverflowed/internal/config"
	domainspapi "github.com/bucs445fall2025/project-stackoverflowed/internal/domain/spapi"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/session"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/signer"
)

const (
	sandboxHost    = "sandbox.sellingpartnerapi-na.amazon.com"
	productionHost = "sellingpartnerapi-na.amazon.com"
)

// Client signs and dispatches authenticated GET requests to SP-API. The
// target host is fixed at construction from configuration, never inferred
// per request.
type Client struct {
	httpClient *http.Client
	sessions   *session.Cache
	creds      signer.Credentials
	region     string
	scheme     string
	host       string
	userAgent  string
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the connection-reusing default client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithEndpoint points the client at an arbitrary scheme and host, used by
// tests to target a local server.
func WithEndpoint(scheme, host string) Option {
	return func(c *Client) {
		c.scheme = scheme
		c.host = host
	}
}

// NewClient constructs a client for the configured environment.
func NewClient(cfg config.Config, sessions *session.Cache, logger *zap.Logger, opts ...Option) *Client {
	host := productionHost
	if cfg.SPAPIEnv == config.EnvSandbox {
		host = sandboxHost
	}
	timeout := cfg.UpstreamTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		sessions:   sessions,
		creds: signer.Credentials{
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		},
		region:    cfg.AWSRegion,
		scheme:    "https",
		host:      host,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a signed GET against the given path and returns the raw
// JSON payload. A 401/403 invalidates the cached access token and the call
// is retried exactly once with a renewed token; a second auth failure
// invalidates the whole session.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	payload, retry, err := c.attempt(ctx, path, query)
	if err == nil || !retry {
		return payload, err
	}

	c.sessions.InvalidateAccessToken()
	payload, retry, err = c.attempt(ctx, path, query)
	if err != nil && retry {
		c.sessions.Invalidate(ctx)
		return nil, fmt.Errorf("%w: %v", domainspapi.ErrUpstreamAuth, err)
	}
	return payload, err
}

// attempt runs one signed call. retry reports whether the failure was an
// upstream auth rejection eligible for a single forced renewal.
func (c *Client) attempt(ctx context.Context, path string, query url.Values) (json.RawMessage, bool, error) {
	token, err := c.sessions.GetValidAccessToken(ctx)
	if err != nil {
		return nil, false, err
	}

	signed, err := signer.Sign(signer.Request{
		Method: http.MethodGet,
		Host:   c.host,
		Path:   path,
		Query:  query,
		Headers: map[string]string{
			"x-amz-access-token": token,
			"user-agent":         c.userAgent,
		},
	}, c.creds, c.region, time.Now())
	if err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, signed.Method, signed.URL(c.scheme), nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	// Headers covered by the signature must go out verbatim.
	for name, values := range signed.Headers {
		req.Header[name] = values
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, false, fmt.Errorf("%w: %v", domainspapi.ErrUpstreamTimeout, err)
		}
		return nil, false, fmt.Errorf("dispatch request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<22))
	if err != nil {
		return nil, false, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, false, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.Warn("upstream rejected access token",
			zap.Int("status", resp.StatusCode), zap.String("path", path))
		return nil, true, &domainspapi.UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	default:
		return nil, false, &domainspapi.UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
