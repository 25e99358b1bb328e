package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bucs445fall2025/project-stackoverflowed/internal/adapter/lwa"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/config"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/domain/spapi"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/repository"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/session"
)

const statePrefix = "spapi:state:"

// AuthService orchestrates the LWA consent flow: consent URL construction,
// state verification, and the authorization-code exchange.
type AuthService struct {
	cfg      config.Config
	states   repository.StateStore
	tokens   lwa.TokenClient
	sessions *session.Cache
	logger   *zap.Logger
}

// NewAuthService wires the auth service.
func NewAuthService(cfg config.Config, states repository.StateStore, tokens lwa.TokenClient, sessions *session.Cache, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{cfg: cfg, states: states, tokens: tokens, sessions: sessions, logger: logger}
}

// StartAuthorizationOutput returns the prepared consent URL and its state.
type StartAuthorizationOutput struct {
	AuthorizationURL string
	State            string
}

// StartAuthorization generates the anti-forgery state, persists it, and
// builds the Seller Central consent URL.
func (s *AuthService) StartAuthorization(ctx context.Context) (*StartAuthorizationOutput, error) {
	state, err := secureRandomString(32)
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}

	consentURL, err := url.Parse(s.cfg.ConsentURL)
	if err != nil {
		return nil, fmt.Errorf("parse consent url: %w", err)
	}
	params := consentURL.Query()
	params.Set("application_id", s.cfg.SPAppID)
	params.Set("state", state)
	params.Set("redirect_uri", s.cfg.RedirectURI)
	params.Set("version", "beta")
	consentURL.RawQuery = params.Encode()

	payload := spapi.AuthState{
		State:       state,
		RedirectURI: s.cfg.RedirectURI,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.states.SaveState(ctx, buildStateKey(state), payload, s.cfg.StateTTL); err != nil {
		return nil, fmt.Errorf("persist state: %w", err)
	}

	return &StartAuthorizationOutput{
		AuthorizationURL: consentURL.String(),
		State:            state,
	}, nil
}

// CallbackInput captures the provider's redirect query parameters.
type CallbackInput struct {
	Code             string
	State            string
	ErrorCode        string
	ErrorDescription string
}

// HandleCallback verifies the state token, exchanges the authorization
// code, and stores the resulting session.
func (s *AuthService) HandleCallback(ctx context.Context, in CallbackInput) error {
	if in.ErrorCode != "" {
		return &spapi.AuthorizationError{Code: in.ErrorCode, Description: in.ErrorDescription}
	}
	if strings.TrimSpace(in.Code) == "" {
		return &spapi.AuthorizationError{Code: "missing_code", Description: "provider sent no authorization code"}
	}
	if strings.TrimSpace(in.State) == "" {
		return spapi.ErrInvalidState
	}

	stateKey := buildStateKey(in.State)
	state, err := s.states.GetState(ctx, stateKey)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if state == nil {
		return spapi.ErrInvalidState
	}
	defer s.deleteState(ctx, stateKey)

	token, err := s.tokens.ExchangeAuthorizationCode(ctx, in.Code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}

	stored := s.sessions.SetSession(ctx, token)
	s.logger.Info("selling partner account linked",
		zap.Time("expires_at", stored.ExpiresAt))
	return nil
}

func (s *AuthService) deleteState(ctx context.Context, stateKey string) {
	if err := s.states.DeleteState(ctx, stateKey); err != nil {
		s.logger.Warn("failed to delete auth state", zap.Error(err))
	}
}

func buildStateKey(state string) string {
	return statePrefix + strings.TrimSpace(state)
}

func secureRandomString(size int) (string, error) {
	if size <= 0 {
		size = 32
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
