package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bucs445fall2025/project-stackoverflowed/internal/config"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/domain/spapi"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/service"
)

// AuthHandler serves the consent-flow endpoints.
type AuthHandler struct {
	Auth        *service.AuthService
	FrontendURL string
	Logger      *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, cfg config.Config, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{Auth: auth, FrontendURL: cfg.FrontendURL, Logger: logger}
}

// Login redirects the browser to the Seller Central consent page.
func (h *AuthHandler) Login(c *gin.Context) {
	out, err := h.Auth.StartAuthorization(c.Request.Context())
	if err != nil {
		h.Logger.Error("failed to start authorization", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Could not start the authorization flow.",
		})
		return
	}
	c.Redirect(http.StatusFound, out.AuthorizationURL)
}

// Callback consumes the provider redirect: verifies state, exchanges the
// code, and sends the browser back to the frontend. Failures here render
// plain text; there is no API caller to hand JSON to.
func (h *AuthHandler) Callback(c *gin.Context) {
	if errCode := strings.TrimSpace(c.Query("error")); errCode != "" {
		c.String(http.StatusBadRequest, "Amazon error: %s", errCode)
		return
	}

	code := strings.TrimSpace(c.Query("spapi_oauth_code"))
	if code == "" {
		code = strings.TrimSpace(c.Query("code"))
	}
	if code == "" {
		c.String(http.StatusBadRequest, "No authorization code provided")
		return
	}

	err := h.Auth.HandleCallback(c.Request.Context(), service.CallbackInput{
		Code:  code,
		State: strings.TrimSpace(c.Query("state")),
	})
	if err != nil {
		var authErr *spapi.AuthorizationError
		switch {
		case errors.Is(err, spapi.ErrInvalidState):
			c.String(http.StatusBadRequest, "Authorization state is invalid or expired, restart the login flow")
		case errors.As(err, &authErr):
			c.String(http.StatusBadRequest, "Amazon error: %s", authErr.Code)
		default:
			h.Logger.Error("token exchange failed", zap.Error(err))
			c.String(http.StatusInternalServerError, "Error exchanging auth code")
		}
		return
	}

	c.Redirect(http.StatusFound, h.FrontendURL)
}
