package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bucs445fall2025/project-stackoverflowed/internal/domain/spapi"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/service"
)

// MarketplaceHandler serves the authenticated data endpoints.
type MarketplaceHandler struct {
	Marketplace *service.MarketplaceService
	Logger      *zap.Logger
}

// NewMarketplaceHandler creates the handler set.
func NewMarketplaceHandler(marketplace *service.MarketplaceService, logger *zap.Logger) *MarketplaceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketplaceHandler{Marketplace: marketplace, Logger: logger}
}

// Participations proxies the marketplace-participations call and reports
// the seller context discovered along the way.
func (h *MarketplaceHandler) Participations(c *gin.Context) {
	payload, seller, err := h.Marketplace.Participations(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":            true,
		"data":          json.RawMessage(payload),
		"sellerId":      seller.SellerID,
		"marketplaceId": seller.MarketplaceID,
	})
}

// Items proxies the listings-items call for a seller. The seller id may
// come from the path or from the discovered context.
func (h *MarketplaceHandler) Items(c *gin.Context) {
	payload, err := h.Marketplace.ListItems(c.Request.Context(), c.Param("sellerId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}

// respondError maps the gateway error taxonomy onto machine-readable JSON
// bodies so the calling UI can react (e.g. prompt a re-link).
func (h *MarketplaceHandler) respondError(c *gin.Context, err error) {
	var (
		tokenErr    *spapi.TokenError
		upstreamErr *spapi.UpstreamError
	)

	switch {
	case errors.Is(err, spapi.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "unauthenticated",
			"error_description": "Link a selling partner account via /auth/login first.",
		})
	case errors.Is(err, spapi.ErrMissingSellerContext):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "missing_seller_context",
			"error_description": "Run /marketplace/participations first to discover sellerId and marketplaceId.",
		})
	case errors.Is(err, spapi.ErrUpstreamAuth):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "upstream_auth",
			"error_description": "The marketplace rejected our credentials; re-link the account.",
		})
	case errors.Is(err, spapi.ErrUpstreamTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error":             "upstream_timeout",
			"error_description": "The marketplace did not answer in time.",
		})
	case errors.As(err, &tokenErr):
		status := http.StatusBadGateway
		if tokenErr.ReauthorizeRequired() {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{
			"error":             "token_refresh_failed",
			"error_description": tokenErr.Description,
		})
	case errors.As(err, &upstreamErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":             "upstream_error",
			"error_description": "The marketplace call failed.",
			"status":            upstreamErr.StatusCode,
			"detail":            upstreamErr.Body,
		})
	default:
		h.Logger.Error("marketplace call failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": err.Error(),
		})
	}
}
