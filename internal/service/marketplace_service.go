package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	spapiadapter "github.com/bucs445fall2025/project-stackoverflowed/internal/adapter/spapi"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/domain/spapi"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/session"
)

const (
	participationsPath = "/sellers/v1/marketplaceParticipations"
	listingsBasePath   = "/listings/2021-08-01/items/"
)

// MarketplaceService performs authenticated marketplace calls and keeps
// the discovered seller context up to date.
type MarketplaceService struct {
	api      *spapiadapter.Client
	sessions *session.Cache
	logger   *zap.Logger
}

// NewMarketplaceService wires the marketplace service.
func NewMarketplaceService(api *spapiadapter.Client, sessions *session.Cache, logger *zap.Logger) *MarketplaceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketplaceService{api: api, sessions: sessions, logger: logger}
}

// Participations fetches marketplace participations and harvests seller
// and marketplace identifiers for later calls.
func (s *MarketplaceService) Participations(ctx context.Context) (json.RawMessage, spapi.SellerContext, error) {
	payload, err := s.api.Get(ctx, participationsPath, nil)
	if err != nil {
		return nil, spapi.SellerContext{}, fmt.Errorf("participations: %w", err)
	}

	if seller, ok := ExtractSellerContext(payload); ok {
		s.sessions.UpdateSellerContext(seller)
		s.logger.Info("seller context updated",
			zap.String("seller_id", seller.SellerID),
			zap.String("marketplace_id", seller.MarketplaceID))
	}

	current, _ := s.sessions.SellerContext()
	return payload, current, nil
}

// ListItems fetches listings for a seller. It fails fast before any
// network call when the marketplace identifier is not yet known.
func (s *MarketplaceService) ListItems(ctx context.Context, sellerID string) (json.RawMessage, error) {
	seller, _ := s.sessions.SellerContext()
	if strings.TrimSpace(sellerID) == "" {
		sellerID = seller.SellerID
	}
	if sellerID == "" || seller.MarketplaceID == "" {
		return nil, spapi.ErrMissingSellerContext
	}

	query := url.Values{}
	query.Set("marketplaceIds", seller.MarketplaceID)

	payload, err := s.api.Get(ctx, listingsBasePath+url.PathEscape(sellerID), query)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return payload, nil
}
