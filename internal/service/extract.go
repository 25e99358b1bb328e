package service

import (
	"github.com/tidwall/gjson"

	"github.com/bucs445fall2025/project-stackoverflowed/internal/domain/spapi"
)

// ExtractSellerContext probes a marketplace-participations payload for the
// seller and marketplace identifiers. The marketplace id appears under
// either "id" or "marketplaceId" depending on the environment; both are
// tolerated. An empty or unrecognized payload returns ok=false, never an
// error; absence is for the caller to judge.
func ExtractSellerContext(payload []byte) (spapi.SellerContext, bool) {
	first := gjson.GetBytes(payload, "payload.0")
	if !first.Exists() {
		return spapi.SellerContext{}, false
	}

	seller := spapi.SellerContext{
		SellerID: first.Get("sellerId").String(),
	}
	marketplace := first.Get("marketplace.id")
	if !marketplace.Exists() {
		marketplace = first.Get("marketplace.marketplaceId")
	}
	seller.MarketplaceID = marketplace.String()

	if seller.SellerID == "" && seller.MarketplaceID == "" {
		return spapi.SellerContext{}, false
	}
	return seller, true
}
