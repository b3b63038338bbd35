package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartreview/platform/pkg/common/models"
)

// BackcheckResult summarizes one price backcheck sweep.
type BackcheckResult struct {
	Scanned       int `json:"scanned"`
	UpdatedOffers int `json:"updatedOffers"`
	PriceUpdates  int `json:"priceUpdates"`
}

const (
	backcheckDefaultLimit = 500
	backcheckMaxLimit     = 2000
)

// Backcheck re-scrapes the offers behind published review pages and ingests
// the fresh price. Offers without a marketplace item id are skipped, and a
// failed scrape keeps the stored price instead of erasing it.
func (s *Service) Backcheck(ctx context.Context, runID string, limit int) (BackcheckResult, error) {
	var result BackcheckResult

	if limit < 1 {
		limit = backcheckDefaultLimit
	}
	if limit > backcheckMaxLimit {
		limit = backcheckMaxLimit
	}

	offers, err := s.repo.ListPublishedSourceOffers(ctx, models.SourceAmazon, limit)
	if err != nil {
		return result, fmt.Errorf("list published offers: %w", err)
	}

	for _, offer := range offers {
		product, err := s.repo.GetProduct(ctx, offer.ProductID)
		if err != nil {
			continue
		}
		asin := offerASIN(offer, product)
		if asin == "" {
			continue
		}
		result.Scanned++

		price := offer.Price
		if scraped, err := s.extractor.Extract(ctx, asin); err == nil && scraped != nil && scraped.Price != nil {
			price = scraped.Price
		}

		externalID := offer.ExternalID
		if externalID == "" {
			externalID = "AMAZON_" + asin
		}
		partnerName := "Amazon US"
		if offer.PartnerID != nil {
			if partner, err := s.repo.GetPartner(ctx, *offer.PartnerID); err == nil && partner.Name != "" {
				partnerName = partner.Name
			}
		}
		ingested, err := s.reconciler.Ingest(ctx, []models.OfferIngestItem{{
			Source:          models.SourceAmazon,
			ExternalID:      externalID,
			ProductID:       offer.ProductID,
			Title:           offer.Title,
			Price:           price,
			Currency:        offer.Currency,
			AffiliateURL:    offer.AffiliateURL,
			ImageURL:        offer.ImageURL,
			ProductName:     product.CanonicalName,
			ProductCategory: product.Category,
			PartnerName:     partnerName,
			Payload:         map[string]interface{}{"mode": "monthly-price-backcheck", "asin": asin},
		}})
		if err != nil {
			return result, err
		}
		result.UpdatedOffers += ingested.UpdatedOffers
		result.PriceUpdates += ingested.PriceUpdates
	}

	s.logStep(ctx, runID, "MONTHLY_PRICE_BACKCHECK", models.StepOK,
		map[string]interface{}{"limit": limit},
		map[string]interface{}{
			"scanned":       result.Scanned,
			"updatedOffers": result.UpdatedOffers,
			"priceUpdates":  result.PriceUpdates,
		}, "")
	return result, nil
}

// offerASIN pulls the marketplace item id back out of an offer, preferring
// the external id and falling back to the product attributes.
func offerASIN(offer models.Offer, product models.Product) string {
	if id := strings.TrimPrefix(offer.ExternalID, "AMAZON_"); id != offer.ExternalID && id != "" {
		return strings.ToUpper(id)
	}
	if raw, ok := product.Attributes["asin"].(string); ok && raw != "" {
		return strings.ToUpper(raw)
	}
	return ""
}
