package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smartreview/platform/pkg/affiliate"
	"github.com/smartreview/platform/pkg/catalog"
	"github.com/smartreview/platform/pkg/common/logger"
	"github.com/smartreview/platform/pkg/common/models"
)

// EventPublisher mirrors the kafka producer surface so the reconciler can run
// without a broker in tests.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Reconciler folds offer snapshots into the catalog. Repeated batches with
// unchanged prices converge instead of piling up duplicate rows, while every
// batch still leaves an audit event behind.
type Reconciler struct {
	repo   *catalog.Repository
	events EventPublisher
}

func NewReconciler(repo *catalog.Repository, events EventPublisher) *Reconciler {
	return &Reconciler{repo: repo, events: events}
}

// Ingest processes a batch of offer items. Items are independent, so one bad
// item fails the batch early rather than leaving half-written state silently.
func (r *Reconciler) Ingest(ctx context.Context, items []models.OfferIngestItem) (models.IngestResult, error) {
	var result models.IngestResult
	for _, item := range items {
		outcome, err := r.ingestOne(ctx, item)
		if err != nil {
			return result, fmt.Errorf("ingest %s/%s: %w", item.Source, item.ExternalID, err)
		}
		result.Add(outcome)
	}
	return result, nil
}

func (r *Reconciler) ingestOne(ctx context.Context, item models.OfferIngestItem) (models.IngestResult, error) {
	result := models.IngestResult{Processed: 1}

	partnerID, err := r.resolvePartner(ctx, item)
	if err != nil {
		return result, err
	}

	productID, err := r.resolveProduct(ctx, item)
	if err != nil {
		return result, err
	}

	existing, err := r.repo.GetOfferByExternalID(ctx, item.Source, item.ExternalID)
	exists := err == nil
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return result, err
	}

	now := time.Now().UTC()
	currency := item.Currency
	if currency == "" {
		currency = "USD"
	}
	affiliateURL, err := r.monetizedURL(ctx, partnerID, item.AffiliateURL)
	if err != nil {
		return result, err
	}
	offer := models.Offer{
		Source:       item.Source,
		ExternalID:   item.ExternalID,
		ProductID:    productID,
		PartnerID:    partnerID,
		Title:        item.Title,
		Price:        item.Price,
		Currency:     currency,
		Availability: item.Availability,
		AffiliateURL: affiliateURL,
		ImageURL:     item.ImageURL,
		LastUpdated:  &now,
	}

	if exists {
		offer.ID = existing.ID
		if _, err := r.repo.UpdateOffer(ctx, offer); err != nil {
			return result, err
		}
		result.UpdatedOffers = 1
	} else {
		created, err := r.repo.CreateOffer(ctx, offer)
		if err != nil {
			return result, err
		}
		offer.ID = created.ID
		result.CreatedOffers = 1
	}

	if shouldRecordPrice(item.Price, exists, existing.Price) {
		if err := r.repo.InsertPriceHistory(ctx, offer.ID, *item.Price, currency); err != nil {
			return result, err
		}
		result.PriceUpdates = 1
	}

	if err := r.repo.InsertOfferIngestEvent(ctx, models.OfferIngestEvent{
		OfferID:    offer.ID,
		PartnerID:  partnerID,
		Source:     item.Source,
		ExternalID: item.ExternalID,
		Payload:    item.Payload,
	}); err != nil {
		return result, err
	}

	r.publish(ctx, item, offer, result)
	return result, nil
}

// monetizedURL routes a destination through the partner's deep link pattern
// when the partner has an active account configured with one. Amazon accounts
// carry no pattern, so their already-tagged links pass through unchanged.
func (r *Reconciler) monetizedURL(ctx context.Context, partnerID *string, destination string) (string, error) {
	if partnerID == nil || destination == "" {
		return destination, nil
	}
	account, err := r.repo.ActiveAccountForPartner(ctx, *partnerID)
	if errors.Is(err, catalog.ErrNotFound) {
		return destination, nil
	}
	if err != nil {
		return "", err
	}
	return affiliate.ApplyDeepLinkPattern(account.DeepLinkPattern, destination, account.TrackingID), nil
}

func (r *Reconciler) resolvePartner(ctx context.Context, item models.OfferIngestItem) (*string, error) {
	var partner models.Partner
	var err error
	if item.PartnerName != "" {
		partner, err = r.repo.FindPartner(ctx, item.Source, item.PartnerName)
	} else {
		partner, err = r.repo.FirstEnabledPartner(ctx, item.Source)
	}
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &partner.ID, nil
}

// resolveProduct picks the product an offer belongs to: an explicit id wins,
// then the page's linked product when categories agree, then a name and
// category match, and finally a fresh row.
func (r *Reconciler) resolveProduct(ctx context.Context, item models.OfferIngestItem) (string, error) {
	category := item.ProductCategory
	if category == "" {
		category = "unassigned"
	}

	var page models.Page
	havePage := false
	if item.PageSlug != "" {
		found, err := r.repo.GetPageBySlug(ctx, item.PageSlug)
		if err == nil {
			page = found
			havePage = true
		} else if !errors.Is(err, catalog.ErrNotFound) {
			return "", err
		}
	}

	productID := item.ProductID
	if productID == "" && havePage && page.ProductID != nil {
		reusable := item.ProductCategory == ""
		if !reusable {
			pageProduct, err := r.repo.GetProduct(ctx, *page.ProductID)
			if err == nil && pageProduct.Category == item.ProductCategory {
				reusable = true
			} else if err != nil && !errors.Is(err, catalog.ErrNotFound) {
				return "", err
			}
		}
		if reusable {
			productID = *page.ProductID
		}
	}

	if productID == "" {
		found, err := r.repo.FindProductByNameAndCategory(ctx, item.ProductName, category)
		if err == nil {
			productID = found.ID
		} else if !errors.Is(err, catalog.ErrNotFound) {
			return "", err
		}
	}

	if productID == "" {
		created, err := r.repo.CreateProduct(ctx, models.Product{
			CanonicalName: item.ProductName,
			Category:      category,
		})
		if err != nil {
			return "", err
		}
		productID = created.ID
	}

	if havePage && page.ProductID == nil {
		if err := r.repo.LinkPageProduct(ctx, page.ID, productID); err != nil {
			return "", err
		}
	}
	return productID, nil
}

func shouldRecordPrice(price *float64, exists bool, previous *float64) bool {
	if price == nil {
		return false
	}
	if !exists || previous == nil {
		return true
	}
	return *previous != *price
}

func (r *Reconciler) publish(ctx context.Context, item models.OfferIngestItem, offer models.Offer, outcome models.IngestResult) {
	if r.events == nil {
		return
	}
	err := r.events.PublishEvent(ctx, "offer.ingested", item.Source, map[string]interface{}{
		"offer_id":      offer.ID,
		"external_id":   item.ExternalID,
		"product_id":    offer.ProductID,
		"created":       outcome.CreatedOffers == 1,
		"price_updated": outcome.PriceUpdates == 1,
	})
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to publish offer ingest event")
	}
}
