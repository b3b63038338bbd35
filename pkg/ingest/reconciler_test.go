package ingest

import (
	"context"
	"testing"

	"github.com/smartreview/platform/pkg/catalog"
	"github.com/smartreview/platform/pkg/common/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *catalog.Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := catalog.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return catalog.NewRepository(db)
}

func ptr[T any](v T) *T { return &v }

func amazonItem(price *float64) models.OfferIngestItem {
	return models.OfferIngestItem{
		Source:          models.SourceAmazon,
		ExternalID:      "AMAZON_B0TEST11111",
		Title:           "Acme Earbuds Pro",
		Price:           price,
		Currency:        "USD",
		AffiliateURL:    "https://www.amazon.com/dp/B0TEST11111?tag=mysite-20",
		ProductName:     "Acme Earbuds Pro",
		ProductCategory: "electronics/headphones",
		Payload:         map[string]interface{}{"mode": "clean-pipeline-main-offer"},
	}
}

func TestIngestCreatesOfferProductAndHistory(t *testing.T) {
	repo := newTestRepo(t)
	r := NewReconciler(repo, nil)
	ctx := context.Background()

	result, err := r.Ingest(ctx, []models.OfferIngestItem{amazonItem(ptr(39.99))})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Processed != 1 || result.CreatedOffers != 1 || result.UpdatedOffers != 0 || result.PriceUpdates != 1 {
		t.Fatalf("result %+v", result)
	}

	offer, err := repo.GetOfferByExternalID(ctx, models.SourceAmazon, "AMAZON_B0TEST11111")
	if err != nil {
		t.Fatalf("offer lookup: %v", err)
	}
	if offer.LastUpdated == nil {
		t.Fatal("lastUpdated not stamped")
	}
	if offer.ProductID == "" {
		t.Fatal("offer not linked to a product")
	}
	product, err := repo.GetProduct(ctx, offer.ProductID)
	if err != nil {
		t.Fatalf("product lookup: %v", err)
	}
	if product.Category != "electronics/headphones" {
		t.Fatalf("category %q", product.Category)
	}
	history, _ := repo.CountPriceHistory(ctx, offer.ID)
	if history != 1 {
		t.Fatalf("price history rows %d", history)
	}
	events, _ := repo.CountOfferIngestEvents(ctx, offer.ID)
	if events != 1 {
		t.Fatalf("ingest events %d", events)
	}
}

func TestIngestIsIdempotentForUnchangedPrice(t *testing.T) {
	repo := newTestRepo(t)
	r := NewReconciler(repo, nil)
	ctx := context.Background()

	if _, err := r.Ingest(ctx, []models.OfferIngestItem{amazonItem(ptr(39.99))}); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	result, err := r.Ingest(ctx, []models.OfferIngestItem{amazonItem(ptr(39.99))})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if result.CreatedOffers != 0 || result.UpdatedOffers != 1 || result.PriceUpdates != 0 {
		t.Fatalf("result %+v", result)
	}

	offer, _ := repo.GetOfferByExternalID(ctx, models.SourceAmazon, "AMAZON_B0TEST11111")
	history, _ := repo.CountPriceHistory(ctx, offer.ID)
	if history != 1 {
		t.Fatalf("unchanged price should not add history, got %d rows", history)
	}
	events, _ := repo.CountOfferIngestEvents(ctx, offer.ID)
	if events != 2 {
		t.Fatalf("every batch should append an event, got %d", events)
	}
}

func TestIngestRecordsPriceChange(t *testing.T) {
	repo := newTestRepo(t)
	r := NewReconciler(repo, nil)
	ctx := context.Background()

	if _, err := r.Ingest(ctx, []models.OfferIngestItem{amazonItem(ptr(39.99))}); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	result, err := r.Ingest(ctx, []models.OfferIngestItem{amazonItem(ptr(34.99))})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if result.PriceUpdates != 1 {
		t.Fatalf("result %+v", result)
	}
	offer, _ := repo.GetOfferByExternalID(ctx, models.SourceAmazon, "AMAZON_B0TEST11111")
	history, _ := repo.CountPriceHistory(ctx, offer.ID)
	if history != 2 {
		t.Fatalf("history rows %d", history)
	}
}

func TestIngestNilPriceNeverWritesHistory(t *testing.T) {
	repo := newTestRepo(t)
	r := NewReconciler(repo, nil)
	ctx := context.Background()

	result, err := r.Ingest(ctx, []models.OfferIngestItem{amazonItem(nil)})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.PriceUpdates != 0 {
		t.Fatalf("result %+v", result)
	}
	offer, _ := repo.GetOfferByExternalID(ctx, models.SourceAmazon, "AMAZON_B0TEST11111")
	history, _ := repo.CountPriceHistory(ctx, offer.ID)
	if history != 0 {
		t.Fatalf("history rows %d", history)
	}
}

func TestIngestResolvesPartnerByName(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	first, _ := repo.CreatePartner(ctx, models.Partner{Name: "Amazon Legacy", Source: models.SourceAmazon, IsEnabled: true})
	named, _ := repo.CreatePartner(ctx, models.Partner{Name: "Amazon US", Source: models.SourceAmazon, IsEnabled: true})

	r := NewReconciler(repo, nil)
	item := amazonItem(ptr(10.0))
	item.PartnerName = "Amazon US"
	if _, err := r.Ingest(ctx, []models.OfferIngestItem{item}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	offer, _ := repo.GetOfferByExternalID(ctx, models.SourceAmazon, item.ExternalID)
	if offer.PartnerID == nil || *offer.PartnerID != named.ID {
		t.Fatalf("partner %v, want %s", offer.PartnerID, named.ID)
	}

	// Without a name the oldest enabled partner for the source wins.
	item2 := amazonItem(ptr(10.0))
	item2.ExternalID = "AMAZON_B0TEST22222"
	if _, err := r.Ingest(ctx, []models.OfferIngestItem{item2}); err != nil {
		t.Fatalf("ingest second: %v", err)
	}
	offer2, _ := repo.GetOfferByExternalID(ctx, models.SourceAmazon, item2.ExternalID)
	if offer2.PartnerID == nil || *offer2.PartnerID != first.ID {
		t.Fatalf("partner %v, want oldest %s", offer2.PartnerID, first.ID)
	}
}

func TestIngestSkipsDisabledPartnerInFallback(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	disabled, _ := repo.CreatePartner(ctx, models.Partner{Name: "Amazon Legacy", Source: models.SourceAmazon, IsEnabled: false})
	enabled, _ := repo.CreatePartner(ctx, models.Partner{Name: "Amazon US", Source: models.SourceAmazon, IsEnabled: true})

	r := NewReconciler(repo, nil)
	item := amazonItem(ptr(10.0))
	if _, err := r.Ingest(ctx, []models.OfferIngestItem{item}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	offer, _ := repo.GetOfferByExternalID(ctx, models.SourceAmazon, item.ExternalID)
	if offer.PartnerID == nil || *offer.PartnerID != enabled.ID {
		t.Fatalf("partner %v, want enabled %s (disabled was %s)", offer.PartnerID, enabled.ID, disabled.ID)
	}
}

func TestIngestAppliesPartnerDeepLinkPattern(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	partner, _ := repo.CreatePartner(ctx, models.Partner{Name: "AliExpress Portals", Source: models.SourceAliExpress, IsEnabled: true})
	if _, err := repo.CreateAffiliateAccount(ctx, models.AffiliateAccount{
		PartnerID:       partner.ID,
		TrackingID:      "srv-77",
		DeepLinkPattern: "https://s.click.aliexpress.com/deep_link.htm?aff_short_key={trackingId}&dl_target_url={query}",
		IsActive:        true,
	}); err != nil {
		t.Fatalf("create account: %v", err)
	}

	r := NewReconciler(repo, nil)
	item := models.OfferIngestItem{
		Source:          models.SourceAliExpress,
		ExternalID:      "ALI_100500",
		Title:           "Acme Earbuds Clone",
		Price:           ptr(12.5),
		AffiliateURL:    "https://www.aliexpress.com/item/100500.html",
		ProductName:     "Acme Earbuds Clone",
		ProductCategory: "electronics/headphones",
	}
	if _, err := r.Ingest(ctx, []models.OfferIngestItem{item}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	offer, _ := repo.GetOfferByExternalID(ctx, models.SourceAliExpress, "ALI_100500")
	want := "https://s.click.aliexpress.com/deep_link.htm?aff_short_key=srv-77&dl_target_url=https%3A%2F%2Fwww.aliexpress.com%2Fitem%2F100500.html"
	if offer.AffiliateURL != want {
		t.Fatalf("affiliate url %q, want %q", offer.AffiliateURL, want)
	}
}

func TestIngestKeepsURLWhenPartnerHasNoPattern(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	partner, _ := repo.CreatePartner(ctx, models.Partner{Name: "Amazon US", Source: models.SourceAmazon, IsEnabled: true})
	if _, err := repo.CreateAffiliateAccount(ctx, models.AffiliateAccount{
		PartnerID:  partner.ID,
		TrackingID: "mysite-20",
		IsActive:   true,
	}); err != nil {
		t.Fatalf("create account: %v", err)
	}

	r := NewReconciler(repo, nil)
	item := amazonItem(ptr(15.0))
	if _, err := r.Ingest(ctx, []models.OfferIngestItem{item}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	offer, _ := repo.GetOfferByExternalID(ctx, models.SourceAmazon, item.ExternalID)
	if offer.AffiliateURL != item.AffiliateURL {
		t.Fatalf("tagged amazon url should pass through, got %q", offer.AffiliateURL)
	}
}

func TestIngestLinksOrphanPageToProduct(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	page, err := repo.CreatePage(ctx, models.Page{
		Slug:   "electronics/headphones/acme-earbuds-pro",
		Type:   models.PageTypeReview,
		Title:  "Acme Earbuds Pro",
		Status: models.PageStatusDraft,
	})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}

	r := NewReconciler(repo, nil)
	item := amazonItem(ptr(20.0))
	item.PageSlug = page.Slug
	if _, err := r.Ingest(ctx, []models.OfferIngestItem{item}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	linked, _ := repo.GetPageBySlug(ctx, page.Slug)
	if linked.ProductID == nil {
		t.Fatal("page should be linked to the resolved product")
	}
	offer, _ := repo.GetOfferByExternalID(ctx, models.SourceAmazon, item.ExternalID)
	if *linked.ProductID != offer.ProductID {
		t.Fatalf("page product %s, offer product %s", *linked.ProductID, offer.ProductID)
	}
}

func TestIngestReusesExplicitProductID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	product, _ := repo.CreateProduct(ctx, models.Product{CanonicalName: "Acme Earbuds Pro", Category: "electronics/headphones"})

	r := NewReconciler(repo, nil)
	item := amazonItem(ptr(30.0))
	item.ProductID = product.ID
	if _, err := r.Ingest(ctx, []models.OfferIngestItem{item}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	offer, _ := repo.GetOfferByExternalID(ctx, models.SourceAmazon, item.ExternalID)
	if offer.ProductID != product.ID {
		t.Fatalf("product %s, want %s", offer.ProductID, product.ID)
	}
}
