package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartreview/platform/pkg/common/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRepository(db)
}

func TestUpsertProductCreatesThenUpdates(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	first, err := repo.UpsertProduct(ctx, models.Product{
		ID:            "clean_prod_x",
		CanonicalName: "Acme Earbuds",
		Category:      "electronics/headphones",
		Attributes:    map[string]interface{}{"asin": "B0AAAA1111"},
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second, err := repo.UpsertProduct(ctx, models.Product{
		ID:            "clean_prod_x",
		CanonicalName: "Acme Earbuds Pro",
		Category:      "electronics/headphones",
		Attributes:    map[string]interface{}{"asin": "B0AAAA1111"},
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected stable id, got %q and %q", first.ID, second.ID)
	}
	if second.CanonicalName != "Acme Earbuds Pro" {
		t.Fatalf("expected updated name, got %q", second.CanonicalName)
	}

	products, err := repo.ProductsInCategory(ctx, "electronics/headphones", 10)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected one product row, got %d", len(products))
	}
	if asin, _ := products[0].Attributes["asin"].(string); asin != "B0AAAA1111" {
		t.Fatalf("attributes did not round-trip: %v", products[0].Attributes)
	}
}

func TestGetOfferByExternalIDNotFound(t *testing.T) {
	repo := newRepo(t)

	_, err := repo.GetOfferByExternalID(context.Background(), models.SourceAmazon, "AMAZON_MISSING")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOffersByProductHidesDisabledPartnerOffers(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	product, err := repo.CreateProduct(ctx, models.Product{CanonicalName: "Acme Earbuds", Category: "electronics/headphones"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	enabled, _ := repo.CreatePartner(ctx, models.Partner{Name: "Amazon US", Source: models.SourceAmazon, IsEnabled: true})
	disabled, _ := repo.CreatePartner(ctx, models.Partner{Name: "Temu Direct", Source: models.SourceTemu, IsEnabled: false})

	mk := func(source, externalID string, partnerID *string) {
		t.Helper()
		if _, err := repo.CreateOffer(ctx, models.Offer{
			Source:     source,
			ExternalID: externalID,
			ProductID:  product.ID,
			PartnerID:  partnerID,
			Currency:   "USD",
		}); err != nil {
			t.Fatalf("create offer %s: %v", externalID, err)
		}
	}
	mk(models.SourceAmazon, "AMAZON_B0LIST1111", &enabled.ID)
	mk(models.SourceTemu, "TEMU_9001", &disabled.ID)
	mk(models.SourceEbay, "EBAY_55", nil)

	offers, err := repo.ListOffersByProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("list offers: %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("expected 2 displayable offers, got %d", len(offers))
	}
	for _, offer := range offers {
		if offer.PartnerID != nil && *offer.PartnerID == disabled.ID {
			t.Fatalf("disabled partner offer surfaced: %s", offer.ExternalID)
		}
	}
}

func TestActiveAffiliateAccountRequiresEnabledPartner(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	disabled, err := repo.CreatePartner(ctx, models.Partner{Name: "Amazon Old", Source: models.SourceAmazon, IsEnabled: false})
	if err != nil {
		t.Fatalf("create partner: %v", err)
	}
	if _, err := repo.CreateAffiliateAccount(ctx, models.AffiliateAccount{
		PartnerID:  disabled.ID,
		TrackingID: "old-20",
		IsActive:   true,
	}); err != nil {
		t.Fatalf("create account: %v", err)
	}

	if _, err := repo.ActiveAffiliateAccount(ctx, models.SourceAmazon); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no account behind a disabled partner, got %v", err)
	}

	enabled, err := repo.CreatePartner(ctx, models.Partner{Name: "Amazon US", Source: models.SourceAmazon, IsEnabled: true})
	if err != nil {
		t.Fatalf("create partner: %v", err)
	}
	if _, err := repo.CreateAffiliateAccount(ctx, models.AffiliateAccount{
		PartnerID:  enabled.ID,
		TrackingID: "mysite-20",
		IsActive:   true,
	}); err != nil {
		t.Fatalf("create account: %v", err)
	}

	account, err := repo.ActiveAffiliateAccount(ctx, models.SourceAmazon)
	if err != nil {
		t.Fatalf("ActiveAffiliateAccount: %v", err)
	}
	if account.TrackingID != "mysite-20" {
		t.Fatalf("expected enabled partner's account, got %q", account.TrackingID)
	}
}

func TestRecentReviewPagesMatchesSubtree(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	makePage := func(category, slug string) {
		product, err := repo.CreateProduct(ctx, models.Product{CanonicalName: slug, Category: category})
		if err != nil {
			t.Fatalf("create product: %v", err)
		}
		if _, err := repo.CreatePage(ctx, models.Page{
			Slug:      slug,
			ProductID: &product.ID,
			Type:      models.PageTypeReview,
			Title:     slug,
			ContentMd: "body",
			Status:    models.PageStatusPublished,
		}); err != nil {
			t.Fatalf("create page: %v", err)
		}
	}
	makePage("electronics", "electronics/root-item")
	makePage("electronics/headphones", "electronics/headphones/item")
	makePage("pet-supplies/dogs", "pet-supplies/dogs/item")

	pages, err := repo.RecentReviewPages(ctx, "electronics", time.Now().Add(-time.Hour), 50)
	if err != nil {
		t.Fatalf("RecentReviewPages: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected the category and its subtree, got %d pages", len(pages))
	}
	for _, page := range pages {
		if page.Slug == "pet-supplies/dogs/item" {
			t.Fatalf("unrelated category leaked into results")
		}
	}
}

func TestListPublishedSourceOffersFiltersUnpublished(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	price := 19.99
	published, err := repo.CreateProduct(ctx, models.Product{CanonicalName: "published", Category: "electronics"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	draft, err := repo.CreateProduct(ctx, models.Product{CanonicalName: "draft", Category: "electronics"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	for i, spec := range []struct {
		product models.Product
		status  string
		ext     string
	}{
		{published, models.PageStatusPublished, "AMAZON_B0PUB1"},
		{draft, models.PageStatusDraft, "AMAZON_B0DRAFT1"},
	} {
		if _, err := repo.CreateOffer(ctx, models.Offer{
			Source:       models.SourceAmazon,
			ExternalID:   spec.ext,
			ProductID:    spec.product.ID,
			Price:        &price,
			Currency:     "USD",
			AffiliateURL: "https://www.amazon.com/dp/x?tag=mysite-20",
		}); err != nil {
			t.Fatalf("create offer %d: %v", i, err)
		}
		if _, err := repo.CreatePage(ctx, models.Page{
			Slug:      spec.product.CanonicalName,
			ProductID: &spec.product.ID,
			Type:      models.PageTypeReview,
			Title:     spec.product.CanonicalName,
			ContentMd: "body",
			Status:    spec.status,
		}); err != nil {
			t.Fatalf("create page %d: %v", i, err)
		}
	}

	offers, err := repo.ListPublishedSourceOffers(ctx, models.SourceAmazon, 10)
	if err != nil {
		t.Fatalf("ListPublishedSourceOffers: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("expected only the published product's offer, got %d", len(offers))
	}
	if offers[0].ExternalID != "AMAZON_B0PUB1" {
		t.Fatalf("unexpected offer %q", offers[0].ExternalID)
	}
}

func TestFinishRunStampsStatusAndCounts(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	run, err := repo.CreateRun(ctx, models.SourceAmazon, "autopost")
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if run.Status != models.RunStatusQueued {
		t.Fatalf("expected QUEUED, got %q", run.Status)
	}

	if err := repo.FinishRun(ctx, run.ID, models.RunStatusSuccess, 3, 1, "posted"); err != nil {
		t.Fatalf("finish run: %v", err)
	}
	stored, err := repo.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if stored.Status != models.RunStatusSuccess || stored.ItemsSeen != 3 || stored.ItemsPosted != 1 {
		t.Fatalf("unexpected run %+v", stored)
	}
	if stored.FinishedAt == nil {
		t.Fatalf("expected finished_at to be set")
	}
}
