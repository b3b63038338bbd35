package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/smartreview/platform/pkg/common/models"
	"github.com/smartreview/platform/pkg/discovery"
	"github.com/smartreview/platform/pkg/extractor"
)

func TestAutopostPostsOneAndFinishesRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedNiche(t, repo, "electronics/headphones", 3)

	disc := &stubDiscoverer{candidates: []discovery.Candidate{{ASIN: "B0AAAA1111"}}}
	ext := &stubExtractor{products: map[string]*extractor.Product{"B0AAAA1111": testProduct("B0AAAA1111", "Acme Earbuds Pro")}}
	gen := &stubGenerator{enabled: true, review: testReview("Acme Earbuds Pro Review")}
	clicks := &stubClicks{byCategory: map[string]int64{"electronics/headphones": 12}}
	svc := newTestService(t, repo, disc, ext, gen, clicks, nil)

	run, result, err := svc.Autopost(ctx)
	if err != nil {
		t.Fatalf("autopost: %v", err)
	}
	if result.CreatedPages != 1 {
		t.Fatalf("expected exactly one post, got %+v", result)
	}

	stored, err := repo.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if stored.Status != models.RunStatusSuccess {
		t.Fatalf("expected SUCCESS run, got %q (%q)", stored.Status, stored.Message)
	}
	if stored.ItemsPosted != 1 {
		t.Fatalf("expected itemsPosted 1, got %d", stored.ItemsPosted)
	}
}

func TestAutopostFailsWithoutNiches(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &stubDiscoverer{}, &stubExtractor{}, &stubGenerator{}, &stubClicks{}, nil)

	run, _, err := svc.Autopost(context.Background())
	if err == nil {
		t.Fatalf("expected error with no enabled niches")
	}

	stored, getErr := repo.GetRun(context.Background(), run.ID)
	if getErr != nil {
		t.Fatalf("get run: %v", getErr)
	}
	if stored.Status != models.RunStatusFailed {
		t.Fatalf("expected FAILED run, got %q", stored.Status)
	}
}

func TestAutopostRecordsFailureWhenNothingPosts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedNiche(t, repo, "electronics/headphones", 3)

	// Discovery finds nothing, so every candidate niche comes up empty.
	svc := newTestService(t, repo, &stubDiscoverer{}, &stubExtractor{}, &stubGenerator{}, &stubClicks{}, nil)

	run, result, err := svc.Autopost(ctx)
	if err != nil {
		t.Fatalf("autopost: %v", err)
	}
	if result.CreatedPages != 0 {
		t.Fatalf("expected no posts, got %+v", result)
	}

	stored, err := repo.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if stored.Status != models.RunStatusFailed {
		t.Fatalf("expected FAILED run, got %q", stored.Status)
	}
	if stored.FinishedAt == nil {
		t.Fatalf("expected run to be finalized")
	}
}

func TestBackcheckRefreshesPublishedOfferPrices(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	product, err := repo.CreateProduct(ctx, models.Product{
		ID:            "clean_prod_backcheck",
		CanonicalName: "Acme Earbuds Pro",
		Category:      "electronics/headphones",
		Attributes:    map[string]interface{}{"asin": "B0AAAA1111"},
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	oldPrice := 49.99
	offer, err := repo.CreateOffer(ctx, models.Offer{
		Source:       models.SourceAmazon,
		ExternalID:   "AMAZON_B0AAAA1111",
		ProductID:    product.ID,
		Title:        "Acme Earbuds Pro",
		Price:        &oldPrice,
		Currency:     "USD",
		AffiliateURL: "https://www.amazon.com/dp/B0AAAA1111?tag=mysite-20",
	})
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	now := time.Now().UTC()
	if _, err := repo.CreatePage(ctx, models.Page{
		Slug:        "electronics/headphones/acme-earbuds-pro-review",
		ProductID:   &product.ID,
		Type:        models.PageTypeReview,
		Title:       "Acme Earbuds Pro Review",
		ContentMd:   "body",
		Status:      models.PageStatusPublished,
		PublishedAt: &now,
	}); err != nil {
		t.Fatalf("create page: %v", err)
	}

	fresh := testProduct("B0AAAA1111", "Acme Earbuds Pro")
	newPrice := 44.99
	fresh.Price = &newPrice
	ext := &stubExtractor{products: map[string]*extractor.Product{"B0AAAA1111": fresh}}
	svc := newTestService(t, repo, &stubDiscoverer{}, ext, &stubGenerator{}, &stubClicks{}, nil)

	result, err := svc.Backcheck(ctx, "", 0)
	if err != nil {
		t.Fatalf("backcheck: %v", err)
	}
	if result.Scanned != 1 || result.PriceUpdates != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	updated, err := repo.GetOfferByExternalID(ctx, models.SourceAmazon, "AMAZON_B0AAAA1111")
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if updated.Price == nil || *updated.Price != 44.99 {
		t.Fatalf("expected refreshed price, got %+v", updated.Price)
	}
	history, err := repo.CountPriceHistory(ctx, offer.ID)
	if err != nil {
		t.Fatalf("count history: %v", err)
	}
	if history != 1 {
		t.Fatalf("expected one history row for the changed price, got %d", history)
	}
}

func TestBackcheckKeepsPriceWhenScrapeFails(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	product, err := repo.CreateProduct(ctx, models.Product{
		ID:            "clean_prod_backcheck2",
		CanonicalName: "Nimbus Sport Buds",
		Category:      "electronics/headphones",
		Attributes:    map[string]interface{}{"asin": "B0DDDD4444"},
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	oldPrice := 29.99
	if _, err := repo.CreateOffer(ctx, models.Offer{
		Source:       models.SourceAmazon,
		ExternalID:   "AMAZON_B0DDDD4444",
		ProductID:    product.ID,
		Title:        "Nimbus Sport Buds",
		Price:        &oldPrice,
		Currency:     "USD",
		AffiliateURL: "https://www.amazon.com/dp/B0DDDD4444?tag=mysite-20",
	}); err != nil {
		t.Fatalf("create offer: %v", err)
	}
	now := time.Now().UTC()
	if _, err := repo.CreatePage(ctx, models.Page{
		Slug:        "electronics/headphones/nimbus-sport-buds-review",
		ProductID:   &product.ID,
		Type:        models.PageTypeReview,
		Title:       "Nimbus Sport Buds Review",
		ContentMd:   "body",
		Status:      models.PageStatusPublished,
		PublishedAt: &now,
	}); err != nil {
		t.Fatalf("create page: %v", err)
	}

	// The extractor has nothing for this item, mirroring a failed scrape.
	svc := newTestService(t, repo, &stubDiscoverer{}, &stubExtractor{}, &stubGenerator{}, &stubClicks{}, nil)

	result, err := svc.Backcheck(ctx, "", 0)
	if err != nil {
		t.Fatalf("backcheck: %v", err)
	}
	if result.Scanned != 1 || result.PriceUpdates != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	updated, err := repo.GetOfferByExternalID(ctx, models.SourceAmazon, "AMAZON_B0DDDD4444")
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if updated.Price == nil || *updated.Price != 29.99 {
		t.Fatalf("expected stored price to survive, got %+v", updated.Price)
	}
}
