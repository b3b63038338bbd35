package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/smartreview/platform/pkg/analytics"
	"github.com/smartreview/platform/pkg/catalog"
	"github.com/smartreview/platform/pkg/common/models"
	"github.com/smartreview/platform/pkg/ranking"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newHTTPFixture(t *testing.T) (*HTTPHandler, *catalog.Repository, *mux.Router) {
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
	repo := catalog.NewRepository(db)
	svc := newTestService(t, repo, &stubDiscoverer{}, &stubExtractor{}, &stubGenerator{}, &stubClicks{}, nil)
	handler := NewHTTPHandler(svc, repo, analytics.NewRepository(db), 1<<20)
	router := mux.NewRouter()
	handler.Register(router)
	return handler, repo, router
}

func TestHandleIngestOffersAccepts(t *testing.T) {
	_, repo, router := newHTTPFixture(t)

	price := 19.99
	body, _ := json.Marshal(map[string]interface{}{
		"items": []models.OfferIngestItem{{
			Source:          models.SourceAmazon,
			ExternalID:      "AMAZON_B0HTTP1111",
			Title:           "Acme Cable",
			Price:           &price,
			Currency:        "USD",
			AffiliateURL:    "https://www.amazon.com/dp/B0HTTP1111?tag=mysite-20",
			ProductName:     "Acme Cable",
			ProductCategory: "electronics/accessories",
		}},
	})
	req := httptest.NewRequest(http.MethodPost, "/offers/ingest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var result models.IngestResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.CreatedOffers != 1 {
		t.Fatalf("expected one created offer, got %+v", result)
	}

	if _, err := repo.GetOfferByExternalID(context.Background(), models.SourceAmazon, "AMAZON_B0HTTP1111"); err != nil {
		t.Fatalf("offer not stored: %v", err)
	}
}

func TestHandleIngestOffersRejectsEmptyBatch(t *testing.T) {
	_, _, router := newHTTPFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/offers/ingest", bytes.NewReader([]byte(`{"items":[]}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleRunStatusNotFound(t *testing.T) {
	_, _, router := newHTTPFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/runs/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleRankedOffersOrdersBestFirst(t *testing.T) {
	_, repo, router := newHTTPFixture(t)
	ctx := context.Background()

	product, err := repo.CreateProduct(ctx, models.Product{
		CanonicalName: "Acme Earbuds Pro",
		Category:      "electronics/headphones",
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := repo.CreateOffer(ctx, models.Offer{
		Source:       models.SourceEbay,
		ExternalID:   "EBAY_1",
		ProductID:    product.ID,
		Currency:     "USD",
		AffiliateURL: "https://www.ebay.com/itm/1",
	}); err != nil {
		t.Fatalf("create offer: %v", err)
	}
	price := 12.99
	if _, err := repo.CreateOffer(ctx, models.Offer{
		Source:       models.SourceAmazon,
		ExternalID:   "AMAZON_B0RANK1111",
		ProductID:    product.ID,
		Price:        &price,
		Currency:     "USD",
		AffiliateURL: "https://www.amazon.com/dp/B0RANK1111?tag=mysite-20",
	}); err != nil {
		t.Fatalf("create offer: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/products/"+product.ID+"/offers/ranked", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ranked []ranking.RankedOffer
	if err := json.Unmarshal(rec.Body.Bytes(), &ranked); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked offers, got %d", len(ranked))
	}
	if ranked[0].Offer.Source != models.SourceAmazon {
		t.Fatalf("expected the priced offer first, got %q", ranked[0].Offer.Source)
	}
	if ranked[1].Reason != "best-available-without-price" {
		t.Fatalf("unexpected reason %q", ranked[1].Reason)
	}
}

func TestHandleBootstrapNiches(t *testing.T) {
	_, repo, router := newHTTPFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/niches/bootstrap", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	niches, err := repo.ListNiches(context.Background(), models.SourceAmazon)
	if err != nil {
		t.Fatalf("list niches: %v", err)
	}
	if len(niches) == 0 {
		t.Fatalf("expected bootstrapped niches")
	}
}

func TestHandleRecordClick(t *testing.T) {
	_, _, router := newHTTPFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/clicks", bytes.NewReader([]byte(`{"page_id":"p1","ip_hash":"abc"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	bad := httptest.NewRequest(http.MethodPost, "/clicks", bytes.NewReader([]byte(`{}`)))
	recBad := httptest.NewRecorder()
	router.ServeHTTP(recBad, bad)
	if recBad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty click, got %d", recBad.Code)
	}
}
