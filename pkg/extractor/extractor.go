package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smartreview/platform/pkg/cache"
	"github.com/smartreview/platform/pkg/common/logger"
	"github.com/smartreview/platform/pkg/media"
)

const (
	productCacheNamespace = "clean-product"
	maxProductImages      = 4
)

// Product is the normalized result of scraping one detail page.
type Product struct {
	ASIN        string   `json:"asin"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Bullets     []string `json:"bullets,omitempty"`
	Images      []string `json:"images,omitempty"`
	Price       *float64 `json:"price,omitempty"`
}

// Extractor scrapes product detail pages. Results are cached for two weeks
// and images are mirrored into owned storage before the result is stored.
type Extractor struct {
	store     *cache.Store
	mirror    *media.Mirrorer
	client    *http.Client
	baseURL   string
	userAgent string
	ttl       time.Duration
}

func New(store *cache.Store, mirror *media.Mirrorer, baseURL, userAgent string, timeout, ttl time.Duration) *Extractor {
	return &Extractor{
		store:     store,
		mirror:    mirror,
		client:    &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		userAgent: userAgent,
		ttl:       ttl,
	}
}

// Extract returns the scraped product for an id, or nil when the detail page
// cannot be fetched. A nil product is a soft failure the caller skips over.
func (e *Extractor) Extract(ctx context.Context, asin string) (*Product, error) {
	key := cache.Key(productCacheNamespace, asin)
	if raw, err := e.store.Get(ctx, key); err == nil {
		var cached Product
		if err := json.Unmarshal([]byte(raw), &cached); err == nil && cached.ASIN != "" {
			return &cached, nil
		}
	}

	url := fmt.Sprintf("%s/dp/%s", strings.TrimSuffix(e.baseURL, "/"), asin)
	html, err := e.fetch(ctx, url)
	if err != nil {
		logger.Log.WithError(err).WithField("asin", asin).Warn("Product page fetch failed")
		return nil, nil
	}

	detail := parseDetailPage(html)
	images := detail.Images
	if len(images) > 0 {
		images = e.mirror.Mirror(ctx, images, "amazon/"+strings.ToLower(asin))
	}
	if len(images) > maxProductImages {
		images = images[:maxProductImages]
	}

	product := &Product{
		ASIN:        asin,
		URL:         url,
		Title:       detail.Title,
		Description: detail.Description,
		Bullets:     detail.Bullets,
		Images:      images,
		Price:       detail.Price,
	}
	if encoded, err := json.Marshal(product); err == nil {
		if err := e.store.Set(ctx, key, string(encoded), e.ttl); err != nil {
			logger.Log.WithError(err).Warn("Failed to cache product page")
		}
	}
	return product, nil
}

func (e *Extractor) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build product request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("product fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("product fetch: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read product body: %w", err)
	}
	return string(body), nil
}
