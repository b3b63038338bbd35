package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smartreview/platform/pkg/cache"
	"github.com/smartreview/platform/pkg/common/logger"
)

const (
	searchCacheNamespace = "clean-search"
	maxSearchPages       = 10
	fullPageSize         = 10
)

// Engine discovers fresh product candidates for a keyword by walking search
// result pages. Pages are cached and a stale cached page beats a failed live
// fetch.
type Engine struct {
	store     *cache.Store
	client    *http.Client
	baseURL   string
	userAgent string
	ttl       time.Duration
}

func NewEngine(store *cache.Store, baseURL, userAgent string, timeout, ttl time.Duration) *Engine {
	return &Engine{
		store:     store,
		client:    &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		userAgent: userAgent,
		ttl:       ttl,
	}
}

// Discover walks up to ten result pages and returns candidates whose ids are
// not in the exclusion set. It stops early once needed candidates are found
// or a page comes back short, which signals the end of results.
func (e *Engine) Discover(ctx context.Context, keyword string, exclude map[string]bool, needed int) ([]Candidate, error) {
	if needed < 1 {
		needed = 1
	}
	seen := map[string]bool{}
	var fresh []Candidate
	var lastErr error

	for page := 1; page <= maxSearchPages; page++ {
		items, err := e.searchPage(ctx, keyword, page)
		if err != nil {
			lastErr = err
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"keyword": keyword,
				"page":    page,
			}).Warn("Search page fetch failed")
			break
		}
		for _, item := range items {
			if seen[item.ASIN] || exclude[item.ASIN] {
				continue
			}
			seen[item.ASIN] = true
			fresh = append(fresh, item)
		}
		if len(fresh) >= needed || len(items) < fullPageSize {
			break
		}
	}

	if len(fresh) == 0 && lastErr != nil {
		return nil, fmt.Errorf("discover %q: %w", keyword, lastErr)
	}
	return fresh, nil
}

func (e *Engine) searchPage(ctx context.Context, keyword string, page int) ([]Candidate, error) {
	key := cache.Key(searchCacheNamespace, keyword, fmt.Sprintf("%d", page))
	if raw, err := e.store.Get(ctx, key); err == nil {
		var cached []Candidate
		if err := json.Unmarshal([]byte(raw), &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	html, err := e.fetch(ctx, SearchURL(e.baseURL, keyword, page))
	if err != nil {
		// A stale cached page is better than nothing when the live fetch
		// is blocked.
		if raw, _, staleErr := e.store.GetIncludingExpired(ctx, key); staleErr == nil {
			var cached []Candidate
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil && len(cached) > 0 {
				logger.Log.WithField("keyword", keyword).Warn("Serving stale search results after fetch failure")
				return cached, nil
			}
		}
		return nil, err
	}

	items := ParseSearchItems(e.baseURL, html)
	if encoded, err := json.Marshal(items); err == nil {
		if err := e.store.Set(ctx, key, string(encoded), e.ttl); err != nil {
			logger.Log.WithError(err).Warn("Failed to cache search page")
		}
	}
	return items, nil
}

func (e *Engine) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("search fetch: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read search body: %w", err)
	}
	return string(body), nil
}
