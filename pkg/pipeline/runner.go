package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smartreview/platform/pkg/affiliate"
	"github.com/smartreview/platform/pkg/catalog"
	"github.com/smartreview/platform/pkg/common/logger"
	"github.com/smartreview/platform/pkg/common/models"
	"github.com/smartreview/platform/pkg/content"
	"github.com/smartreview/platform/pkg/discovery"
	"github.com/smartreview/platform/pkg/extractor"
	"github.com/smartreview/platform/pkg/scrape"
)

// RunOptions narrow a pipeline invocation. Zero values mean no restriction.
type RunOptions struct {
	RunID                 string
	TargetCategoryPaths   []string
	ForceMaxItemsPerNiche int
	MaxTotalPosts         int
}

// Result aggregates what one pipeline run did.
type Result struct {
	NichesUsed           int `json:"nichesUsed"`
	RequestedPosts       int `json:"requestedPosts"`
	CreatedPages         int `json:"createdPages"`
	UpdatedPages         int `json:"updatedPages"`
	GeneratedOffers      int `json:"generatedOffers"`
	CreatedOffers        int `json:"createdOffers"`
	UpdatedOffers        int `json:"updatedOffers"`
	SkippedNoValidAmazon int `json:"skippedNoValidAmazon"`
	AIAttempts           int `json:"aiAttempts"`
	AIFailures           int `json:"aiFailures"`
}

const (
	maxPostsPerNiche = 10
	knownProductScan = 1000
	recentTitleScan  = 300
)

// Run executes the full pipeline over the enabled niches. The tracking tag is
// resolved before anything else so a misconfigured instance fails without
// side effects.
func (s *Service) Run(ctx context.Context, opts RunOptions) (Result, error) {
	var result Result

	tag, err := s.trackingTag(ctx)
	if err != nil {
		return result, err
	}

	niches, err := s.repo.ListEnabledNiches(ctx, models.SourceAmazon)
	if err != nil {
		return result, fmt.Errorf("list niches: %w", err)
	}
	if len(opts.TargetCategoryPaths) > 0 {
		target := map[string]bool{}
		for _, path := range opts.TargetCategoryPaths {
			target[path] = true
		}
		var filtered []models.Niche
		for _, niche := range niches {
			if target[niche.CategoryPath] {
				filtered = append(filtered, niche)
			}
		}
		niches = filtered
	}

	for _, niche := range niches {
		postsForNiche := niche.MaxItems
		if opts.ForceMaxItemsPerNiche > 0 {
			postsForNiche = opts.ForceMaxItemsPerNiche
		}
		if postsForNiche < 1 {
			postsForNiche = 1
		}
		if postsForNiche > maxPostsPerNiche {
			postsForNiche = maxPostsPerNiche
		}
		result.RequestedPosts += postsForNiche

		createdInNiche, err := s.runNiche(ctx, niche, postsForNiche, tag, opts, &result)
		if err != nil {
			return result, err
		}
		if createdInNiche > 0 {
			result.NichesUsed++
		}
		if opts.MaxTotalPosts > 0 && result.CreatedPages >= opts.MaxTotalPosts {
			break
		}
	}
	return result, nil
}

func (s *Service) runNiche(ctx context.Context, niche models.Niche, postsForNiche int, tag string, opts RunOptions, result *Result) (int, error) {
	existingASINs, err := s.knownASINs(ctx, niche.CategoryPath)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-s.cfg.RecentTitleWindow)
	recentPages, err := s.repo.RecentReviewPages(ctx, niche.CategoryPath, cutoff, recentTitleScan)
	if err != nil {
		return 0, err
	}

	keywordSource := niche.Keywords
	if keywordSource == "" {
		keywordSource = niche.CategoryPath
	}
	keyword := discovery.ExtractKeyword(keywordSource)

	candidates, err := s.discoverer.Discover(ctx, keyword, existingASINs, postsForNiche)
	if err != nil {
		s.logStep(ctx, opts.RunID, "DISCOVERY_AMAZON_SCRAPE", models.StepError,
			map[string]interface{}{"niche": niche.CategoryPath, "keyword": keyword}, nil, err.Error())
		return 0, nil
	}
	if len(candidates) > postsForNiche {
		candidates = candidates[:postsForNiche]
	}
	s.logStep(ctx, opts.RunID, "DISCOVERY_AMAZON_SCRAPE", models.StepOK,
		map[string]interface{}{"niche": niche.CategoryPath, "keyword": keyword},
		map[string]interface{}{"found": len(candidates)}, "")
	if len(candidates) == 0 {
		result.SkippedNoValidAmazon += postsForNiche
		return 0, nil
	}

	createdInNiche := 0
	for _, candidate := range candidates {
		created, err := s.publishCandidate(ctx, niche, candidate.ASIN, candidate.ImageURL, keyword, tag, opts, result, &recentPages)
		if err != nil {
			return createdInNiche, err
		}
		if created {
			createdInNiche++
		}
		if opts.MaxTotalPosts > 0 && result.CreatedPages >= opts.MaxTotalPosts {
			break
		}
	}
	return createdInNiche, nil
}

func (s *Service) publishCandidate(
	ctx context.Context,
	niche models.Niche,
	asin, candidateImage, keyword, tag string,
	opts RunOptions,
	result *Result,
	recentPages *[]models.Page,
) (bool, error) {
	product, err := s.extractor.Extract(ctx, asin)
	if err != nil {
		return false, err
	}
	if product == nil {
		result.SkippedNoValidAmazon++
		return false, nil
	}

	review, usedAI, errMessage := s.generateReview(ctx, niche, product, opts, result)
	if review == nil {
		return false, nil
	}

	title := scrape.CleanText(review.Title)
	if title == "" {
		title = scrape.CleanText(product.Title) + " Review"
	}
	for _, page := range *recentPages {
		if content.IsLikelyDuplicateTitle(title, page.Title) {
			s.logStep(ctx, opts.RunID, "DEDUPE_TITLE_REPEAT", models.StepWarn,
				map[string]interface{}{"asin": asin, "niche": niche.CategoryPath, "title": title},
				map[string]interface{}{"existingPageId": page.ID, "existingSlug": page.Slug, "existingTitle": page.Title},
				"Skipped repeated review title inside the recent window.")
			return false, nil
		}
	}

	productID := "clean_prod_" + hashString(niche.CategoryPath+":"+asin)
	images := product.Images
	if len(images) > 4 {
		images = images[:4]
	}
	attributes := map[string]interface{}{"asin": asin, "images": images}
	dbProduct, err := s.repo.UpsertProduct(ctx, models.Product{
		ID:            productID,
		CanonicalName: scrape.CleanText(product.Title),
		Category:      niche.CategoryPath,
		Attributes:    attributes,
	})
	if err != nil {
		return false, err
	}

	if existing, err := s.repo.FindPageByProduct(ctx, dbProduct.ID); err == nil {
		s.logStep(ctx, opts.RunID, "DEDUPE_PAGE", models.StepWarn,
			map[string]interface{}{"asin": asin, "productId": dbProduct.ID},
			map[string]interface{}{"existingPageId": existing.ID, "slug": existing.Slug, "status": existing.Status},
			"Page already exists for product; skipped duplicate page creation.")
		return false, nil
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return false, err
	}

	offerURL := affiliate.BuildProductURL(s.cfg.MarketplaceBaseURL, asin, tag)
	validation := affiliate.Validate(models.SourceAmazon, offerURL, tag)
	if !validation.Valid {
		result.AIFailures++
		s.logStep(ctx, opts.RunID, "AFFILIATE_VALIDATE", models.StepError,
			map[string]interface{}{"asin": asin},
			map[string]interface{}{"url": offerURL}, validation.Reason)
		return false, nil
	}

	heroImage := candidateImage
	if len(images) > 0 {
		heroImage = images[0]
	}
	ingested, err := s.reconciler.Ingest(ctx, []models.OfferIngestItem{{
		Source:          models.SourceAmazon,
		ExternalID:      "AMAZON_" + asin,
		ProductID:       dbProduct.ID,
		Title:           scrape.CleanText(product.Title),
		Price:           product.Price,
		Currency:        "USD",
		AffiliateURL:    offerURL,
		ImageURL:        heroImage,
		ProductName:     scrape.CleanText(product.Title),
		ProductCategory: niche.CategoryPath,
		PartnerName:     "Amazon US",
		Payload:         map[string]interface{}{"mode": "clean-pipeline-main-offer", "asin": asin},
	}})
	if err != nil {
		return false, err
	}
	result.GeneratedOffers += ingested.Processed
	result.CreatedOffers += ingested.CreatedOffers
	result.UpdatedOffers += ingested.UpdatedOffers

	slug, err := s.uniqueSlug(ctx, niche.CategoryPath+"/"+content.ToSlug(title))
	if err != nil {
		return false, err
	}
	contentMd := content.ComposeMarkdown(*review, product.Bullets)
	excerpt := scrape.CleanText(review.Excerpt)
	if excerpt == "" {
		excerpt = scrape.CleanText(product.Description)
	}
	if excerpt == "" {
		excerpt = title
	}
	if len(excerpt) > 240 {
		excerpt = excerpt[:240]
	}

	status := models.PageStatusDraft
	var publishedAt *time.Time
	if s.cfg.PublishMode == models.PageStatusPublished {
		status = models.PageStatusPublished
		now := time.Now().UTC()
		publishedAt = &now
	}
	page, err := s.repo.CreatePage(ctx, models.Page{
		Slug:         slug,
		ProductID:    &dbProduct.ID,
		Type:         models.PageTypeReview,
		Title:        title,
		Excerpt:      excerpt,
		ContentMd:    contentMd,
		HeroImageURL: heroImage,
		Status:       status,
		PublishedAt:  publishedAt,
	})
	if err != nil {
		return false, err
	}

	promptChars := 0
	if encoded, err := json.Marshal(product); err == nil {
		promptChars = len(encoded)
	}
	outputChars := 0
	if encoded, err := json.Marshal(review); err == nil {
		outputChars = len(encoded)
	}
	if err := s.repo.InsertGenerationLog(ctx, models.GenerationLog{
		RunID:        opts.RunID,
		PageID:       page.ID,
		CategoryPath: niche.CategoryPath,
		Keyword:      keyword,
		ProductName:  title,
		Model:        s.cfg.AIModelName,
		Provider:     "openai",
		UsedAI:       usedAI,
		FallbackUsed: !usedAI,
		PromptHash:   hashString(niche.CategoryPath + ":" + asin),
		PromptChars:  promptChars,
		OutputChars:  outputChars,
		ErrorMessage: errMessage,
	}); err != nil {
		logger.Log.WithError(err).Warn("Failed to write generation log")
	}

	*recentPages = append([]models.Page{page}, *recentPages...)
	result.CreatedPages++
	return true, nil
}

// generateReview runs the model and applies the fallback policy. A nil
// review means the candidate is skipped entirely.
func (s *Service) generateReview(ctx context.Context, niche models.Niche, product *extractor.Product, opts RunOptions, result *Result) (*content.Review, bool, string) {
	result.AIAttempts++
	input := content.GeneratorInput{
		Category:    s.taxonomy.Label(niche.CategoryPath),
		ASIN:        product.ASIN,
		Title:       product.Title,
		Description: product.Description,
		Bullets:     product.Bullets,
	}

	var errMessage string
	if s.generator != nil && s.generator.Enabled() {
		review, meta, err := s.generator.Generate(ctx, input)
		if err != nil {
			errMessage = err.Error()
		}
		if review != nil {
			s.logStep(ctx, opts.RunID, "AI_USAGE", models.StepOK,
				map[string]interface{}{"asin": product.ASIN},
				map[string]interface{}{"responseId": metaResponseID(meta), "usage": metaUsage(meta)}, "")
			return review, true, ""
		}
		result.AIFailures++
		if errMessage == "" {
			errMessage = "AI response missing/invalid"
		}
	} else {
		result.AIFailures++
		errMessage = "AI generator not configured"
	}

	if s.cfg.RequireAI {
		s.logStep(ctx, opts.RunID, "AI_REVIEW_REQUIRED", models.StepError,
			map[string]interface{}{"asin": product.ASIN},
			map[string]interface{}{"ok": false}, errMessage)
		return nil, false, errMessage
	}

	fallback := content.BuildFallbackReview(product.Title, s.taxonomy.Label(niche.CategoryPath), product.Bullets, 1)
	s.logStep(ctx, opts.RunID, "AI_FALLBACK", models.StepWarn,
		map[string]interface{}{"asin": product.ASIN},
		map[string]interface{}{"ok": true}, errMessage)
	return &fallback, false, errMessage
}

func (s *Service) knownASINs(ctx context.Context, category string) (map[string]bool, error) {
	products, err := s.repo.ProductsInCategory(ctx, category, knownProductScan)
	if err != nil {
		return nil, err
	}
	known := map[string]bool{}
	for _, product := range products {
		if raw, ok := product.Attributes["asin"].(string); ok && raw != "" {
			known[strings.ToUpper(raw)] = true
		}
	}
	return known, nil
}

func metaResponseID(meta *content.GenerationMeta) string {
	if meta == nil {
		return ""
	}
	return meta.ResponseID
}

func metaUsage(meta *content.GenerationMeta) map[string]interface{} {
	if meta == nil {
		return nil
	}
	return meta.Usage
}
