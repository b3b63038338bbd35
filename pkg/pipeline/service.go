package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smartreview/platform/pkg/catalog"
	"github.com/smartreview/platform/pkg/common/config"
	"github.com/smartreview/platform/pkg/common/logger"
	"github.com/smartreview/platform/pkg/common/models"
	"github.com/smartreview/platform/pkg/content"
	"github.com/smartreview/platform/pkg/discovery"
	"github.com/smartreview/platform/pkg/extractor"
	"github.com/smartreview/platform/pkg/ingest"
	"github.com/smartreview/platform/pkg/scheduler"
	"github.com/smartreview/platform/pkg/taxonomy"
)

// ErrTrackingTagMissing aborts a run before any side effects happen.
var ErrTrackingTagMissing = errors.New("pipeline: amazon tracking tag is required")

// Discoverer finds fresh product candidates for a keyword.
type Discoverer interface {
	Discover(ctx context.Context, keyword string, exclude map[string]bool, needed int) ([]discovery.Candidate, error)
}

// ProductExtractor scrapes one product detail page.
type ProductExtractor interface {
	Extract(ctx context.Context, asin string) (*extractor.Product, error)
}

// ReviewGenerator produces structured review copy.
type ReviewGenerator interface {
	Enabled() bool
	Generate(ctx context.Context, input content.GeneratorInput) (*content.Review, *content.GenerationMeta, error)
}

// ClickSource supplies click aggregates for niche weighting.
type ClickSource interface {
	ClicksByCategory(ctx context.Context, since time.Time) (map[string]int64, error)
}

// Service orchestrates discovery, extraction, content generation and offer
// ingestion into published review pages.
type Service struct {
	cfg        *config.Config
	repo       *catalog.Repository
	reconciler *ingest.Reconciler
	discoverer Discoverer
	extractor  ProductExtractor
	generator  ReviewGenerator
	clicks     ClickSource
	sched      *scheduler.Scheduler
	taxonomy   taxonomy.Catalog
}

func NewService(
	cfg *config.Config,
	repo *catalog.Repository,
	reconciler *ingest.Reconciler,
	discoverer Discoverer,
	productExtractor ProductExtractor,
	generator ReviewGenerator,
	clicks ClickSource,
	sched *scheduler.Scheduler,
	cat taxonomy.Catalog,
) *Service {
	return &Service{
		cfg:        cfg,
		repo:       repo,
		reconciler: reconciler,
		discoverer: discoverer,
		extractor:  productExtractor,
		generator:  generator,
		clicks:     clicks,
		sched:      sched,
		taxonomy:   cat,
	}
}

func hashString(value string) string {
	sum := sha1.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}

// logStep writes one audit entry. Audit failures are logged but never fail
// the run they describe.
func (s *Service) logStep(ctx context.Context, runID, step, status string, input, output map[string]interface{}, message string) {
	err := s.repo.InsertStepLog(ctx, models.StepLog{
		RunID:   runID,
		Step:    step,
		Status:  status,
		Input:   input,
		Output:  output,
		Message: message,
	})
	if err != nil {
		logger.Log.WithError(err).WithField("step", step).Warn("Failed to write step log")
	}
}

// trackingTag resolves the affiliate tag: configuration wins, the active
// affiliate account is the fallback.
func (s *Service) trackingTag(ctx context.Context) (string, error) {
	if tag := strings.TrimSpace(s.cfg.AmazonTrackingTag); tag != "" {
		return tag, nil
	}
	account, err := s.repo.ActiveAffiliateAccount(ctx, models.SourceAmazon)
	if err == nil {
		if tag := strings.TrimSpace(account.TrackingID); tag != "" {
			return tag, nil
		}
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return "", err
	}
	return "", ErrTrackingTagMissing
}

// EnsureDefaultNiches bootstraps one enabled niche per taxonomy path when the
// niche table is empty, so a fresh install can run immediately.
func (s *Service) EnsureDefaultNiches(ctx context.Context) (int, error) {
	count, err := s.repo.CountNiches(ctx, models.SourceAmazon)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}
	created := 0
	for i, path := range s.taxonomy.AutomationPaths() {
		_, err := s.repo.CreateNiche(ctx, models.Niche{
			Source:       models.SourceAmazon,
			CategoryPath: path,
			Keywords:     taxonomy.DefaultKeyword(path),
			Priority:     i + 1,
			MaxItems:     8,
			IsEnabled:    true,
		})
		if err != nil {
			return created, err
		}
		created++
	}
	logger.Log.WithField("niches", created).Info("Bootstrapped default niches from taxonomy")
	return created, nil
}

// uniqueSlug finds a free slug by suffixing a counter, falling back to a
// timestamp when two hundred variants are somehow taken.
func (s *Service) uniqueSlug(ctx context.Context, base string) (string, error) {
	slug := strings.Trim(strings.ReplaceAll(base, "//", "/"), "/")
	for i := 2; i <= 200; i++ {
		_, err := s.repo.GetPageBySlug(ctx, slug)
		if errors.Is(err, catalog.ErrNotFound) {
			return slug, nil
		}
		if err != nil {
			return "", err
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	return fmt.Sprintf("%s-%d", base, time.Now().UnixMilli()), nil
}
