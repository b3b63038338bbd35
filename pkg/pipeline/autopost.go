package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/smartreview/platform/pkg/common/logger"
	"github.com/smartreview/platform/pkg/common/models"
	"github.com/smartreview/platform/pkg/scheduler"
)

const autopostCandidates = 3

// Autopost publishes a single page by trying click-weighted niches in order
// until one of them yields a post. Every invocation is recorded as a run.
func (s *Service) Autopost(ctx context.Context) (models.Run, Result, error) {
	var total Result

	run, err := s.repo.CreateRun(ctx, models.SourceAmazon, "autopost")
	if err != nil {
		return models.Run{}, total, fmt.Errorf("create run: %w", err)
	}

	finish := func(status, message string, seen, posted int) {
		if err := s.repo.FinishRun(ctx, run.ID, status, seen, posted, message); err != nil {
			logger.Log.WithError(err).WithField("runId", run.ID).Warn("Failed to finalize run")
		}
	}

	niches, err := s.repo.ListEnabledNiches(ctx, models.SourceAmazon)
	if err != nil {
		finish(models.RunStatusFailed, err.Error(), 0, 0)
		return run, total, err
	}
	if len(niches) == 0 {
		finish(models.RunStatusFailed, "no enabled niches", 0, 0)
		return run, total, fmt.Errorf("autopost: no enabled niches")
	}

	since := time.Now().Add(-time.Duration(s.cfg.ClickWindowDays) * 24 * time.Hour)
	clicks, err := s.clicks.ClicksByCategory(ctx, since)
	if err != nil {
		logger.Log.WithError(err).Warn("Click aggregation failed, falling back to uniform niche weights")
		clicks = map[string]int64{}
	}

	weighted := scheduler.Weigh(niches, clicks)
	pickCount := autopostCandidates
	if pickCount > len(weighted) {
		pickCount = len(weighted)
	}
	candidates := s.sched.Pick(weighted, pickCount)

	for _, niche := range candidates {
		result, err := s.Run(ctx, RunOptions{
			RunID:                 run.ID,
			TargetCategoryPaths:   []string{niche.CategoryPath},
			ForceMaxItemsPerNiche: 1,
			MaxTotalPosts:         1,
		})
		total.add(result)
		if err != nil {
			finish(models.RunStatusFailed, err.Error(), total.AIAttempts, total.CreatedPages)
			return run, total, err
		}
		if result.CreatedPages > 0 {
			message := fmt.Sprintf("posted %q via autopost", niche.CategoryPath)
			finish(models.RunStatusSuccess, message, total.AIAttempts, total.CreatedPages)
			return run, total, nil
		}
	}

	finish(models.RunStatusFailed, "no candidate niche produced a post", total.AIAttempts, total.CreatedPages)
	return run, total, nil
}

func (r *Result) add(other Result) {
	r.NichesUsed += other.NichesUsed
	r.RequestedPosts += other.RequestedPosts
	r.CreatedPages += other.CreatedPages
	r.UpdatedPages += other.UpdatedPages
	r.GeneratedOffers += other.GeneratedOffers
	r.CreatedOffers += other.CreatedOffers
	r.UpdatedOffers += other.UpdatedOffers
	r.SkippedNoValidAmazon += other.SkippedNoValidAmazon
	r.AIAttempts += other.AIAttempts
	r.AIFailures += other.AIFailures
}
