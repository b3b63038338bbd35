package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/smartreview/platform/pkg/common/models"
	"gorm.io/gorm"
)

// Repository aggregates click activity recorded by the catalog tables. It
// queries by table name instead of owning row models so the schema stays
// defined in one place.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type categoryClicks struct {
	Category string `gorm:"column:category"`
	Clicks   int64  `gorm:"column:clicks"`
}

// ClicksByCategory counts clicks since the cutoff grouped by the category of
// the product behind the clicked page. Only published review pages count, so
// drafts and category hubs never skew the niche weighting.
func (r *Repository) ClicksByCategory(ctx context.Context, since time.Time) (map[string]int64, error) {
	var rows []categoryClicks
	err := r.db.WithContext(ctx).
		Table("click_events").
		Select("products.category AS category, COUNT(*) AS clicks").
		Joins("JOIN pages ON pages.id = click_events.page_id").
		Joins("JOIN products ON products.id = pages.product_id").
		Where("pages.status = ? AND pages.type = ?", models.PageStatusPublished, models.PageTypeReview).
		Where("click_events.created_at >= ?", since).
		Group("products.category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Category] = row.Clicks
	}
	return out, nil
}

type DailyClicks struct {
	Day    string `json:"day"`
	Clicks int64  `json:"clicks"`
}

// DailySummary returns per-day click totals for the window, newest day first.
// Bucketing happens in Go so the query works on both postgres and sqlite.
func (r *Repository) DailySummary(ctx context.Context, since time.Time) ([]DailyClicks, error) {
	var stamps []time.Time
	err := r.db.WithContext(ctx).
		Table("click_events").
		Where("created_at >= ?", since).
		Pluck("created_at", &stamps).Error
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]int64)
	for _, stamp := range stamps {
		byDay[stamp.UTC().Format("2006-01-02")]++
	}
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	out := make([]DailyClicks, 0, len(days))
	for _, day := range days {
		out = append(out, DailyClicks{Day: day, Clicks: byDay[day]})
	}
	return out, nil
}

type PageClicks struct {
	PageID string `gorm:"column:page_id" json:"pageId"`
	Slug   string `gorm:"column:slug" json:"slug"`
	Title  string `gorm:"column:title" json:"title"`
	Clicks int64  `gorm:"column:clicks" json:"clicks"`
}

// TopPages returns the most clicked pages in the window.
func (r *Repository) TopPages(ctx context.Context, since time.Time, limit int) ([]PageClicks, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []PageClicks
	err := r.db.WithContext(ctx).
		Table("click_events").
		Select("pages.id AS page_id, pages.slug AS slug, pages.title AS title, COUNT(*) AS clicks").
		Joins("JOIN pages ON pages.id = click_events.page_id").
		Where("click_events.created_at >= ?", since).
		Group("pages.id").
		Group("pages.slug").
		Group("pages.title").
		Order("clicks desc").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
