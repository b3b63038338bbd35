package models

import (
	"time"
)

// Offer sources. AMAZON is the primary marketplace; the rest are
// deep-link-only partner sources.
const (
	SourceAmazon     = "AMAZON"
	SourceAliExpress = "ALIEXPRESS"
	SourceTemu       = "TEMU"
	SourceAlibaba    = "ALIBABA"
	SourceEbay       = "EBAY"
)

// Page lifecycle.
const (
	PageStatusDraft     = "DRAFT"
	PageStatusPublished = "PUBLISHED"
	PageTypeReview      = "REVIEW"
	PageTypeCategory    = "CATEGORY"
)

// Run lifecycle.
const (
	RunStatusQueued  = "QUEUED"
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// Step log status values.
const (
	StepOK    = "OK"
	StepWarn  = "WARN"
	StepError = "ERROR"
)

// Niche is one discovery unit: a (source, category, keyword) triple with a
// per-run item target.
type Niche struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	CategoryPath string    `json:"category_path"`
	Keywords     string    `json:"keywords"`
	Priority     int       `json:"priority"`
	MaxItems     int       `json:"max_items"`
	IsEnabled    bool      `json:"is_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Product is the canonical catalog row offers and pages hang off.
// Attributes carries opaque structured data such as the marketplace item id
// and the mirrored image list.
type Product struct {
	ID            string                 `json:"id"`
	CanonicalName string                 `json:"canonical_name"`
	Category      string                 `json:"category"`
	Attributes    map[string]interface{} `json:"attributes,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// Offer is one purchasable listing for a product. (Source, ExternalID) is
// globally unique and is the ingestion idempotency key.
type Offer struct {
	ID           string     `json:"id"`
	Source       string     `json:"source"`
	ExternalID   string     `json:"external_id"`
	ProductID    string     `json:"product_id"`
	PartnerID    *string    `json:"partner_id,omitempty"`
	Title        string     `json:"title,omitempty"`
	Price        *float64   `json:"price,omitempty"`
	Currency     string     `json:"currency"`
	Availability string     `json:"availability,omitempty"`
	AffiliateURL string     `json:"affiliate_url"`
	ImageURL     string     `json:"image_url,omitempty"`
	LastUpdated  *time.Time `json:"last_updated,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// PriceHistory is append-only; a row is written only when the observed price
// differs from the stored one.
type PriceHistory struct {
	ID        string    `json:"id"`
	OfferID   string    `json:"offer_id"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// OfferIngestEvent is the append-only audit trail of every ingestion attempt,
// written regardless of whether anything changed.
type OfferIngestEvent struct {
	ID         string                 `json:"id"`
	OfferID    string                 `json:"offer_id"`
	PartnerID  *string                `json:"partner_id,omitempty"`
	Source     string                 `json:"source"`
	ExternalID string                 `json:"external_id"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

type Partner struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	IsEnabled bool      `json:"is_enabled"`
	HasAPI    bool      `json:"has_api"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AffiliateAccount struct {
	ID              string    `json:"id"`
	PartnerID       string    `json:"partner_id"`
	TrackingID      string    `json:"tracking_id"`
	DeepLinkPattern string    `json:"deep_link_pattern,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Page struct {
	ID           string     `json:"id"`
	Slug         string     `json:"slug"`
	ProductID    *string    `json:"product_id,omitempty"`
	Type         string     `json:"type"`
	Title        string     `json:"title"`
	Excerpt      string     `json:"excerpt,omitempty"`
	ContentMd    string     `json:"content_md"`
	HeroImageURL string     `json:"hero_image_url,omitempty"`
	Status       string     `json:"status"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Run is one pipeline invocation, manual or scheduled.
type Run struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Status      string     `json:"status"`
	ItemsSeen   int        `json:"items_seen"`
	ItemsPosted int        `json:"items_posted"`
	Message     string     `json:"message,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// StepLog is one audit entry inside a run; the primary operational
// debugging surface.
type StepLog struct {
	ID        string                 `json:"id"`
	RunID     string                 `json:"run_id,omitempty"`
	Step      string                 `json:"step"`
	Status    string                 `json:"status"`
	Input     map[string]interface{} `json:"input,omitempty"`
	Output    map[string]interface{} `json:"output,omitempty"`
	Message   string                 `json:"message,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// GenerationLog records one content-generation attempt per created page.
type GenerationLog struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id,omitempty"`
	PageID       string    `json:"page_id,omitempty"`
	CategoryPath string    `json:"category_path"`
	Keyword      string    `json:"keyword"`
	ProductName  string    `json:"product_name"`
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
	UsedAI       bool      `json:"used_ai"`
	FallbackUsed bool      `json:"fallback_used"`
	PromptHash   string    `json:"prompt_hash"`
	PromptChars  int       `json:"prompt_chars"`
	OutputChars  int       `json:"output_chars"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ClickEvent rows are written by the redirect endpoint (external to this
// service) and read here for scheduling weights and analytics.
type ClickEvent struct {
	ID        string    `json:"id"`
	PageID    *string   `json:"page_id,omitempty"`
	OfferID   *string   `json:"offer_id,omitempty"`
	IPHash    string    `json:"ip_hash,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OfferIngestItem is one normalized provider observation handed to the
// ingestion reconciler.
type OfferIngestItem struct {
	Source          string                 `json:"source"`
	ExternalID      string                 `json:"external_id"`
	ProductID       string                 `json:"product_id,omitempty"`
	Title           string                 `json:"title,omitempty"`
	Price           *float64               `json:"price,omitempty"`
	Currency        string                 `json:"currency,omitempty"`
	Availability    string                 `json:"availability,omitempty"`
	AffiliateURL    string                 `json:"affiliate_url"`
	ImageURL        string                 `json:"image_url,omitempty"`
	ProductName     string                 `json:"product_name"`
	ProductCategory string                 `json:"product_category,omitempty"`
	PageSlug        string                 `json:"page_slug,omitempty"`
	PartnerName     string                 `json:"partner_name,omitempty"`
	Payload         map[string]interface{} `json:"payload,omitempty"`
}

// IngestResult aggregates counters for a reconciled batch.
type IngestResult struct {
	Processed     int `json:"processed"`
	CreatedOffers int `json:"created_offers"`
	UpdatedOffers int `json:"updated_offers"`
	PriceUpdates  int `json:"price_updates"`
}

func (r *IngestResult) Add(other IngestResult) {
	r.Processed += other.Processed
	r.CreatedOffers += other.CreatedOffers
	r.UpdatedOffers += other.UpdatedOffers
	r.PriceUpdates += other.PriceUpdates
}

// Event is the kafka envelope shared by producer and consumer.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
