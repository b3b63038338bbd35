package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smartreview/platform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("catalog: not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the catalog tables. Used by service bootstrap and tests.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&nicheModel{},
		&productModel{},
		&offerModel{},
		&priceHistoryModel{},
		&offerIngestEventModel{},
		&partnerModel{},
		&affiliateAccountModel{},
		&pageModel{},
		&runModel{},
		&stepLogModel{},
		&generationLogModel{},
		&clickEventModel{},
	)
}

type nicheModel struct {
	ID           string    `gorm:"primaryKey;column:id"`
	Source       string    `gorm:"column:source;index:idx_niche_source"`
	CategoryPath string    `gorm:"column:category_path"`
	Keywords     string    `gorm:"column:keywords"`
	Priority     int       `gorm:"column:priority"`
	MaxItems     int       `gorm:"column:max_items"`
	IsEnabled    bool      `gorm:"column:is_enabled"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (nicheModel) TableName() string { return "automation_niches" }

type productModel struct {
	ID            string         `gorm:"primaryKey;column:id"`
	CanonicalName string         `gorm:"column:canonical_name;index:idx_product_name_category"`
	Category      string         `gorm:"column:category;index:idx_product_name_category"`
	Attributes    datatypes.JSON `gorm:"column:attributes"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
	UpdatedAt     time.Time      `gorm:"column:updated_at"`
}

func (productModel) TableName() string { return "products" }

type offerModel struct {
	ID           string     `gorm:"primaryKey;column:id"`
	Source       string     `gorm:"column:source;uniqueIndex:idx_offer_source_external"`
	ExternalID   string     `gorm:"column:external_id;uniqueIndex:idx_offer_source_external"`
	ProductID    string     `gorm:"column:product_id;index"`
	PartnerID    *string    `gorm:"column:partner_id"`
	Title        string     `gorm:"column:title"`
	Price        *float64   `gorm:"column:price"`
	Currency     string     `gorm:"column:currency"`
	Availability string     `gorm:"column:availability"`
	AffiliateURL string     `gorm:"column:affiliate_url"`
	ImageURL     string     `gorm:"column:image_url"`
	LastUpdated  *time.Time `gorm:"column:last_updated"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (offerModel) TableName() string { return "offers" }

type priceHistoryModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	OfferID   string    `gorm:"column:offer_id;index"`
	Price     float64   `gorm:"column:price"`
	Currency  string    `gorm:"column:currency"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (priceHistoryModel) TableName() string { return "price_history" }

type offerIngestEventModel struct {
	ID         string         `gorm:"primaryKey;column:id"`
	OfferID    string         `gorm:"column:offer_id;index"`
	PartnerID  *string        `gorm:"column:partner_id"`
	Source     string         `gorm:"column:source"`
	ExternalID string         `gorm:"column:external_id"`
	Payload    datatypes.JSON `gorm:"column:payload"`
	CreatedAt  time.Time      `gorm:"column:created_at"`
}

func (offerIngestEventModel) TableName() string { return "offer_ingest_events" }

type partnerModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	Name      string    `gorm:"column:name"`
	Source    string    `gorm:"column:source;index"`
	IsEnabled bool      `gorm:"column:is_enabled"`
	HasAPI    bool      `gorm:"column:has_api"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (partnerModel) TableName() string { return "partners" }

type affiliateAccountModel struct {
	ID              string    `gorm:"primaryKey;column:id"`
	PartnerID       string    `gorm:"column:partner_id;index"`
	TrackingID      string    `gorm:"column:tracking_id"`
	DeepLinkPattern string    `gorm:"column:deep_link_pattern"`
	IsActive        bool      `gorm:"column:is_active"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (affiliateAccountModel) TableName() string { return "affiliate_accounts" }

type pageModel struct {
	ID           string     `gorm:"primaryKey;column:id"`
	Slug         string     `gorm:"column:slug;uniqueIndex"`
	ProductID    *string    `gorm:"column:product_id;index"`
	Type         string     `gorm:"column:type"`
	Title        string     `gorm:"column:title"`
	Excerpt      string     `gorm:"column:excerpt"`
	ContentMd    string     `gorm:"column:content_md"`
	HeroImageURL string     `gorm:"column:hero_image_url"`
	Status       string     `gorm:"column:status;index"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (pageModel) TableName() string { return "pages" }

type runModel struct {
	ID          string     `gorm:"primaryKey;column:id"`
	Source      string     `gorm:"column:source"`
	Status      string     `gorm:"column:status"`
	ItemsSeen   int        `gorm:"column:items_seen"`
	ItemsPosted int        `gorm:"column:items_posted"`
	Message     string     `gorm:"column:message"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	FinishedAt  *time.Time `gorm:"column:finished_at"`
}

func (runModel) TableName() string { return "automation_runs" }

type stepLogModel struct {
	ID        string         `gorm:"primaryKey;column:id"`
	RunID     string         `gorm:"column:run_id;index"`
	Step      string         `gorm:"column:step"`
	Status    string         `gorm:"column:status"`
	Input     datatypes.JSON `gorm:"column:input"`
	Output    datatypes.JSON `gorm:"column:output"`
	Message   string         `gorm:"column:message"`
	CreatedAt time.Time      `gorm:"column:created_at"`
}

func (stepLogModel) TableName() string { return "automation_step_logs" }

type generationLogModel struct {
	ID           string    `gorm:"primaryKey;column:id"`
	RunID        string    `gorm:"column:run_id;index"`
	PageID       string    `gorm:"column:page_id"`
	CategoryPath string    `gorm:"column:category_path"`
	Keyword      string    `gorm:"column:keyword"`
	ProductName  string    `gorm:"column:product_name"`
	Model        string    `gorm:"column:model"`
	Provider     string    `gorm:"column:provider"`
	UsedAI       bool      `gorm:"column:used_ai"`
	FallbackUsed bool      `gorm:"column:fallback_used"`
	PromptHash   string    `gorm:"column:prompt_hash"`
	PromptChars  int       `gorm:"column:prompt_chars"`
	OutputChars  int       `gorm:"column:output_chars"`
	ErrorMessage string    `gorm:"column:error_message"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (generationLogModel) TableName() string { return "generation_logs" }

type clickEventModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	PageID    *string   `gorm:"column:page_id;index"`
	OfferID   *string   `gorm:"column:offer_id;index"`
	IPHash    string    `gorm:"column:ip_hash"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
}

func (clickEventModel) TableName() string { return "click_events" }

func toJSON(value map[string]interface{}) datatypes.JSON {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func fromJSON(raw datatypes.JSON) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// --- Niches ---

func (r *Repository) ListEnabledNiches(ctx context.Context, source string) ([]models.Niche, error) {
	var rows []nicheModel
	err := r.db.WithContext(ctx).
		Where("source = ? AND is_enabled = ?", source, true).
		Order("priority asc").
		Order("updated_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Niche, 0, len(rows))
	for _, row := range rows {
		out = append(out, nicheFromModel(row))
	}
	return out, nil
}

func (r *Repository) ListNiches(ctx context.Context, source string) ([]models.Niche, error) {
	var rows []nicheModel
	err := r.db.WithContext(ctx).
		Where("source = ?", source).
		Order("priority asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Niche, 0, len(rows))
	for _, row := range rows {
		out = append(out, nicheFromModel(row))
	}
	return out, nil
}

func (r *Repository) CountNiches(ctx context.Context, source string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&nicheModel{}).Where("source = ?", source).Count(&count).Error
	return count, err
}

func (r *Repository) CreateNiche(ctx context.Context, niche models.Niche) (models.Niche, error) {
	row := nicheModel{
		ID:           niche.ID,
		Source:       niche.Source,
		CategoryPath: niche.CategoryPath,
		Keywords:     niche.Keywords,
		Priority:     niche.Priority,
		MaxItems:     niche.MaxItems,
		IsEnabled:    niche.IsEnabled,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Niche{}, err
	}
	return nicheFromModel(row), nil
}

func nicheFromModel(row nicheModel) models.Niche {
	return models.Niche{
		ID:           row.ID,
		Source:       row.Source,
		CategoryPath: row.CategoryPath,
		Keywords:     row.Keywords,
		Priority:     row.Priority,
		MaxItems:     row.MaxItems,
		IsEnabled:    row.IsEnabled,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

// --- Products ---

func (r *Repository) GetProduct(ctx context.Context, id string) (models.Product, error) {
	var row productModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return models.Product{}, wrapNotFound(err)
	}
	return productFromModel(row), nil
}

func (r *Repository) FindProductByNameAndCategory(ctx context.Context, name, category string) (models.Product, error) {
	var row productModel
	err := r.db.WithContext(ctx).
		Where("canonical_name = ? AND category = ?", name, category).
		First(&row).Error
	if err != nil {
		return models.Product{}, wrapNotFound(err)
	}
	return productFromModel(row), nil
}

func (r *Repository) CreateProduct(ctx context.Context, product models.Product) (models.Product, error) {
	row := productModel{
		ID:            product.ID,
		CanonicalName: product.CanonicalName,
		Category:      product.Category,
		Attributes:    toJSON(product.Attributes),
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Product{}, err
	}
	return productFromModel(row), nil
}

// UpsertProduct creates or updates a product addressed by a deterministic id,
// so repeated runs land on the same row.
func (r *Repository) UpsertProduct(ctx context.Context, product models.Product) (models.Product, error) {
	var existing productModel
	err := r.db.WithContext(ctx).First(&existing, "id = ?", product.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.CreateProduct(ctx, product)
	}
	if err != nil {
		return models.Product{}, err
	}
	updates := map[string]interface{}{
		"canonical_name": product.CanonicalName,
		"category":       product.Category,
		"attributes":     toJSON(product.Attributes),
		"updated_at":     time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Model(&productModel{}).Where("id = ?", product.ID).Updates(updates).Error; err != nil {
		return models.Product{}, err
	}
	return r.GetProduct(ctx, product.ID)
}

// ProductsInCategory is a bounded scan used to collect already-known external
// ids before discovery.
func (r *Repository) ProductsInCategory(ctx context.Context, category string, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 1000
	}
	var rows []productModel
	err := r.db.WithContext(ctx).Where("category = ?", category).Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, productFromModel(row))
	}
	return out, nil
}

func productFromModel(row productModel) models.Product {
	return models.Product{
		ID:            row.ID,
		CanonicalName: row.CanonicalName,
		Category:      row.Category,
		Attributes:    fromJSON(row.Attributes),
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

// --- Offers ---

func (r *Repository) GetOfferByExternalID(ctx context.Context, source, externalID string) (models.Offer, error) {
	var row offerModel
	err := r.db.WithContext(ctx).
		Where("source = ? AND external_id = ?", source, externalID).
		First(&row).Error
	if err != nil {
		return models.Offer{}, wrapNotFound(err)
	}
	return offerFromModel(row), nil
}

func (r *Repository) CreateOffer(ctx context.Context, offer models.Offer) (models.Offer, error) {
	row := offerToModel(offer)
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	row.CreatedAt = time.Now().UTC()
	row.UpdatedAt = row.CreatedAt
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Offer{}, err
	}
	return offerFromModel(row), nil
}

func (r *Repository) UpdateOffer(ctx context.Context, offer models.Offer) (models.Offer, error) {
	updates := map[string]interface{}{
		"product_id":    offer.ProductID,
		"partner_id":    offer.PartnerID,
		"title":         offer.Title,
		"price":         offer.Price,
		"currency":      offer.Currency,
		"availability":  offer.Availability,
		"affiliate_url": offer.AffiliateURL,
		"image_url":     offer.ImageURL,
		"last_updated":  offer.LastUpdated,
		"updated_at":    time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Model(&offerModel{}).Where("id = ?", offer.ID).Updates(updates).Error
	if err != nil {
		return models.Offer{}, err
	}
	var row offerModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", offer.ID).Error; err != nil {
		return models.Offer{}, wrapNotFound(err)
	}
	return offerFromModel(row), nil
}

// ListOffersByProduct returns a product's displayable offers. Offers tied to
// a disabled partner are hidden from ranking and display but never deleted.
func (r *Repository) ListOffersByProduct(ctx context.Context, productID string) ([]models.Offer, error) {
	var rows []offerModel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Where("partner_id IS NULL OR partner_id IN (?)", r.db.Model(&partnerModel{}).
			Select("id").
			Where("is_enabled = ?", true)).
		Order("updated_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Offer, 0, len(rows))
	for _, row := range rows {
		out = append(out, offerFromModel(row))
	}
	return out, nil
}

// ListPublishedSourceOffers returns priced offers of one source whose product
// has a published page, oldest-updated first. Used by the price backcheck.
func (r *Repository) ListPublishedSourceOffers(ctx context.Context, source string, limit int) ([]models.Offer, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []offerModel
	err := r.db.WithContext(ctx).
		Where("source = ? AND price IS NOT NULL", source).
		Where("product_id IN (?)", r.db.Model(&pageModel{}).
			Select("product_id").
			Where("status = ? AND product_id IS NOT NULL", models.PageStatusPublished)).
		Order("updated_at asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Offer, 0, len(rows))
	for _, row := range rows {
		out = append(out, offerFromModel(row))
	}
	return out, nil
}

func offerToModel(offer models.Offer) offerModel {
	return offerModel{
		ID:           offer.ID,
		Source:       offer.Source,
		ExternalID:   offer.ExternalID,
		ProductID:    offer.ProductID,
		PartnerID:    offer.PartnerID,
		Title:        offer.Title,
		Price:        offer.Price,
		Currency:     offer.Currency,
		Availability: offer.Availability,
		AffiliateURL: offer.AffiliateURL,
		ImageURL:     offer.ImageURL,
		LastUpdated:  offer.LastUpdated,
	}
}

func offerFromModel(row offerModel) models.Offer {
	return models.Offer{
		ID:           row.ID,
		Source:       row.Source,
		ExternalID:   row.ExternalID,
		ProductID:    row.ProductID,
		PartnerID:    row.PartnerID,
		Title:        row.Title,
		Price:        row.Price,
		Currency:     row.Currency,
		Availability: row.Availability,
		AffiliateURL: row.AffiliateURL,
		ImageURL:     row.ImageURL,
		LastUpdated:  row.LastUpdated,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

// --- Price history / ingest events ---

func (r *Repository) InsertPriceHistory(ctx context.Context, offerID string, price float64, currency string) error {
	row := priceHistoryModel{
		ID:        uuid.New().String(),
		OfferID:   offerID,
		Price:     price,
		Currency:  currency,
		CreatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) CountPriceHistory(ctx context.Context, offerID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&priceHistoryModel{}).Where("offer_id = ?", offerID).Count(&count).Error
	return count, err
}

func (r *Repository) InsertOfferIngestEvent(ctx context.Context, event models.OfferIngestEvent) error {
	row := offerIngestEventModel{
		ID:         uuid.New().String(),
		OfferID:    event.OfferID,
		PartnerID:  event.PartnerID,
		Source:     event.Source,
		ExternalID: event.ExternalID,
		Payload:    toJSON(event.Payload),
		CreatedAt:  time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) CountOfferIngestEvents(ctx context.Context, offerID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&offerIngestEventModel{}).Where("offer_id = ?", offerID).Count(&count).Error
	return count, err
}

// --- Partners / affiliate accounts ---

func (r *Repository) FindPartner(ctx context.Context, source, name string) (models.Partner, error) {
	var row partnerModel
	err := r.db.WithContext(ctx).
		Where("source = ? AND name = ?", source, name).
		First(&row).Error
	if err != nil {
		return models.Partner{}, wrapNotFound(err)
	}
	return partnerFromModel(row), nil
}

// FirstEnabledPartner returns the oldest enabled partner registered for a
// source. Disabled partners never attract new offers.
func (r *Repository) FirstEnabledPartner(ctx context.Context, source string) (models.Partner, error) {
	var row partnerModel
	err := r.db.WithContext(ctx).
		Where("source = ? AND is_enabled = ?", source, true).
		Order("created_at asc").
		First(&row).Error
	if err != nil {
		return models.Partner{}, wrapNotFound(err)
	}
	return partnerFromModel(row), nil
}

func (r *Repository) GetPartner(ctx context.Context, id string) (models.Partner, error) {
	var row partnerModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return models.Partner{}, wrapNotFound(err)
	}
	return partnerFromModel(row), nil
}

func (r *Repository) CreatePartner(ctx context.Context, partner models.Partner) (models.Partner, error) {
	row := partnerModel{
		ID:        partner.ID,
		Name:      partner.Name,
		Source:    partner.Source,
		IsEnabled: partner.IsEnabled,
		HasAPI:    partner.HasAPI,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Partner{}, err
	}
	return partnerFromModel(row), nil
}

func (r *Repository) CreateAffiliateAccount(ctx context.Context, account models.AffiliateAccount) (models.AffiliateAccount, error) {
	row := affiliateAccountModel{
		ID:              account.ID,
		PartnerID:       account.PartnerID,
		TrackingID:      account.TrackingID,
		DeepLinkPattern: account.DeepLinkPattern,
		IsActive:        account.IsActive,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.AffiliateAccount{}, err
	}
	account.ID = row.ID
	return account, nil
}

// ActiveAffiliateAccount resolves the most recently updated active account
// whose partner belongs to the source and is enabled.
func (r *Repository) ActiveAffiliateAccount(ctx context.Context, source string) (models.AffiliateAccount, error) {
	var row affiliateAccountModel
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("partner_id IN (?)", r.db.Model(&partnerModel{}).
			Select("id").
			Where("source = ? AND is_enabled = ?", source, true)).
		Order("updated_at desc").
		First(&row).Error
	if err != nil {
		return models.AffiliateAccount{}, wrapNotFound(err)
	}
	return models.AffiliateAccount{
		ID:              row.ID,
		PartnerID:       row.PartnerID,
		TrackingID:      row.TrackingID,
		DeepLinkPattern: row.DeepLinkPattern,
		IsActive:        row.IsActive,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

// ActiveAccountForPartner resolves the most recently updated active account
// tied to a single partner.
func (r *Repository) ActiveAccountForPartner(ctx context.Context, partnerID string) (models.AffiliateAccount, error) {
	var row affiliateAccountModel
	err := r.db.WithContext(ctx).
		Where("partner_id = ? AND is_active = ?", partnerID, true).
		Order("updated_at desc").
		First(&row).Error
	if err != nil {
		return models.AffiliateAccount{}, wrapNotFound(err)
	}
	return models.AffiliateAccount{
		ID:              row.ID,
		PartnerID:       row.PartnerID,
		TrackingID:      row.TrackingID,
		DeepLinkPattern: row.DeepLinkPattern,
		IsActive:        row.IsActive,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func partnerFromModel(row partnerModel) models.Partner {
	return models.Partner{
		ID:        row.ID,
		Name:      row.Name,
		Source:    row.Source,
		IsEnabled: row.IsEnabled,
		HasAPI:    row.HasAPI,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

// --- Pages ---

func (r *Repository) GetPageBySlug(ctx context.Context, slug string) (models.Page, error) {
	var row pageModel
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&row).Error; err != nil {
		return models.Page{}, wrapNotFound(err)
	}
	return pageFromModel(row), nil
}

func (r *Repository) FindPageByProduct(ctx context.Context, productID string) (models.Page, error) {
	var row pageModel
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&row).Error
	if err != nil {
		return models.Page{}, wrapNotFound(err)
	}
	return pageFromModel(row), nil
}

func (r *Repository) CreatePage(ctx context.Context, page models.Page) (models.Page, error) {
	row := pageToModel(page)
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	row.CreatedAt = time.Now().UTC()
	row.UpdatedAt = row.CreatedAt
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Page{}, err
	}
	return pageFromModel(row), nil
}

func (r *Repository) UpdatePage(ctx context.Context, page models.Page) (models.Page, error) {
	updates := map[string]interface{}{
		"product_id":     page.ProductID,
		"type":           page.Type,
		"title":          page.Title,
		"excerpt":        page.Excerpt,
		"content_md":     page.ContentMd,
		"hero_image_url": page.HeroImageURL,
		"status":         page.Status,
		"published_at":   page.PublishedAt,
		"updated_at":     time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Model(&pageModel{}).Where("id = ?", page.ID).Updates(updates).Error
	if err != nil {
		return models.Page{}, err
	}
	var row pageModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", page.ID).Error; err != nil {
		return models.Page{}, wrapNotFound(err)
	}
	return pageFromModel(row), nil
}

func (r *Repository) LinkPageProduct(ctx context.Context, pageID, productID string) error {
	return r.db.WithContext(ctx).Model(&pageModel{}).
		Where("id = ?", pageID).
		Updates(map[string]interface{}{"product_id": productID, "updated_at": time.Now().UTC()}).Error
}

// RecentReviewPages returns review pages created since the cutoff whose
// product category equals the path or lives under it. Feeds the
// near-duplicate title guard.
func (r *Repository) RecentReviewPages(ctx context.Context, categoryPath string, cutoff time.Time, limit int) ([]models.Page, error) {
	if limit <= 0 {
		limit = 300
	}
	prefix := strings.TrimSuffix(categoryPath, "/") + "/%"
	var rows []pageModel
	err := r.db.WithContext(ctx).
		Where("type = ? AND created_at >= ?", models.PageTypeReview, cutoff).
		Where("product_id IN (?)", r.db.Model(&productModel{}).
			Select("id").
			Where("category = ? OR category LIKE ?", categoryPath, prefix)).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Page, 0, len(rows))
	for _, row := range rows {
		out = append(out, pageFromModel(row))
	}
	return out, nil
}

func pageToModel(page models.Page) pageModel {
	return pageModel{
		ID:           page.ID,
		Slug:         page.Slug,
		ProductID:    page.ProductID,
		Type:         page.Type,
		Title:        page.Title,
		Excerpt:      page.Excerpt,
		ContentMd:    page.ContentMd,
		HeroImageURL: page.HeroImageURL,
		Status:       page.Status,
		PublishedAt:  page.PublishedAt,
	}
}

func pageFromModel(row pageModel) models.Page {
	return models.Page{
		ID:           row.ID,
		Slug:         row.Slug,
		ProductID:    row.ProductID,
		Type:         row.Type,
		Title:        row.Title,
		Excerpt:      row.Excerpt,
		ContentMd:    row.ContentMd,
		HeroImageURL: row.HeroImageURL,
		Status:       row.Status,
		PublishedAt:  row.PublishedAt,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

// --- Runs / step logs / generation logs ---

func (r *Repository) CreateRun(ctx context.Context, source, message string) (models.Run, error) {
	row := runModel{
		ID:        uuid.New().String(),
		Source:    source,
		Status:    models.RunStatusQueued,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Run{}, err
	}
	return runFromModel(row), nil
}

func (r *Repository) FinishRun(ctx context.Context, runID, status string, itemsSeen, itemsPosted int, message string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", runID).Updates(map[string]interface{}{
		"status":       status,
		"items_seen":   itemsSeen,
		"items_posted": itemsPosted,
		"message":      message,
		"finished_at":  &now,
	}).Error
}

func (r *Repository) GetRun(ctx context.Context, runID string) (models.Run, error) {
	var row runModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", runID).Error; err != nil {
		return models.Run{}, wrapNotFound(err)
	}
	return runFromModel(row), nil
}

func runFromModel(row runModel) models.Run {
	return models.Run{
		ID:          row.ID,
		Source:      row.Source,
		Status:      row.Status,
		ItemsSeen:   row.ItemsSeen,
		ItemsPosted: row.ItemsPosted,
		Message:     row.Message,
		CreatedAt:   row.CreatedAt,
		FinishedAt:  row.FinishedAt,
	}
}

func (r *Repository) InsertStepLog(ctx context.Context, entry models.StepLog) error {
	row := stepLogModel{
		ID:        uuid.New().String(),
		RunID:     entry.RunID,
		Step:      entry.Step,
		Status:    entry.Status,
		Input:     toJSON(entry.Input),
		Output:    toJSON(entry.Output),
		Message:   entry.Message,
		CreatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) ListStepLogs(ctx context.Context, runID string, limit int) ([]models.StepLog, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []stepLogModel
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.StepLog, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.StepLog{
			ID:        row.ID,
			RunID:     row.RunID,
			Step:      row.Step,
			Status:    row.Status,
			Input:     fromJSON(row.Input),
			Output:    fromJSON(row.Output),
			Message:   row.Message,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

func (r *Repository) InsertGenerationLog(ctx context.Context, entry models.GenerationLog) error {
	row := generationLogModel{
		ID:           uuid.New().String(),
		RunID:        entry.RunID,
		PageID:       entry.PageID,
		CategoryPath: entry.CategoryPath,
		Keyword:      entry.Keyword,
		ProductName:  entry.ProductName,
		Model:        entry.Model,
		Provider:     entry.Provider,
		UsedAI:       entry.UsedAI,
		FallbackUsed: entry.FallbackUsed,
		PromptHash:   entry.PromptHash,
		PromptChars:  entry.PromptChars,
		OutputChars:  entry.OutputChars,
		ErrorMessage: entry.ErrorMessage,
		CreatedAt:    time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// --- Click events ---

func (r *Repository) InsertClickEvent(ctx context.Context, event models.ClickEvent) error {
	row := clickEventModel{
		ID:        uuid.New().String(),
		PageID:    event.PageID,
		OfferID:   event.OfferID,
		IPHash:    event.IPHash,
		CreatedAt: time.Now().UTC(),
	}
	if event.ID != "" {
		row.ID = event.ID
	}
	if !event.CreatedAt.IsZero() {
		row.CreatedAt = event.CreatedAt
	}
	return r.db.WithContext(ctx).Create(&row).Error
}
