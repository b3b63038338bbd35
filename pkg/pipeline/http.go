package pipeline

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/smartreview/platform/pkg/analytics"
	"github.com/smartreview/platform/pkg/catalog"
	"github.com/smartreview/platform/pkg/common/logger"
	"github.com/smartreview/platform/pkg/common/models"
	"github.com/smartreview/platform/pkg/observability/metrics"
	"github.com/smartreview/platform/pkg/ranking"
)

// HTTPHandler exposes the pipeline over REST for the admin surface and the
// scheduled triggers.
type HTTPHandler struct {
	service   *Service
	repo      *catalog.Repository
	analytics *analytics.Repository
	maxBody   int64
}

func NewHTTPHandler(service *Service, repo *catalog.Repository, clickRepo *analytics.Repository, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, repo: repo, analytics: clickRepo, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/runs", h.handleTriggerRun).Methods(http.MethodPost)
	router.HandleFunc("/runs/{id}", h.handleRunStatus).Methods(http.MethodGet)
	router.HandleFunc("/autopost", h.handleAutopost).Methods(http.MethodPost)
	router.HandleFunc("/backcheck", h.handleBackcheck).Methods(http.MethodPost)
	router.HandleFunc("/niches", h.handleListNiches).Methods(http.MethodGet)
	router.HandleFunc("/niches/bootstrap", h.handleBootstrapNiches).Methods(http.MethodPost)
	router.HandleFunc("/offers/ingest", h.handleIngestOffers).Methods(http.MethodPost)
	router.HandleFunc("/products/{id}/offers/ranked", h.handleRankedOffers).Methods(http.MethodGet)
	router.HandleFunc("/clicks", h.handleRecordClick).Methods(http.MethodPost)
	router.HandleFunc("/analytics/clicks/daily", h.handleDailyClicks).Methods(http.MethodGet)
	router.HandleFunc("/analytics/pages/top", h.handleTopPages).Methods(http.MethodGet)
}

func (h *HTTPHandler) limitBody(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (h *HTTPHandler) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	h.limitBody(w, r)

	var req struct {
		CategoryPaths    []string `json:"category_paths"`
		MaxItemsPerNiche int      `json:"max_items_per_niche"`
		MaxTotalPosts    int      `json:"max_total_posts"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	run, err := h.repo.CreateRun(r.Context(), models.SourceAmazon, "manual trigger")
	if err != nil {
		logger.Log.WithError(err).Error("failed to create run")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	result, err := h.service.Run(r.Context(), RunOptions{
		RunID:                 run.ID,
		TargetCategoryPaths:   req.CategoryPaths,
		ForceMaxItemsPerNiche: req.MaxItemsPerNiche,
		MaxTotalPosts:         req.MaxTotalPosts,
	})
	status := models.RunStatusSuccess
	message := "pipeline completed"
	if err != nil {
		status = models.RunStatusFailed
		message = err.Error()
	}
	if finishErr := h.repo.FinishRun(r.Context(), run.ID, status, result.AIAttempts, result.CreatedPages, message); finishErr != nil {
		logger.Log.WithError(finishErr).WithField("runId", run.ID).Warn("failed to finalize run")
	}
	if err != nil {
		if errors.Is(err, ErrTrackingTagMissing) {
			http.Error(w, err.Error(), http.StatusPreconditionFailed)
			return
		}
		logger.Log.WithError(err).Error("pipeline run failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	metrics.ObservePipelineRun(result.CreatedPages, result.AIAttempts, result.AIFailures)
	metrics.ObserveIngest(result.CreatedOffers, result.UpdatedOffers, 0)
	writeJSON(w, http.StatusOK, map[string]interface{}{"run_id": run.ID, "result": result})
}

func (h *HTTPHandler) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, err := h.repo.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch run")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	steps, err := h.repo.ListStepLogs(r.Context(), id, 500)
	if err != nil {
		logger.Log.WithError(err).Error("failed to fetch step logs")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"run": run, "steps": steps})
}

func (h *HTTPHandler) handleAutopost(w http.ResponseWriter, r *http.Request) {
	run, result, err := h.service.Autopost(r.Context())
	if err != nil {
		if errors.Is(err, ErrTrackingTagMissing) {
			http.Error(w, err.Error(), http.StatusPreconditionFailed)
			return
		}
		logger.Log.WithError(err).Error("autopost failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	metrics.ObservePipelineRun(result.CreatedPages, result.AIAttempts, result.AIFailures)
	writeJSON(w, http.StatusOK, map[string]interface{}{"run_id": run.ID, "result": result})
}

func (h *HTTPHandler) handleBackcheck(w http.ResponseWriter, r *http.Request) {
	h.limitBody(w, r)

	var req struct {
		Limit int `json:"limit"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	run, err := h.repo.CreateRun(r.Context(), models.SourceAmazon, "price backcheck")
	if err != nil {
		logger.Log.WithError(err).Error("failed to create run")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	result, err := h.service.Backcheck(r.Context(), run.ID, req.Limit)
	status := models.RunStatusSuccess
	message := "backcheck completed"
	if err != nil {
		status = models.RunStatusFailed
		message = err.Error()
	}
	if finishErr := h.repo.FinishRun(r.Context(), run.ID, status, result.Scanned, result.PriceUpdates, message); finishErr != nil {
		logger.Log.WithError(finishErr).WithField("runId", run.ID).Warn("failed to finalize run")
	}
	if err != nil {
		logger.Log.WithError(err).Error("backcheck failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"run_id": run.ID, "result": result})
}

func (h *HTTPHandler) handleListNiches(w http.ResponseWriter, r *http.Request) {
	niches, err := h.repo.ListNiches(r.Context(), models.SourceAmazon)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list niches")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, niches)
}

func (h *HTTPHandler) handleBootstrapNiches(w http.ResponseWriter, r *http.Request) {
	created, err := h.service.EnsureDefaultNiches(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("failed to bootstrap niches")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"created": created})
}

func (h *HTTPHandler) handleIngestOffers(w http.ResponseWriter, r *http.Request) {
	h.limitBody(w, r)

	var req struct {
		Items []models.OfferIngestItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid offer ingest payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, "items is required", http.StatusBadRequest)
		return
	}

	result, err := h.service.reconciler.Ingest(r.Context(), req.Items)
	if err != nil {
		logger.Log.WithError(err).Error("offer ingest failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	metrics.ObserveIngest(result.CreatedOffers, result.UpdatedOffers, result.PriceUpdates)
	writeJSON(w, http.StatusAccepted, result)
}

func (h *HTTPHandler) handleRankedOffers(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]

	offers, err := h.repo.ListOffersByProduct(r.Context(), productID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list offers")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	partners := map[string]models.Partner{}
	for _, offer := range offers {
		if offer.PartnerID == nil {
			continue
		}
		if _, ok := partners[*offer.PartnerID]; ok {
			continue
		}
		partner, err := h.repo.GetPartner(r.Context(), *offer.PartnerID)
		if err != nil {
			continue
		}
		partners[partner.ID] = partner
	}

	writeJSON(w, http.StatusOK, ranking.Rank(offers, partners, time.Now()))
}

func (h *HTTPHandler) handleRecordClick(w http.ResponseWriter, r *http.Request) {
	h.limitBody(w, r)

	var req struct {
		PageID  string `json:"page_id"`
		OfferID string `json:"offer_id"`
		IPHash  string `json:"ip_hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PageID == "" && req.OfferID == "" {
		http.Error(w, "page_id or offer_id is required", http.StatusBadRequest)
		return
	}

	event := models.ClickEvent{IPHash: req.IPHash}
	if req.PageID != "" {
		event.PageID = &req.PageID
	}
	if req.OfferID != "" {
		event.OfferID = &req.OfferID
	}
	if err := h.repo.InsertClickEvent(r.Context(), event); err != nil {
		logger.Log.WithError(err).Error("failed to record click")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	metrics.ObserveClick()
	w.WriteHeader(http.StatusAccepted)
}

func (h *HTTPHandler) handleDailyClicks(w http.ResponseWriter, r *http.Request) {
	since := sinceParam(r, 30)
	summary, err := h.analytics.DailySummary(r.Context(), since)
	if err != nil {
		logger.Log.WithError(err).Error("failed to aggregate clicks")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *HTTPHandler) handleTopPages(w http.ResponseWriter, r *http.Request) {
	since := sinceParam(r, 30)
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	pages, err := h.analytics.TopPages(r.Context(), since, limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to aggregate page clicks")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

func sinceParam(r *http.Request, defaultDays int) time.Time {
	days := defaultDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}
	return time.Now().Add(-time.Duration(days) * 24 * time.Hour)
}
