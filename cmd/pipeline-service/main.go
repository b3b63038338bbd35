package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/smartreview/platform/pkg/analytics"
	"github.com/smartreview/platform/pkg/cache"
	"github.com/smartreview/platform/pkg/catalog"
	"github.com/smartreview/platform/pkg/common/config"
	"github.com/smartreview/platform/pkg/common/database"
	"github.com/smartreview/platform/pkg/common/kafka"
	"github.com/smartreview/platform/pkg/common/logger"
	"github.com/smartreview/platform/pkg/common/middleware"
	"github.com/smartreview/platform/pkg/content"
	"github.com/smartreview/platform/pkg/discovery"
	"github.com/smartreview/platform/pkg/extractor"
	"github.com/smartreview/platform/pkg/ingest"
	"github.com/smartreview/platform/pkg/media"
	"github.com/smartreview/platform/pkg/observability/metrics"
	"github.com/smartreview/platform/pkg/pipeline"
	"github.com/smartreview/platform/pkg/scheduler"
	"github.com/smartreview/platform/pkg/taxonomy"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}
	if err := catalog.Migrate(db); err != nil {
		logger.Log.WithError(err).Fatal("Failed to run migrations")
	}
	repo := catalog.NewRepository(db)

	store := cache.NewStore(db, database.GetRedis())

	var mirror *media.Mirrorer
	if cfg.MediaBucket != "" {
		uploader, err := media.NewGCSUploader(context.Background(), cfg.MediaBucket, cfg.MediaPublicBaseURL)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to init image mirror bucket")
		}
		mirror = media.NewMirrorer(uploader, cfg.MediaKeyPrefix, cfg.MaxImageBytes)
	} else {
		logger.Log.Warn("MEDIA_BUCKET not set, serving source image URLs directly")
	}

	cat, err := taxonomy.Load(cfg.TaxonomyPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load taxonomy")
	}

	producer := kafka.NewProducer("offer-events")
	defer producer.Close()

	reconciler := ingest.NewReconciler(repo, producer)
	engine := discovery.NewEngine(store, cfg.MarketplaceBaseURL, cfg.ScrapeUserAgent, cfg.ScrapeTimeout, cfg.SearchCacheTTL)
	extract := extractor.New(store, mirror, cfg.MarketplaceBaseURL, cfg.ScrapeUserAgent, cfg.ScrapeTimeout, cfg.ProductCacheTTL)
	generator := content.NewGenerator(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModelName, cfg.AITemperature)
	clickRepo := analytics.NewRepository(db)

	service := pipeline.NewService(cfg, repo, reconciler, engine, extract, generator, clickRepo, scheduler.New(), cat)

	if created, err := service.EnsureDefaultNiches(context.Background()); err != nil {
		logger.Log.WithError(err).Error("Failed to bootstrap niches")
	} else if created > 0 {
		logger.Log.WithField("niches", created).Info("Seeded default niches")
	}

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.AdminToken(cfg.AdminAPIToken))
	pipeline.NewHTTPHandler(service, repo, clickRepo, cfg.MaxRequestBody).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Pipeline Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Pipeline Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Error("Failed to close database")
	}

	logger.Log.Info("Pipeline Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
