package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/smartreview/platform/pkg/catalog"
	"github.com/smartreview/platform/pkg/common/database"
	"github.com/smartreview/platform/pkg/common/kafka"
	"github.com/smartreview/platform/pkg/common/logger"
	"github.com/smartreview/platform/pkg/common/models"
	"github.com/smartreview/platform/pkg/ingest"
)

// The worker drains partner offer batches from kafka and folds them into the
// catalog through the same reconciler the HTTP surface uses.
func main() {
	logger.Init()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}
	if err := catalog.Migrate(db); err != nil {
		logger.Log.WithError(err).Fatal("Failed to run migrations")
	}
	repo := catalog.NewRepository(db)

	producer := kafka.NewProducer("offer-events")
	defer producer.Close()

	reconciler := ingest.NewReconciler(repo, producer)

	consumer := kafka.NewConsumer("offer-ingest", "ingest-worker")
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("Shutting down Ingest Worker...")
		cancel()
	}()

	logger.Log.Info("Ingest Worker started")

	err = consumer.Consume(ctx, func(ctx context.Context, event models.Event) error {
		items, err := decodeItems(event)
		if err != nil {
			logger.Log.WithError(err).WithField("event_id", event.ID).Error("Dropping malformed offer batch")
			return nil
		}
		if len(items) == 0 {
			return nil
		}

		result, err := reconciler.Ingest(ctx, items)
		if err != nil {
			return err
		}

		logger.Log.WithFields(map[string]interface{}{
			"event_id":       event.ID,
			"processed":      result.Processed,
			"created_offers": result.CreatedOffers,
			"updated_offers": result.UpdatedOffers,
			"price_updates":  result.PriceUpdates,
		}).Info("Offer batch reconciled")
		return nil
	})
	if err != nil && err != context.Canceled {
		logger.Log.WithError(err).Error("Consumer stopped")
	}

	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Error("Failed to close database")
	}
	logger.Log.Info("Ingest Worker stopped")
}

// decodeItems round-trips the event payload through JSON because kafka events
// carry untyped maps.
func decodeItems(event models.Event) ([]models.OfferIngestItem, error) {
	raw, ok := event.Data["items"]
	if !ok {
		return nil, fmt.Errorf("event %s has no items", event.ID)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var items []models.OfferIngestItem
	if err := json.Unmarshal(encoded, &items); err != nil {
		return nil, err
	}
	return items, nil
}
