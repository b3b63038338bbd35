package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	pagesCreated   atomic.Int64
	offersCreated  atomic.Int64
	offersUpdated  atomic.Int64
	priceUpdates   atomic.Int64
	aiAttempts     atomic.Int64
	aiFailures     atomic.Int64
	clicksRecorded atomic.Int64
)

func ObservePipelineRun(createdPages, aiAttempted, aiFailed int) {
	pagesCreated.Add(int64(createdPages))
	aiAttempts.Add(int64(aiAttempted))
	aiFailures.Add(int64(aiFailed))
}

func ObserveIngest(created, updated, prices int) {
	offersCreated.Add(int64(created))
	offersUpdated.Add(int64(updated))
	priceUpdates.Add(int64(prices))
}

func ObserveClick() {
	clicksRecorded.Add(1)
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP smartreview_pipeline_pages_created_total Review pages created since process start.\n")
	fmt.Fprintf(w, "# TYPE smartreview_pipeline_pages_created_total counter\n")
	fmt.Fprintf(w, "smartreview_pipeline_pages_created_total %d\n", pagesCreated.Load())

	fmt.Fprintf(w, "# HELP smartreview_pipeline_ai_attempts_total Review generation attempts since process start.\n")
	fmt.Fprintf(w, "# TYPE smartreview_pipeline_ai_attempts_total counter\n")
	fmt.Fprintf(w, "smartreview_pipeline_ai_attempts_total %d\n", aiAttempts.Load())

	fmt.Fprintf(w, "# HELP smartreview_pipeline_ai_failures_total Review generation failures since process start.\n")
	fmt.Fprintf(w, "# TYPE smartreview_pipeline_ai_failures_total counter\n")
	fmt.Fprintf(w, "smartreview_pipeline_ai_failures_total %d\n", aiFailures.Load())

	fmt.Fprintf(w, "# HELP smartreview_ingest_offers_created_total Offers created by the reconciler since process start.\n")
	fmt.Fprintf(w, "# TYPE smartreview_ingest_offers_created_total counter\n")
	fmt.Fprintf(w, "smartreview_ingest_offers_created_total %d\n", offersCreated.Load())

	fmt.Fprintf(w, "# HELP smartreview_ingest_offers_updated_total Offers updated by the reconciler since process start.\n")
	fmt.Fprintf(w, "# TYPE smartreview_ingest_offers_updated_total counter\n")
	fmt.Fprintf(w, "smartreview_ingest_offers_updated_total %d\n", offersUpdated.Load())

	fmt.Fprintf(w, "# HELP smartreview_ingest_price_updates_total Price history rows written since process start.\n")
	fmt.Fprintf(w, "# TYPE smartreview_ingest_price_updates_total counter\n")
	fmt.Fprintf(w, "smartreview_ingest_price_updates_total %d\n", priceUpdates.Load())

	fmt.Fprintf(w, "# HELP smartreview_clicks_recorded_total Affiliate click events recorded since process start.\n")
	fmt.Fprintf(w, "# TYPE smartreview_clicks_recorded_total counter\n")
	fmt.Fprintf(w, "smartreview_clicks_recorded_total %d\n", clicksRecorded.Load())
}
