// Package metrics exposes Prometheus collectors for source runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// pagesTotal counts listing pages (or fully loaded documents) processed.
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "festscrape_pages_total",
		Help: "Listing pages processed per source",
	}, []string{"source"})

	// pageFailuresTotal counts pages and scroll iterations that failed.
	pageFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "festscrape_page_failures_total",
		Help: "Listing pages or iterations that failed after retries",
	}, []string{"source"})

	detailFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "festscrape_detail_failures_total",
		Help: "Detail pages that could not be fetched",
	}, []string{"source"})

	// recordsTotal counts written records by outcome (inserted, updated, failed).
	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "festscrape_records_total",
		Help: "Festival records written per source and outcome",
	}, []string{"source", "outcome"})

	duplicatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "festscrape_duplicates_suppressed_total",
		Help: "Repeated identities dropped within a run",
	}, []string{"source"})

	skippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "festscrape_listings_skipped_total",
		Help: "Listing elements skipped for missing name, link or content",
	}, []string{"source"})

	budgetTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "festscrape_failure_budget_trips_total",
		Help: "Sources aborted after consecutive page failures",
	}, []string{"source"})

	// runsTotal counts finished source runs by status.
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "festscrape_source_runs_total",
		Help: "Finished source runs by status",
	}, []string{"source", "status"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "festscrape_source_run_duration_seconds",
		Help:    "Wall time of a source run",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 2400, 3600},
	}, []string{"source"})

	// flushLatency measures one Upsert Writer batch, retries included.
	flushLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "festscrape_batch_flush_seconds",
		Help:    "Upsert batch latency in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

// Outcome labels of festscrape_records_total.
const (
	OutcomeInserted = "inserted"
	OutcomeUpdated  = "updated"
	OutcomeFailed   = "failed"
)

func RecordPage(source string) {
	pagesTotal.WithLabelValues(source).Inc()
}

func RecordPageFailures(source string, n int) {
	if n > 0 {
		pageFailuresTotal.WithLabelValues(source).Add(float64(n))
	}
}

func RecordDetailFailure(source string) {
	detailFailuresTotal.WithLabelValues(source).Inc()
}

// RecordBatch records one flushed batch.
func RecordBatch(source string, inserted, updated, failed int, took time.Duration) {
	recordsTotal.WithLabelValues(source, OutcomeInserted).Add(float64(inserted))
	recordsTotal.WithLabelValues(source, OutcomeUpdated).Add(float64(updated))
	recordsTotal.WithLabelValues(source, OutcomeFailed).Add(float64(failed))
	flushLatency.Observe(took.Seconds())
}

func RecordDuplicates(source string, n int) {
	if n > 0 {
		duplicatesTotal.WithLabelValues(source).Add(float64(n))
	}
}

func RecordSkipped(source string, n int) {
	if n > 0 {
		skippedTotal.WithLabelValues(source).Add(float64(n))
	}
}

func RecordBudgetTrip(source string) {
	budgetTripsTotal.WithLabelValues(source).Inc()
}

// RecordRun records a finished source run.
func RecordRun(source, status string, took time.Duration) {
	runsTotal.WithLabelValues(source, status).Inc()
	runDuration.WithLabelValues(source).Observe(took.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
