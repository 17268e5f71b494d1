// Package metrics provides Prometheus metrics for the graded-ledger
// backend. Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Equivalence Index Metrics
	IndexBuildsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_index_builds_total",
			Help: "Total number of equivalence index rebuilds",
		},
	)

	IndexBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_index_build_duration_seconds",
			Help:    "Time taken to rebuild the equivalence index",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	IndexCardsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_index_cards_total",
			Help: "Number of cards in the last built equivalence index",
		},
	)

	DuplicateCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_duplicate_cache_hits_total",
			Help: "Duplicate query result cache hit count",
		},
	)

	DuplicateCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_duplicate_cache_misses_total",
			Help: "Duplicate query result cache miss count",
		},
	)

	// Valuation Metrics
	ValuationRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_valuation_runs_total",
			Help: "Total number of valuation runs persisted",
		},
	)

	ValuationNoOpsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_valuation_noops_total",
			Help: "Valuation runs skipped by the change guard",
		},
	)

	// Collection Metrics
	CollectionCardsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_collection_cards_total",
			Help: "Total number of cards in the collection",
		},
	)

	CollectionForSale = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_collection_for_sale_cards",
			Help: "Number of cards currently priced for sale",
		},
	)

	CollectionValueJPY = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_collection_value_jpy",
			Help: "Estimated value of the whole collection in JPY",
		},
	)

	// Bundle Metrics
	BundlesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_bundles_total",
			Help: "Number of active card bundles",
		},
	)
)
