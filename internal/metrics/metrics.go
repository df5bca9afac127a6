package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Snapshot metrics
	MarketCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arb_market_count",
		Help: "Total number of markets in the snapshot",
	})

	ReadyMarketCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arb_ready_market_count",
		Help: "Number of markets turned into edges",
	})

	EdgeCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arb_edge_count",
		Help: "Number of directed edges in the current snapshot",
	})

	MarketUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_market_updates_total",
			Help: "Total number of market upserts and removals",
		},
		[]string{"op"},
	)

	SnapshotRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_snapshot_rebuilds_total",
		Help: "Total number of snapshot rebuilds",
	})

	SnapshotFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_snapshot_flushes_total",
			Help: "Total number of snapshot persistence flushes",
		},
		[]string{"status"},
	)

	// Scan metrics
	Scans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_scans_total",
			Help: "Total number of cycle searches by outcome",
		},
		[]string{"strategy", "result"},
	)

	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arb_scan_duration_seconds",
			Help:    "Cycle search duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"strategy"},
	)

	ScanQuotes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_scan_quotes",
		Help:    "Venue quotes computed per search",
		Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
	})

	ScanMemoHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_scan_memo_hits_total",
		Help: "Total number of quotes answered from the per-scan memo",
	})

	RecoverableQuoteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_recoverable_quote_failures_total",
		Help: "Quotes that disqualified an edge without aborting the search",
	})

	OpportunityProfit = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arb_opportunity_profit_base_units",
			Help:    "Profit of found cycles in start-token base units",
			Buckets: prometheus.ExponentialBuckets(10_000, 10, 8),
		},
		[]string{"hops"},
	)

	OpportunityCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_opportunity_cache_hits_total",
		Help: "Total number of on-demand checks answered from cache",
	})

	OpportunityCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_opportunity_cache_misses_total",
		Help: "Total number of on-demand checks that ran a search",
	})

	OpportunityCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arb_opportunity_cache_size",
		Help: "Current number of entries in the opportunity cache",
	})

	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_publish_failures_total",
		Help: "Total number of opportunities that failed to publish",
	})

	// Execution metrics
	Executions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_executions_total",
			Help: "Total number of path executions by outcome",
		},
		[]string{"status"},
	)

	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_execution_duration_seconds",
		Help:    "Path execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	RealisedProfit = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_realised_profit_base_units",
		Help:    "Realised profit of executed paths in start-token base units",
		Buckets: prometheus.ExponentialBuckets(10_000, 10, 8),
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arb_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ClockSlot = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arb_clock_slot",
		Help: "Slot of the clock reading the last scan was bound to",
	})
)
