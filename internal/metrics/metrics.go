package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HistogramTimer wraps a histogram with a Start/Observe pair so call sites
// can defer the observation.
type HistogramTimer struct {
	hist prometheus.Histogram
}

type runningTimer struct {
	hist  prometheus.Histogram
	began time.Time
}

func NewHistogramTimer(hist prometheus.Histogram) *HistogramTimer {
	return &HistogramTimer{hist: hist}
}

func (t *HistogramTimer) Start() *runningTimer {
	return &runningTimer{hist: t.hist, began: time.Now()}
}

func (r *runningTimer) Observe() {
	r.hist.Observe(time.Since(r.began).Seconds())
}

var (
	// Pool metrics
	PoolCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swapengine_pool_count",
			Help: "Number of pools known per liquidity source",
		},
		[]string{"source"},
	)

	PoolFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swapengine_pool_fetch_duration_seconds",
			Help:    "Pool discovery duration per liquidity source",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	PoolsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapengine_pools_skipped_total",
			Help: "Pools dropped during discovery",
		},
		[]string{"source", "reason"},
	)

	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapengine_quote_requests_total",
			Help: "Total number of quote requests",
		},
		[]string{"status"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swapengine_quote_duration_seconds",
			Help:    "End-to-end quote duration per source",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	QuoteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapengine_quote_failures_total",
			Help: "Quote failures per source and reason",
		},
		[]string{"source", "reason"},
	)

	AggregatorWins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapengine_aggregator_wins_total",
			Help: "Times each source produced the best net quote",
		},
		[]string{"source"},
	)

	// Route search metrics
	routeSearchHist = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapengine_route_search_duration_seconds",
		Help:    "Route graph search duration in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	RouteSearchDuration = NewHistogramTimer(routeSearchHist)

	PathsEvaluated = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapengine_paths_evaluated",
		Help:    "Candidate paths evaluated per route search",
		Buckets: []float64{1, 2, 3, 5, 10, 15, 24},
	})

	SplitAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapengine_split_attempts_total",
		Help: "Route searches that attempted a split allocation",
	})

	SplitImprovements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapengine_split_improvements_total",
		Help: "Split attempts that beat the best single route",
	})

	PriceImpact = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapengine_price_impact_bps",
		Help:    "Price impact of returned routes in basis points",
		Buckets: []float64{0, 10, 50, 100, 300, 500, 1000, 5000, 10000},
	})

	// Compile and submission metrics
	PlanCompilations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapengine_plan_compilations_total",
			Help: "Execution plan compilations by status",
		},
		[]string{"status"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapengine_submissions_total",
			Help: "Transaction submissions by status",
		},
		[]string{"status"},
	)

	SubmissionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapengine_submission_duration_seconds",
		Help:    "Transaction submission duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	NonceRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapengine_nonce_refreshes_total",
		Help: "Nonce refreshes against the RPC provider",
	})

	NonceConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapengine_nonce_conflicts_total",
		Help: "Submissions rejected for nonce conflicts",
	})

	TrackedAccounts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swapengine_tracked_accounts",
		Help: "Accounts currently tracked by the nonce manager",
	})

	// Provider metrics
	ProviderRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapengine_provider_rotations_total",
		Help: "RPC endpoint rotations after transport failures",
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapengine_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swapengine_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
