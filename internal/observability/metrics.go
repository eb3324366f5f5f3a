package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace defines the global prefix for all metrics (e.g., freyr_...).
const namespace = "freyr"

// evalBuckets gives sub-millisecond resolution on the low end: a single
// candidate evaluates in well under a millisecond, so the interesting range
// for a whole search is 0.5ms to 500ms.
var evalBuckets = []float64{.0005, .001, .002, .005, .010, .020, .050, .100, .250, .500}

var (
	// -------------------------------------------------------------------------
	// HTTP API
	// -------------------------------------------------------------------------

	// HTTPReqDuration measures the latency of HTTP requests.
	// Metric: freyr_api_http_handling_seconds
	HTTPReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	// HTTPReqTotal counts the total number of HTTP requests.
	// Metric: freyr_api_http_requests_total
	HTTPReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "path", "code"})

	// -------------------------------------------------------------------------
	// SEARCH ENGINE
	// -------------------------------------------------------------------------

	// SearchDuration measures one full search: candidate load, context build,
	// tree evaluation, ordering and paging.
	// Metric: freyr_search_duration_seconds
	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "duration_seconds",
		Help:      "End-to-end association search latency",
		Buckets:   evalBuckets,
	})

	// SearchCandidatesEvaluated counts condition trees evaluated, labeled by
	// whether the tree was satisfied.
	// Metric: freyr_search_candidates_evaluated_total
	SearchCandidatesEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "candidates_evaluated_total",
		Help:      "Condition trees evaluated during searches",
	}, []string{"outcome"}) // matched, rejected

	// -------------------------------------------------------------------------
	// RESULT CACHE
	// -------------------------------------------------------------------------

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "result_cache",
		Name:      "hits_total",
		Help:      "Search results served from the cache",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "result_cache",
		Name:      "misses_total",
		Help:      "Searches that fell through to the engine",
	})

	// CacheInvalidations counts store-wide invalidations triggered by
	// association change events.
	// Metric: freyr_result_cache_invalidations_total
	CacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "result_cache",
		Name:      "invalidations_total",
		Help:      "Store-wide cache invalidations from change events",
	})
)
