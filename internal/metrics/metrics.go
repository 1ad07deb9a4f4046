// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline: provider call accounting, rate limit pauses and per-session
// processing outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderCalls counts real provider fetches, by result.
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pitwall",
		Subsystem: "provider",
		Name:      "calls_total",
		Help:      "Number of provider session fetches by result.",
	}, []string{"result"}) // success, rate_limited, no_data, error

	// CacheHits counts session payload memoization hits.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pitwall",
		Subsystem: "provider",
		Name:      "cache_hits_total",
		Help:      "Number of session loads served from the memoization cache.",
	})

	// CacheMisses counts session payload memoization misses.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pitwall",
		Subsystem: "provider",
		Name:      "cache_misses_total",
		Help:      "Number of session loads that required a provider fetch.",
	})

	// RateLimitPauses counts global ingestion pauses caused by the provider
	// signalling an exhausted call budget.
	RateLimitPauses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pitwall",
		Subsystem: "ratelimit",
		Name:      "pauses_total",
		Help:      "Number of global rate limit pauses.",
	})

	// SessionsProcessed counts processed sessions by outcome.
	SessionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pitwall",
		Subsystem: "pipeline",
		Name:      "sessions_processed_total",
		Help:      "Number of sessions processed by outcome.",
	}, []string{"outcome"}) // succeeded, partial, failed, skipped

	// CategoryExtractions counts per-category extraction attempts by result.
	CategoryExtractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pitwall",
		Subsystem: "pipeline",
		Name:      "category_extractions_total",
		Help:      "Number of category extractions by category and result.",
	}, []string{"category", "result"}) // result: success, failed, no_data, skipped

	// RunDuration observes full pipeline run durations.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pitwall",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Duration of complete ingestion runs.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})
)
