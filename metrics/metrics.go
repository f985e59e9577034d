// ABOUTME: Prometheus counters for cache decisions, parse tiers and sweeps
// ABOUTME: Registered on the default registry and served at /metrics by the serve command
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts lookups by policy and resulting state.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engage_cache_lookups_total",
		Help: "Cache lookups by policy and state (fresh, stale, miss)",
	}, []string{"policy", "state"})

	// CacheStoreErrors counts writes that were dropped after a storage failure.
	CacheStoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engage_cache_store_errors_total",
		Help: "Cache writes dropped after a storage failure",
	}, []string{"policy"})

	// CacheSwept counts rows removed by expiry sweeps.
	CacheSwept = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engage_cache_swept_total",
		Help: "Expired cache rows removed by sweep",
	}, []string{"policy"})

	// ParseAttempts counts parser tier attempts by tier and result.
	ParseAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engage_parse_attempts_total",
		Help: "Parser tier attempts by tier and result (success, decode_error, invalid)",
	}, []string{"tier", "result"})

	// ParseFailures counts responses no tier could parse.
	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engage_parse_total_failures_total",
		Help: "Responses that failed every parser tier",
	})

	// Regenerations counts generator calls made by the pipeline.
	Regenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engage_regenerations_total",
		Help: "Artifact regenerations by kind and trigger (miss, stale, forced)",
	}, []string{"kind", "trigger"})
)
