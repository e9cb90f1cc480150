// Package observability provides metrics and tracing.
package observability

import (
	"sync"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emojifeed_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// RateLimitDecisions counts rate limiter outcomes: allowed, denied or error.
	RateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emojifeed_rate_limit_decisions_total",
		Help: "Rate limiter decisions by outcome",
	}, []string{"outcome"})

	// IdentityLookupLatency records identity directory call latency by operation.
	IdentityLookupLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "emojifeed_identity_lookup_latency_seconds",
		Help:    "Identity directory lookup latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	// EnrichmentInconsistencies counts feed batches aborted because an author could not be resolved.
	EnrichmentInconsistencies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emojifeed_enrichment_inconsistencies_total",
		Help: "Feed batches aborted because a post author was missing from the identity directory",
	})

	// EnrichedPostsServed counts posts returned by the feed queries per operation.
	EnrichedPostsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emojifeed_enriched_posts_served_total",
		Help: "Posts returned by feed queries",
	}, []string{"operation"})
)

var (
	httpMetricsOnce sync.Once
	httpMetrics     *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the Fiber Prometheus middleware for HTTP request metrics.
// It shares the default registry with the emojifeed_* collectors above, so
// /metrics exposes both. Registration happens once per process.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	httpMetricsOnce.Do(func() {
		httpMetrics = fiberprometheus.NewWithDefaultRegistry(serviceName)
	})
	return httpMetrics
}

// ObserveIdentityLookup records the latency of a directory call started at start.
func ObserveIdentityLookup(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	IdentityLookupLatency.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
