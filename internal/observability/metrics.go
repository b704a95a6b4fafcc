// Package observability owns the Prometheus collectors and the OpenTelemetry tracer.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis calls by operation.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_redis_errors_total",
		Help: "Total number of Redis errors by operation",
	}, []string{"operation"})

	// ReactionsTotal counts applied reaction changes by target and action.
	ReactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_reactions_total",
		Help: "Reaction state changes by target type and action",
	}, []string{"target", "action"})

	// ReactionRejections counts removals refused because there was nothing to remove.
	ReactionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_reaction_rejections_total",
		Help: "Redundant reaction removals by target type and action",
	}, []string{"target", "action"})

	// CacheLookups counts cache-aside hits and misses by key prefix.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_cache_lookups_total",
		Help: "Cache lookups by prefix and result",
	}, []string{"prefix", "result"})

	// ImageUploadBytes records accepted upload sizes.
	ImageUploadBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_image_upload_bytes",
		Help:    "Size of accepted image uploads",
		Buckets: prometheus.ExponentialBuckets(16*1024, 4, 7),
	}, []string{"owner"})

	// ServiceLatency records service method latency.
	ServiceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_service_latency_seconds",
		Help:    "Service method latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "method"})
)

// Track returns a func that records the elapsed time for service.method; call it with defer.
func Track(service, method string) func() {
	start := time.Now()
	return func() {
		ServiceLatency.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
	}
}
