package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_sdk_cache_hits_total",
		Help: "Total number of cache hits",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_sdk_cache_misses_total",
		Help: "Total number of cache misses",
	})

	CacheSetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_sdk_cache_sets_total",
		Help: "Total number of values admitted to the cache",
	})

	CacheRejectedSetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_sdk_cache_rejected_sets_total",
		Help: "Total number of values dropped by cache admission",
	})

	CacheDeletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_sdk_cache_deletes_total",
		Help: "Total number of cache deletes",
	})

	CacheHitRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "market_sdk_cache_hit_rate",
		Help: "Hit ratio reported by the cache since start",
	})

	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_sdk_cache_operation_duration_seconds",
			Help:    "Duration of cache operations",
			Buckets: []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01},
		},
		[]string{"operation"},
	)
)
