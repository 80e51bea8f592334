package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sublinks_cache_hits_total",
		Help: "Subscription cache hits.",
	})
	missesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sublinks_cache_misses_total",
		Help: "Subscription cache misses (including forced refreshes).",
	})
	buildFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sublinks_cache_build_failures_total",
		Help: "Failed document builds. Failed builds are never cached.",
	})
	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sublinks_cache_build_duration_seconds",
		Help:    "Wall time of successful document builds.",
		Buckets: prometheus.DefBuckets,
	})
)
