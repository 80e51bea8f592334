package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sourceFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sublinks_upstream_fetch_failures_total",
	Help: "Per-source upstream fetch/parse failures during document builds.",
}, []string{"source"})
