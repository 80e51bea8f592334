package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sublinks_http_requests_total",
		Help: "HTTP requests by ServeMux pattern and status.",
	}, []string{"pattern", "status"})

	appErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sublinks_app_errors_total",
		Help: "Application errors returned to clients, by stage and code.",
	}, []string{"stage", "code"})
)
