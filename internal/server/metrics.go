package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Requests         *prometheus.CounterVec
	GraphNodes       prometheus.Histogram
	AdvisorFailures  *prometheus.CounterVec
	StaleDiagnostics prometheus.Counter
}

// NewMetrics creates and registers the server metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pgplanviz_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})

	graphNodes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pgplanviz_graph_nodes",
		Help:    "Number of nodes in built plan graphs",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	advisorFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pgplanviz_advisor_failures_total",
		Help: "Failed advisor calls by operation",
	}, []string{"operation"})

	stale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pgplanviz_stale_diagnostics_total",
		Help: "Diagnostics refused because the plan changed",
	})

	reg.MustRegister(requests, graphNodes, advisorFailures, stale)

	return &Metrics{
		Requests:         requests,
		GraphNodes:       graphNodes,
		AdvisorFailures:  advisorFailures,
		StaleDiagnostics: stale,
	}
}
