// Package metrics exposes Prometheus collectors for the bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelMethod  = "method"
	LabelRoute   = "route"
	LabelStatus  = "status"
	LabelOutcome = "outcome"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uptime_bridge_http_requests_total",
			Help: "Inbound HTTP requests by route and status code.",
		},
		[]string{LabelMethod, LabelRoute, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uptime_bridge_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelRoute},
	)
)

// Upstream Metrics
var (
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uptime_bridge_upstream_requests_total",
			Help: "Monitoring API calls by method and status code (0 for transport failures).",
		},
		[]string{LabelMethod, LabelStatus},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uptime_bridge_upstream_request_duration_seconds",
			Help:    "Monitoring API call latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	MonitorPagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uptime_bridge_monitor_pages_fetched_total",
			Help: "Monitor listing pages fetched while looking up existing monitors.",
		},
	)
)

// Reconciliation Metrics
var (
	ReconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uptime_bridge_reconcile_outcomes_total",
			Help: "Reconciliation results by outcome.",
		},
		[]string{LabelOutcome},
	)
)
