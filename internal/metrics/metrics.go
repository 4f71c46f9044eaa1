// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "schooladmin"

var (
	// HTTPRequests counts served requests.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	// HTTPDuration observes request latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// StoreState is 1 for the connection manager's current state and 0 for the others.
	StoreState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "store_connection_state",
		Help:      "Record store connection state.",
	}, []string{"state"})

	// StoreConnectAttempts counts connection attempts, labelled success or failure.
	StoreConnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_connect_attempts_total",
		Help:      "Record store connection attempts by result.",
	}, []string{"result"})

	// RolloverRuns counts rollover attempts by outcome.
	RolloverRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rollover_runs_total",
		Help:      "Academic year rollovers by outcome.",
	}, []string{"outcome"})

	// RolloverLearners counts learners moved by committed rollovers.
	RolloverLearners = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rollover_learners_total",
		Help:      "Learners processed by committed rollovers, by result (advanced, graduated, skipped).",
	}, []string{"result"})
)
