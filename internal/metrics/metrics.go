package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "webhook_events_total",
		Help:      "Payment webhook deliveries by source, kind and outcome.",
	}, []string{"source", "kind", "outcome"})

	AccessDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "access_decisions_total",
		Help:      "Access gate decisions.",
	}, []string{"decision"})

	AutoSuspensions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "auto_suspensions_total",
		Help:      "Subscribers suspended because their expiration passed.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "portal",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
