package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_backend_requests_total",
			Help: "Total number of requests issued to the festival backend",
		},
		[]string{"operation", "outcome"},
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "gateway_backend_request_duration_seconds",
			Help: "Duration of festival backend requests in seconds",
		},
		[]string{"operation"},
	)

	CacheFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cache_fetches_total",
			Help: "Data-provider fetch outcomes per resource",
		},
		[]string{"resource", "outcome"},
	)

	ActivitiesRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_activities_removed_total",
			Help: "Activity records dropped by the validator, by reason",
		},
		[]string{"reason"},
	)

	DuplicatesMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_duplicates_merged_total",
			Help: "Activity records merged away by deduplication, by strategy",
		},
		[]string{"strategy"},
	)

	SubscriptionMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_subscription_mutations_total",
			Help: "Subscribe/unsubscribe attempts routed through the gateway",
		},
		[]string{"action", "outcome"},
	)
)
