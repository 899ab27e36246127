// Package metrics defines Prometheus metrics for the admin control plane.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "azadmin_cache_requests_total",
			Help: "Cache lookups by result (hit, miss, error, skipped)",
		},
		[]string{"result"},
	)

	CacheInvalidatedKeys = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "azadmin_cache_invalidated_keys_total",
			Help: "Keys removed by pattern invalidation",
		},
	)

	CacheAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "azadmin_cache_available",
			Help: "1 when the cache backend is reachable, 0 otherwise",
		},
	)

	QuotaDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "azadmin_quota_decisions_total",
			Help: "Quota decisions by route class and outcome",
		},
		[]string{"class", "outcome"},
	)

	BulkOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "azadmin_bulk_operations_total",
			Help: "Bulk mutations by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	AlertsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "azadmin_alerts_generated_total",
			Help: "Health alerts produced by level",
		},
		[]string{"level"},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "azadmin_notifications_total",
			Help: "Notification deliveries by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		CacheRequests, CacheInvalidatedKeys, CacheAvailable,
		QuotaDecisions, BulkOperations, AlertsGenerated, Notifications,
	)
}
