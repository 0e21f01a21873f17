package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_permission_checks_total",
			Help: "Total number of permission checks",
		},
		[]string{"result"},
	)

	RoleAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_role_assignments_total",
			Help: "Total number of role assignment attempts",
		},
		[]string{"result"},
	)

	IncidentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_incidents_created_total",
			Help: "Total number of incidents created",
		},
		[]string{"status"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_notifications_sent_total",
			Help: "Total number of notifications handed to a sink",
		},
		[]string{"result"},
	)

	PermissionCheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aegis_permission_check_duration_seconds",
			Help:    "Time taken to evaluate permission checks",
			Buckets: prometheus.DefBuckets,
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aegis_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)

	RecommendationCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_recommendation_cache_total",
			Help: "Recommendation cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)
