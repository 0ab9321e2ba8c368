package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PermissionChecks counts trip permission evaluations by tier and outcome (allow|deny|not_found|error).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripbill_permission_checks_total",
			Help: "Total number of trip permission checks",
		},
		[]string{"permission", "result"},
	)

	// StatusReconciliations counts lazy status writes by transition.
	StatusReconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripbill_trip_status_reconciliations_total",
			Help: "Total number of stored trip statuses rewritten to match the derived value",
		},
		[]string{"from", "to"},
	)

	// TripsCreated counts successfully created trips.
	TripsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tripbill_trips_created_total",
			Help: "Total number of trips created",
		},
	)

	// InvitationRedemptions counts join attempts by result (success|not_found|conflict|error).
	InvitationRedemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripbill_invitation_redemptions_total",
			Help: "Total number of invitation redemption attempts",
		},
		[]string{"result"},
	)

	// MaintenanceRuns counts background job executions by job and result.
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripbill_maintenance_runs_total",
			Help: "Total number of maintenance job runs",
		},
		[]string{"job", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tripbill_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
