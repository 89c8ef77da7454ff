// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ApplicationsValidated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_applications_validated_total",
			Help: "Total applicant records processed by the validation engine",
		},
		[]string{"verdict"},
	)

	ValidationIssues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_validation_issues_total",
			Help: "Total validation issues recorded, by rule",
		},
		[]string{"rule"},
	)

	ApplicantsShortlisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_applicants_shortlisted_total",
			Help: "Total allocation decisions written, by stream and verdict",
		},
		[]string{"stream", "verdict"},
	)

	SeatPoolConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_seat_pool_conflicts_total",
			Help: "Optimistic-concurrency conflicts on seat pool updates",
		},
		[]string{"stream"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_notifications_sent_total",
			Help: "Notification delivery attempts, by channel and status",
		},
		[]string{"channel", "status"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "admissions_batch_duration_seconds",
			Help: "Duration of engine batch runs in seconds",
		},
		[]string{"engine"},
	)
)
