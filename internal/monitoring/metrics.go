package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Booking outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Notification outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeSkipped   = "skipped"
)

var (
	bookings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_total",
			Help: "Total booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	bookingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booking_duration_seconds",
			Help:    "Duration of the booking transaction",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_notifications_total",
			Help: "Total ticket notifications to the external system by outcome",
		},
		[]string{"outcome"},
	)
)

func ObserveBooking(outcome string, d time.Duration) {
	bookings.WithLabelValues(outcome).Inc()
	bookingDuration.Observe(d.Seconds())
}

func ObserveNotification(outcome string) {
	notifications.WithLabelValues(outcome).Inc()
}
