package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Booking engine
	BookingsTotal       prometheus.Counter
	BookingConflicts    prometheus.Counter
	BookingFailures     *prometheus.CounterVec
	StatusTransitions   *prometheus.CounterVec
	AppointmentsSettled prometheus.Counter

	// Outbox publisher
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram

	// Database
	DatabaseOperations *prometheus.CounterVec
}

// New registers all application metrics on the default registerer.
func New(namespace string) *Metrics {
	return NewWith(namespace, prometheus.DefaultRegisterer)
}

// NewWith registers metrics on an explicit registerer; tests pass a fresh
// prometheus.NewRegistry so repeated construction does not collide.
func NewWith(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BookingsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Total number of appointments booked",
		}),
		BookingConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Total number of bookings rejected because the slot was taken",
		}),
		BookingFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_failures_total",
			Help:      "Total number of failed booking attempts",
		}, []string{"reason"}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Total number of appointment status transitions",
		}, []string{"from", "to"}),
		AppointmentsSettled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_settled_total",
			Help:      "Confirmed appointments settled to completed after their window elapsed",
		}),
		OutboxEventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully published outbox events",
		}),
		OutboxEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of outbox events that failed publishing",
		}),
		OutboxProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}
