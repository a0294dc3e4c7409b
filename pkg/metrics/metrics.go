package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Booking metrics
	AppointmentsBooked    *prometheus.CounterVec
	BookingConflicts      prometheus.Counter
	SlotQueries           prometheus.Counter
	SlotsReturned         prometheus.Histogram
	AppointmentTransition *prometheus.CounterVec

	// Outbox metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec
	OutboxEventsPurged      prometheus.Counter

	// Database metrics
	DatabaseOperations *prometheus.CounterVec

	// Notification metrics
	EmailsSent *prometheus.CounterVec
}

// New creates all application metrics and registers them with reg. A nil
// registerer falls back to the default prometheus registry.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		AppointmentsBooked: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "appointments_total",
			Help:      "Total number of appointments booked",
		}, []string{"source"}),
		BookingConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "conflicts_total",
			Help:      "Total number of bookings rejected because the slot was taken",
		}),
		SlotQueries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "slot_queries_total",
			Help:      "Total number of available slot queries",
		}),
		SlotsReturned: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "slots_returned",
			Help:      "Number of free slots returned per query",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 48},
		}),
		AppointmentTransition: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "status_transitions_total",
			Help:      "Appointment status transitions",
		}, []string{"status"}),

		OutboxEventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),
		OutboxEventsPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_purged_total",
			Help:      "Total number of processed outbox events removed by cleanup",
		}),

		DatabaseOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),

		EmailsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "emails_total",
			Help:      "Appointment emails by outcome",
		}, []string{"event_type", "status"}),
	}
}
