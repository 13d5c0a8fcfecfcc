package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingAdmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clinic_scheduling",
			Name:      "booking_admitted_total",
			Help:      "Count of bookings that passed conflict validation and were persisted.",
		},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinic_scheduling",
			Name:      "booking_rejected_total",
			Help:      "Count of bookings rejected, by reason.",
		},
		[]string{"reason"},
	)

	slotQueries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clinic_scheduling",
			Name:      "slot_queries_total",
			Help:      "Count of free-slot computations served.",
		},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinic_scheduling",
			Name:      "status_transition_total",
			Help:      "Count of appointment status transitions, by target status.",
		},
		[]string{"to"},
	)

	sweeperCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clinic_scheduling",
			Name:      "sweeper_cancelled_total",
			Help:      "Count of stale pending appointments cancelled by the sweeper.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingAdmitted, bookingRejected, slotQueries, statusTransitions, sweeperCancelled)
	})
}

func IncBookingAdmitted() {
	bookingAdmitted.Inc()
}

func IncBookingRejected(reason string) {
	bookingRejected.WithLabelValues(reason).Inc()
}

func IncSlotQuery() {
	slotQueries.Inc()
}

func IncStatusTransition(to string) {
	statusTransitions.WithLabelValues(to).Inc()
}

func IncSweeperCancelled() {
	sweeperCancelled.Inc()
}
