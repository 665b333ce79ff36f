// Package metrics exposes Prometheus counters for the booking flow.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	conflictsTotal   prometheus.Counter
	resolutionsTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebook",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carebook",
			Subsystem: "booking",
			Name:      "conflicts_total",
			Help:      "Detected double-booking conflicts",
		}),
		resolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebook",
			Subsystem: "booking",
			Name:      "conflict_resolutions_total",
			Help:      "Conflict resolutions by action",
		}, []string{"action"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.conflictsTotal, m.resolutionsTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}

func (m *BookingMetrics) ObserveResolution(action string) {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues(action).Inc()
}
