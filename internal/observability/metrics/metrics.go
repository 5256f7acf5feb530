package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for booking and payment flows.
type BookingMetrics struct {
	bookingsCreated *prometheus.CounterVec
	confirmations   *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	webhookLatency  *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "divinetalks",
			Subsystem: "bookings",
			Name:      "created_total",
			Help:      "Total bookings created",
		}, []string{"session_kind"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "divinetalks",
			Subsystem: "payments",
			Name:      "confirmations_total",
			Help:      "Payment confirmation attempts by source and outcome",
		}, []string{"source", "outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "divinetalks",
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Total processor webhook events received",
		}, []string{"event_type", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "divinetalks",
			Subsystem: "payments",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of processor webhook handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsCreated, m.confirmations, m.webhookEvents, m.webhookLatency)
	return m
}

func (m *BookingMetrics) ObserveBookingCreated(sessionKind string) {
	if m == nil {
		return
	}
	m.bookingsCreated.WithLabelValues(sessionKind).Inc()
}

// ObserveConfirmation records one confirmation attempt. Source is "client"
// or "webhook"; outcome is "applied", "noop", or "rejected".
func (m *BookingMetrics) ObserveConfirmation(source, outcome string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(source, outcome).Inc()
}

func (m *BookingMetrics) ObserveWebhookEvent(eventType, status string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, status).Inc()
}

func (m *BookingMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}
