package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the booking pipeline's Prometheus collectors.  A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	reservations  *prometheus.CounterVec
	lockAcquires  *prometheus.CounterVec
	paymentStarts *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	locksPurged   prometheus.Counter
	gatewayTime   *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reservations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_reservations_total",
				Help: "Reservation attempts by outcome",
			},
			[]string{"outcome"},
		),
		lockAcquires: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_lock_acquire_total",
				Help: "Ticket lock acquisition attempts by result",
			},
			[]string{"result"},
		),
		paymentStarts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_payment_starts_total",
				Help: "Payment initiations by outcome",
			},
			[]string{"outcome"},
		),
		confirmations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_confirmations_total",
				Help: "Payment notifications by outcome",
			},
			[]string{"outcome"},
		),
		locksPurged: f.NewCounter(
			prometheus.CounterOpts{
				Name: "booking_expired_locks_purged_total",
				Help: "Expired lock rows removed by the sweeper",
			},
		),
		gatewayTime: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "booking_payment_gateway_duration_seconds",
				Help:    "Latency of payment gateway calls",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"status"},
		),
	}
}

func (m *Metrics) Reservation(outcome string) {
	if m != nil {
		m.reservations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) LockAcquire(result string) {
	if m != nil {
		m.lockAcquires.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) PaymentStart(outcome string) {
	if m != nil {
		m.paymentStarts.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Confirmation(outcome string) {
	if m != nil {
		m.confirmations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) LocksPurged(n int64) {
	if m != nil && n > 0 {
		m.locksPurged.Add(float64(n))
	}
}

// GatewayCall records one gateway round trip.  status is "ok" or "error".
func (m *Metrics) GatewayCall(status string, seconds float64) {
	if m != nil {
		m.gatewayTime.WithLabelValues(status).Observe(seconds)
	}
}
