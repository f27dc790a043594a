package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	ConfirmTransitioned = "transitioned"
	ConfirmIdempotent   = "idempotent"
	ConfirmBackfilled   = "backfilled"
	ConfirmConflict     = "conflict"
	ConfirmFailed       = "failed"
)

// PaymentMetrics counts confirmation outcomes and orphaned gateway orders.
type PaymentMetrics struct {
	confirmations *prometheus.CounterVec
	orphans       prometheus.Counter
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_confirmations_total",
		Help: "Payment confirmations by result.",
	}, []string{"result"})
	orphans := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orphaned_gateway_orders_total",
		Help: "Gateway orders created without a persisted local order.",
	})
	reg.MustRegister(confirmations, orphans)
	return &PaymentMetrics{confirmations: confirmations, orphans: orphans}
}

// IncConfirmation increments the counter for a confirmation result.
func (p *PaymentMetrics) IncConfirmation(result string) {
	if p == nil || p.confirmations == nil {
		return
	}
	p.confirmations.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncOrphan records a gateway order left without a local counterpart.
func (p *PaymentMetrics) IncOrphan() {
	if p == nil || p.orphans == nil {
		return
	}
	p.orphans.Inc()
}
