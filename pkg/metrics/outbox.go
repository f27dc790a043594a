package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutboxPublished  = "published"
	OutboxRetry      = "retry"
	OutboxDeadLetter = "dead_letter"
)

// OutboxMetrics tracks what the publisher does with each outbox row.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	latency prometheus.Histogram
	lag     prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_total",
		Help: "Outbox rows handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_publish_duration_seconds",
		Help:    "Time spent waiting for Pub/Sub to acknowledge a message.",
		Buckets: prometheus.DefBuckets,
	})
	lag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_publish_lag_seconds",
		Help:    "Delay between a row being written and being published.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
	})
	reg.MustRegister(events, latency, lag)
	return &OutboxMetrics{events: events, latency: latency, lag: lag}
}

// ObserveOutcome counts one row. Published rows also feed the lag histogram.
func (m *OutboxMetrics) ObserveOutcome(eventType, outcome string, createdAt time.Time) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
	if outcome == OutboxPublished && !createdAt.IsZero() {
		m.lag.Observe(time.Since(createdAt).Seconds())
	}
}

func (m *OutboxMetrics) ObservePublish(elapsed time.Duration) {
	if m == nil || m.latency == nil {
		return
	}
	m.latency.Observe(elapsed.Seconds())
}
