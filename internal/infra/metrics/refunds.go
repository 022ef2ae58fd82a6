package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		refundTransitionsTotal,
		refundsInitiatedTotal,
		refundedAmountTotal,
		webhookDeliveriesTotal,
		webhookDuration,
	)
}

var (
	refundTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refund_transitions_total",
			Help: "Refund state machine results by target status and outcome.",
		},
		[]string{"to", "outcome"}, // outcome: applied|noop|rejected
	)

	refundsInitiatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refunds_initiated_total",
			Help: "Refund initiations by speed and result.",
		},
		[]string{"speed", "result"},
	)

	refundedAmountTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "refunded_amount_minor_total",
			Help: "Sum of refund amounts that reached PROCESSED, in minor units.",
		},
	)

	// outcome: applied|duplicate|unknown_refund|ignored|rejected|bad_signature|bad_payload|error
	webhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refund_webhook_deliveries_total",
			Help: "Refund webhook deliveries by outcome.",
		},
		[]string{"outcome"},
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refund_webhook_duration_seconds",
			Help:    "Time spent handling a refund webhook.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"outcome"},
	)
)

func IncRefundTransition(to, outcome string) {
	refundTransitionsTotal.WithLabelValues(norm(to), norm(outcome)).Inc()
}

func IncRefundInitiated(speed, result string) {
	refundsInitiatedTotal.WithLabelValues(norm(speed), norm(result)).Inc()
}

func AddRefundedAmount(amount int64) {
	refundedAmountTotal.Add(float64(amount))
}

func ObserveWebhook(outcome string, d time.Duration) {
	webhookDeliveriesTotal.WithLabelValues(norm(outcome)).Inc()
	webhookDuration.WithLabelValues(norm(outcome)).Observe(d.Seconds())
}
