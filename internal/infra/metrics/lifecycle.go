package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		subscriptionTransitionsTotal,
		lifecycleRunsTotal,
		lifecycleRunDuration,
		notificationsTotal,
	)
}

var (
	subscriptionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_transitions_total",
			Help: "Subscription status changes applied by the lifecycle job, by target status.",
		},
		[]string{"to"},
	)

	lifecycleRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_runs_total",
			Help: "Lifecycle job runs by result.",
		},
		[]string{"result"}, // ok|error|skipped
	)

	lifecycleRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lifecycle_run_duration_seconds",
			Help:    "Duration of a full lifecycle run.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification attempts by kind and delivery status.",
		},
		[]string{"kind", "status"}, // status: sent|error|dropped
	)
)

func AddSubscriptionTransitions(to string, n int) {
	if n <= 0 {
		return
	}
	subscriptionTransitionsTotal.WithLabelValues(norm(to)).Add(float64(n))
}

func ObserveLifecycleRun(result string, d time.Duration) {
	lifecycleRunsTotal.WithLabelValues(norm(result)).Inc()
	if d > 0 {
		lifecycleRunDuration.Observe(d.Seconds())
	}
}

func IncNotification(kind, status string) {
	notificationsTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}
