package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(gatewayCallsTotal, gatewayCallLatency, gatewayTokenRefreshTotal) }

var (
	gatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_calls_total",
			Help: "Outbound gateway calls by operation and success.",
		},
		[]string{"gateway", "op", "success"},
	)

	gatewayCallLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_call_latency_seconds",
			Help:    "Outbound gateway call latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"gateway", "op"},
	)

	gatewayTokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_token_refresh_total",
			Help: "Gateway credential refreshes by result.",
		},
		[]string{"gateway", "result"},
	)
)

func ObserveGatewayCall(gateway, op string, success bool, d time.Duration) {
	gatewayCallsTotal.WithLabelValues(norm(gateway), norm(op), strconv.FormatBool(success)).Inc()
	gatewayCallLatency.WithLabelValues(norm(gateway), norm(op)).Observe(d.Seconds())
}

func IncGatewayTokenRefresh(gateway, result string) {
	gatewayTokenRefreshTotal.WithLabelValues(norm(gateway), norm(result)).Inc()
}
