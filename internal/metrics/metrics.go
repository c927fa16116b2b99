package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paypiece",
		Name:      "action_requests_total",
		Help:      "Piece action executions by outcome.",
	}, []string{"piece", "action", "outcome"})

	actionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "paypiece",
		Name:      "action_duration_seconds",
		Help:      "Time spent executing piece actions.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"piece", "action"})

	webhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paypiece",
		Name:      "webhook_deliveries_total",
		Help:      "Inbound webhook deliveries by flow and outcome.",
	}, []string{"flow", "outcome"})
)

// ObserveAction records one action execution.
func ObserveAction(piece, action, outcome string, elapsed time.Duration) {
	actionRequests.WithLabelValues(piece, action, outcome).Inc()
	actionDuration.WithLabelValues(piece, action).Observe(elapsed.Seconds())
}

// ObserveDelivery records one webhook delivery.
func ObserveDelivery(flow, outcome string) {
	webhookDeliveries.WithLabelValues(flow, outcome).Inc()
}
