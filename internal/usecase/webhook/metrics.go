package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var webhookEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Provider webhook events by outcome.",
	},
	[]string{"provider", "event", "result"},
)

func recordEvent(provider, event, result string) {
	webhookEventsTotal.WithLabelValues(provider, event, result).Inc()
}
