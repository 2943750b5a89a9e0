package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"learnloop/internal/domain/entity"
)

var (
	notificationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Notifications created and queued for dispatch.",
		},
		[]string{"channel", "category"},
	)

	channelsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_channels_skipped_total",
			Help: "Requested channels dropped during fan-out.",
		},
		[]string{"channel", "reason"},
	)
)

func recordCreated(notifications []*entity.Notification) {
	for _, n := range notifications {
		notificationsCreatedTotal.WithLabelValues(string(n.Channel), string(n.Category)).Inc()
	}
}

func recordSkipped(channel entity.Channel, reason string) {
	channelsSkippedTotal.WithLabelValues(string(channel), reason).Inc()
}
