package events

import "log/slog"

// NewAuditObserver returns an observer that writes every lifecycle event to
// the structured log, giving operators a flat audit trail per notification.
func NewAuditObserver(logger *slog.Logger) Observer {
	return func(e Event) {
		attrs := []any{
			slog.String("event", string(e.Type)),
			slog.Time("at", e.At),
		}
		if e.NotificationID != "" {
			attrs = append(attrs, slog.String("notification_id", e.NotificationID))
		}
		if e.UserID != "" {
			attrs = append(attrs, slog.String("user_id", e.UserID))
		}
		if e.Channel != "" {
			attrs = append(attrs, slog.String("channel", e.Channel))
		}
		if e.Provider != "" {
			attrs = append(attrs, slog.String("provider", e.Provider))
		}
		if e.Attempt > 0 {
			attrs = append(attrs, slog.Int("attempt", e.Attempt))
		}
		if e.Detail != "" {
			attrs = append(attrs, slog.String("detail", e.Detail))
		}
		logger.Info("notification audit", attrs...)
	}
}
