package notify

import (
	"context"

	"github.com/rs/zerolog"

	"billing-reconciler/internal/domain/model"
)

// LogSender writes notifications to the log. Used when no brokers are configured.
type LogSender struct {
	log *zerolog.Logger
}

func NewLogSender(logger *zerolog.Logger) *LogSender {
	l := logger.With().Str("component", "LogSender").Logger()
	return &LogSender{log: &l}
}

func (s *LogSender) Send(ctx context.Context, n model.NotificationRequest) error {
	s.log.Info().
		Str("event_id", n.ID).
		Str("user_id", n.UserID).
		Str("subscription_id", n.SubscriptionID).
		Str("kind", string(n.Kind)).
		Int("threshold_days", n.ThresholdDays).
		Time("end_at", n.EndAt).
		Str("message", n.Message).
		Msg("notification")
	return nil
}
