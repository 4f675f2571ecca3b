package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/taskapp/taskstream/internal/core/domain"
	"github.com/taskapp/taskstream/internal/core/ports"
)

// notificationService routes notifications through the pub/sub bus so every
// instance (this one included, since the bus delivers to its own subscriber) can
// fan out to the recipient's live connections. When the bus is unreachable
// delivery degrades to local-only; a notification never fails the operation
// that triggered it.
type notificationService struct {
	publisher ports.Publisher
	hub       ports.Notifier
	log       zerolog.Logger
}

// NewNotificationService returns a NotificationService implementation.
func NewNotificationService(publisher ports.Publisher, hub ports.Notifier, log zerolog.Logger) ports.NotificationService {
	return &notificationService{publisher: publisher, hub: hub, log: log}
}

func (s *notificationService) Notify(ctx context.Context, n *domain.Notification) {
	if err := s.publisher.Publish(ctx, n); err != nil {
		s.log.Warn().Err(err).
			Str("type", n.Type).
			Str("recipient", n.Username).
			Msg("bus publish failed, delivering locally only")
		s.hub.Send(n)
		return
	}

	s.log.Debug().
		Str("type", n.Type).
		Str("recipient", n.Username).
		Str("event_id", n.ID).
		Msg("notification published")
}

func (s *notificationService) Healthy(ctx context.Context) bool {
	return s.publisher.Healthy(ctx)
}
