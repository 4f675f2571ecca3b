package ports

import (
	"context"

	"github.com/taskapp/taskstream/internal/core/domain"
)

// Publisher pushes a notification onto the cross-instance message bus.
type Publisher interface {
	Publish(ctx context.Context, n *domain.Notification) error
	Healthy(ctx context.Context) bool
}

// Notifier fans a notification out to the recipient's live push connections
// on this instance.
type Notifier interface {
	Send(n *domain.Notification)
}

// NotificationService is the task services' outbound notification port.
type NotificationService interface {
	Notify(ctx context.Context, n *domain.Notification)
	Healthy(ctx context.Context) bool
}
