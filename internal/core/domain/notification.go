package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification types emitted over the server-push stream. Only the task
// kinds trigger a client-side refresh; anything else is informational.
const (
	NotifyTaskCreated    = "TASK_CREATED"
	NotifyTaskUpdated    = "TASK_UPDATED"
	NotifyTaskDeleted    = "TASK_DELETED"
	NotifyTaskAssigned   = "TASK_ASSIGNED"
	NotifyTaskReassigned = "TASK_REASSIGNED"
)

var taskNotificationTypes = map[string]struct{}{
	NotifyTaskCreated:    {},
	NotifyTaskUpdated:    {},
	NotifyTaskDeleted:    {},
	NotifyTaskAssigned:   {},
	NotifyTaskReassigned: {},
}

// IsTaskNotification reports whether the type is one of the five task kinds.
func IsTaskNotification(typ string) bool {
	_, ok := taskNotificationTypes[typ]
	return ok
}

// Notification is a transient event delivered to a single user over the
// push stream and across instances via the pub/sub bus. Never persisted.
type Notification struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	Message          string    `json:"message"`
	TaskID           string    `json:"taskId,omitempty"`
	TaskTitle        string    `json:"taskTitle,omitempty"`
	Username         string    `json:"username"`
	CreatorUsername  string    `json:"creatorUsername,omitempty"`
	AssignedUsername string    `json:"assignedUsername,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewNotification builds a notification addressed to username.
func NewNotification(typ, message, username string) *Notification {
	return &Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Message:   message,
		Username:  username,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
}

// IsTaskEvent reports whether this notification should trigger a task refresh.
func (n *Notification) IsTaskEvent() bool {
	return IsTaskNotification(n.Type)
}
