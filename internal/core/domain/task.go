package domain

import (
	"errors"
	"time"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
)

// TaskPriority ranks how urgently a task needs attention.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

var ErrTaskNotFound = errors.New("task not found")
var ErrForbidden = errors.New("access forbidden")
var ErrInvalidStatus = errors.New("invalid task status")
var ErrInvalidPriority = errors.New("invalid task priority")

// Valid reports whether the status is one of the known lifecycle states.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Valid reports whether the priority is one of the known ranks.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task is the core aggregate root. Assignee and creator usernames are
// denormalised onto the task so list responses need no joins.
type Task struct {
	ID                 int64        `json:"id" bson:"_id"`
	Title              string       `json:"title" bson:"title"`
	Description        string       `json:"description" bson:"description"`
	Status             TaskStatus   `json:"status" bson:"status"`
	Priority           TaskPriority `json:"priority" bson:"priority"`
	AssignedToID       int64        `json:"assignedToId" bson:"assigned_to_id"`
	AssignedToUsername string       `json:"assignedToUsername" bson:"assigned_to_username"`
	CreatedByID        int64        `json:"createdById" bson:"created_by_id"`
	CreatedByUsername  string       `json:"createdByUsername" bson:"created_by_username"`
	CreatedAt          time.Time    `json:"createdAt" bson:"created_at"`
	UpdatedAt          time.Time    `json:"updatedAt" bson:"updated_at"`
}

// CanBeUpdatedBy reports whether the user may modify the task. Creators and
// current assignees may update; anyone else is rejected.
func (t *Task) CanBeUpdatedBy(userID int64) bool {
	return t.CreatedByID == userID || t.AssignedToID == userID
}

// CanBeDeletedBy reports whether the user may delete the task. Only the
// creator may delete.
func (t *Task) CanBeDeletedBy(userID int64) bool {
	return t.CreatedByID == userID
}
