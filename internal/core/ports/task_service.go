package ports

import (
	"context"

	"github.com/taskapp/taskstream/internal/core/domain"
)

// CreateTaskInput carries the data needed to create a task. AssignedTo is
// optional; when zero the task is assigned to its creator. An empty
// Priority defaults to MEDIUM.
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    string
	AssignedTo  int64
}

// UpdateTaskInput carries a full task update. Status and AssignedTo are
// optional; empty/zero values leave the current value untouched.
type UpdateTaskInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	AssignedTo  int64
}

// TaskService implements task CRUD scoped to the acting user.
type TaskService interface {
	CreateTask(ctx context.Context, username string, input CreateTaskInput) (*domain.Task, error)
	ListTasks(ctx context.Context, username string) ([]*domain.Task, error)
	UpdateTask(ctx context.Context, taskID int64, username string, input UpdateTaskInput) (*domain.Task, error)
	DeleteTask(ctx context.Context, taskID int64, username string) error
}
