package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskapp/taskstream/internal/core/domain"
	"github.com/taskapp/taskstream/internal/core/ports"
)

// TaskService implements task CRUD and emits the notifications that drive
// live updates on connected clients.
type TaskService struct {
	tasks    ports.TaskRepository
	users    ports.UserRepository
	notifier ports.NotificationService
	logger   zerolog.Logger
}

func NewTaskService(tasks ports.TaskRepository, users ports.UserRepository, notifier ports.NotificationService, logger zerolog.Logger) *TaskService {
	return &TaskService{tasks: tasks, users: users, notifier: notifier, logger: logger}
}

// CreateTask creates a task for the acting user. When no assignee is given
// the task is assigned to its creator. The creator always receives
// TASK_CREATED; a distinct assignee additionally receives TASK_ASSIGNED.
func (s *TaskService) CreateTask(ctx context.Context, username string, input ports.CreateTaskInput) (*domain.Task, error) {
	creator, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	assignee := creator
	if input.AssignedTo != 0 && input.AssignedTo != creator.ID {
		assignee, err = s.users.FindByID(ctx, input.AssignedTo)
		if err != nil {
			return nil, err
		}
	}

	priority := domain.PriorityMedium
	if input.Priority != "" {
		priority = domain.TaskPriority(input.Priority)
		if !priority.Valid() {
			return nil, domain.ErrInvalidPriority
		}
	}

	now := time.Now().UTC()
	task := &domain.Task{
		Title:              input.Title,
		Description:        input.Description,
		Status:             domain.StatusPending,
		Priority:           priority,
		AssignedToID:       assignee.ID,
		AssignedToUsername: assignee.Username,
		CreatedByID:        creator.ID,
		CreatedByUsername:  creator.Username,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	created, err := s.tasks.Create(ctx, task)
	if err != nil {
		s.logger.Error().Err(err).Str("title", input.Title).Msg("failed to create task")
		return nil, err
	}

	s.logger.Info().Int64("task_id", created.ID).Str("creator", creator.Username).Str("assignee", assignee.Username).Msg("task created")

	s.notifier.Notify(ctx, s.taskNotification(domain.NotifyTaskCreated,
		fmt.Sprintf("Task '%s' created", created.Title), creator.Username, created))
	if assignee.ID != creator.ID {
		s.notifier.Notify(ctx, s.taskNotification(domain.NotifyTaskAssigned,
			fmt.Sprintf("Task '%s' assigned to you", created.Title), assignee.Username, created))
	}

	return created, nil
}

// ListTasks returns every task the user created or is assigned to.
func (s *TaskService) ListTasks(ctx context.Context, username string) ([]*domain.Task, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.tasks.ListForUser(ctx, user.ID)
}

// UpdateTask applies a full update. Creators and current assignees may
// update; only the creator may reassign.
func (s *TaskService) UpdateTask(ctx context.Context, taskID int64, username string, input ports.UpdateTaskInput) (*domain.Task, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.CanBeUpdatedBy(user.ID) {
		return nil, domain.ErrForbidden
	}

	originalAssignee := task.AssignedToID
	originalAssigneeName := task.AssignedToUsername

	task.Title = input.Title
	task.Description = input.Description

	statusChanged := false
	if input.Status != "" {
		next := domain.TaskStatus(input.Status)
		if !next.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		statusChanged = next != task.Status
		task.Status = next
	}

	if input.Priority != "" {
		next := domain.TaskPriority(input.Priority)
		if !next.Valid() {
			return nil, domain.ErrInvalidPriority
		}
		task.Priority = next
	}

	assigneeChanged := false
	if input.AssignedTo != 0 && task.CreatedByID == user.ID && input.AssignedTo != task.AssignedToID {
		newAssignee, err := s.users.FindByID(ctx, input.AssignedTo)
		if err != nil {
			return nil, err
		}
		task.AssignedToID = newAssignee.ID
		task.AssignedToUsername = newAssignee.Username
		assigneeChanged = true
	}

	task.UpdatedAt = time.Now().UTC()
	if err := s.tasks.Update(ctx, task); err != nil {
		s.logger.Error().Err(err).Int64("task_id", taskID).Msg("failed to update task")
		return nil, err
	}

	s.logger.Info().Int64("task_id", taskID).Str("updated_by", username).Str("status", string(task.Status)).Msg("task updated")

	// Notify the creator unless they made the change themselves.
	if task.CreatedByID != user.ID {
		s.notifier.Notify(ctx, s.taskNotification(domain.NotifyTaskUpdated,
			fmt.Sprintf("Task '%s' updated", task.Title), task.CreatedByUsername, task))
	}
	// The original assignee learns about status changes made by others.
	if statusChanged && originalAssignee != user.ID {
		s.notifier.Notify(ctx, s.taskNotification(domain.NotifyTaskUpdated,
			fmt.Sprintf("Task '%s' updated", task.Title), originalAssigneeName, task))
	}
	// A new assignee (other than the updater) gets TASK_REASSIGNED.
	if assigneeChanged && task.AssignedToID != user.ID {
		s.notifier.Notify(ctx, s.taskNotification(domain.NotifyTaskReassigned,
			fmt.Sprintf("Task '%s' reassigned to you", task.Title), task.AssignedToUsername, task))
	}

	return task, nil
}

// DeleteTask removes a task. Only the creator may delete; notifications go
// out after the delete has committed.
func (s *TaskService) DeleteTask(ctx context.Context, taskID int64, username string) error {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if !task.CanBeDeletedBy(user.ID) {
		return domain.ErrForbidden
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		s.logger.Error().Err(err).Int64("task_id", taskID).Msg("failed to delete task")
		return err
	}

	s.logger.Info().Int64("task_id", taskID).Str("deleted_by", username).Msg("task deleted")

	s.notifier.Notify(ctx, s.taskNotification(domain.NotifyTaskDeleted,
		fmt.Sprintf("Task '%s' deleted", task.Title), task.CreatedByUsername, task))
	if task.AssignedToID != task.CreatedByID {
		s.notifier.Notify(ctx, s.taskNotification(domain.NotifyTaskDeleted,
			fmt.Sprintf("Task '%s' deleted", task.Title), task.AssignedToUsername, task))
	}

	return nil
}

func (s *TaskService) taskNotification(typ, message, recipient string, task *domain.Task) *domain.Notification {
	n := domain.NewNotification(typ, message, recipient)
	n.TaskID = strconv.FormatInt(task.ID, 10)
	n.TaskTitle = task.Title
	n.CreatorUsername = task.CreatedByUsername
	n.AssignedUsername = task.AssignedToUsername
	return n
}
