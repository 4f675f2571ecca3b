// Package taskcache holds the client's read-through copy of the task list.
// Writes mutate it optimistically; notifications invalidate it wholesale.
package taskcache

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/taskapp/taskstream/internal/client/rest"
	"github.com/taskapp/taskstream/internal/core/domain"
)

// API is the slice of the REST client the cache consumes.
type API interface {
	ListTasks(ctx context.Context) ([]*domain.Task, error)
	CreateTask(ctx context.Context, in rest.CreateTaskInput) (*domain.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// Cache is the in-memory task list. The server stays authoritative: a full
// FetchAll replaces everything, and overlapping refetches settle by last
// write, which is acceptable because the next notification refetches again.
type Cache struct {
	api API
	log zerolog.Logger

	mu      sync.Mutex
	tasks   []*domain.Task
	lastErr string
}

func NewCache(api API, log zerolog.Logger) *Cache {
	return &Cache{api: api, log: log}
}

// Tasks returns a snapshot of the current list.
func (c *Cache) Tasks() []*domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*domain.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// Err returns the most recent fetch error message, or "".
func (c *Cache) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// FetchAll replaces the whole list with the server's. On failure the list
// is left alone and the error message surfaces through Err.
func (c *Cache) FetchAll(ctx context.Context) error {
	tasks, err := c.api.ListTasks(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err.Error()
		return err
	}
	c.tasks = tasks
	c.lastErr = ""
	return nil
}

// Create posts the task and appends the server's record to the list: an
// optimistic single-item append, not a refetch.
func (c *Cache) Create(ctx context.Context, in rest.CreateTaskInput) (*domain.Task, error) {
	created, err := c.api.CreateTask(ctx, in)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err.Error()
		return nil, err
	}
	c.tasks = append(c.tasks, created)
	c.lastErr = ""
	return created, nil
}

// Remove deletes server-side, then drops the id from the list.
func (c *Cache) Remove(ctx context.Context, id int64) error {
	err := c.api.DeleteTask(ctx, id)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err.Error()
		return err
	}
	kept := c.tasks[:0]
	for _, t := range c.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	c.tasks = kept
	c.lastErr = ""
	return nil
}

// OnExternalChange is the notification client's refresh callback: always a
// wholesale refetch, never a partial merge.
func (c *Cache) OnExternalChange(ctx context.Context) {
	if err := c.FetchAll(ctx); err != nil {
		c.log.Warn().Err(err).Msg("refresh after notification failed")
	}
}
