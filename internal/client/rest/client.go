// Package rest is the authenticated HTTP client for the taskstream API.
// Calls carry the stored session token, time out client-side, and funnel
// 401/403 responses into the global clear-session-and-reauthenticate flow.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskapp/taskstream/internal/client/session"
	"github.com/taskapp/taskstream/internal/core/domain"
)

// DefaultTimeout bounds each request client-side.
const DefaultTimeout = 10 * time.Second

// ErrTimeout marks a request that hit the client-side deadline, so callers
// can report it distinctly from server failures.
var ErrTimeout = errors.New("request timed out")

// APIError is a non-2xx response surfaced to the caller.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Config tunes the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the taskstream REST API. OnAuthExpired runs after any
// 401/403 response, once the stored session has been cleared.
type Client struct {
	cfg           Config
	store         *session.Store
	httpc         *http.Client
	onAuthExpired func()
	log           zerolog.Logger
}

func NewClient(cfg Config, store *session.Store, onAuthExpired func(), log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:           cfg,
		store:         store,
		httpc:         &http.Client{},
		onAuthExpired: onAuthExpired,
		log:           log,
	}
}

// AuthResult is the server's answer to login, register, and refresh.
type AuthResult struct {
	Token string          `json:"token"`
	User  *domain.Profile `json:"user"`
}

// CreateTaskInput is the payload for task creation.
type CreateTaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority,omitempty"`
	AssignedTo  int64  `json:"assignedTo,omitempty"`
}

// UpdateTaskInput is the payload for a full task update.
type UpdateTaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
	AssignedTo  int64  `json:"assignedTo,omitempty"`
}

func (c *Client) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	var out AuthResult
	in := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", in, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	var out AuthResult
	in := map[string]string{"username": username, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/register", in, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshSession renews the current token. Satisfies session.Refresher.
func (c *Client) RefreshSession(ctx context.Context) (string, *domain.Profile, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, &out, true); err != nil {
		return "", nil, err
	}
	return out.Token, out.User, nil
}

func (c *Client) ListTasks(ctx context.Context) ([]*domain.Task, error) {
	var out []*domain.Task
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateTask(ctx context.Context, in CreateTaskInput) (*domain.Task, error) {
	var out domain.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", in, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTask(ctx context.Context, id int64, in UpdateTaskInput) (*domain.Task, error) {
	var out domain.Task
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/tasks/%d", id), in, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/tasks/%d", id), nil, nil, true)
}

func (c *Client) ListUsers(ctx context.Context) ([]*domain.Profile, error) {
	var out []*domain.Profile
	if err := c.do(ctx, http.MethodGet, "/users", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, authed bool) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		// Load re-validates; an expired stored token is cleared and the
		// request goes out unauthenticated for the server to reject.
		if tok, _ := c.store.Load(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s %s: %w", method, path, ErrTimeout)
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("request rejected, clearing session")
		c.store.Clear()
		if c.onAuthExpired != nil {
			c.onAuthExpired()
		}
		return &APIError{Status: resp.StatusCode, Message: readErrorMessage(resp)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: readErrorMessage(resp)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// readErrorMessage extracts the server's {"error": "..."} envelope, falling
// back to the raw body or status text.
func readErrorMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(raw) == 0 {
		return http.StatusText(resp.StatusCode)
	}
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
		return envelope.Error
	}
	return string(raw)
}
