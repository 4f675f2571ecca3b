// Package stream implements the client half of the server-push
// notification channel: a reconnecting event-stream subscription that
// filters task events into a refresh callback.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskapp/taskstream/internal/core/domain"
)

// State is the connection lifecycle of the client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnectPending
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnectPending:
		return "reconnect-pending"
	default:
		return "disconnected"
	}
}

// DefaultReconnectDelay is the fixed delay before a reconnect attempt.
const DefaultReconnectDelay = 5 * time.Second

// Session exposes the live session state the client gates connections on.
type Session interface {
	Token() string
	User() *domain.Profile
}

// Config tunes the client.
type Config struct {
	// URL is the stream endpoint, without credentials.
	URL string
	// ReconnectDelay is the fixed wait before the single reconnect
	// attempt scheduled after a terminal transport error.
	ReconnectDelay time.Duration
}

// Client maintains one push connection per active session. Inbound
// notification events of the five task kinds invoke onTaskUpdate exactly
// once each; everything else is ignored. On transport failure exactly one
// reconnect timer is pending at any time.
type Client struct {
	session      Session
	cfg          Config
	onTaskUpdate func()
	httpc        *http.Client
	log          zerolog.Logger

	mu             sync.Mutex
	state          State
	cancel         context.CancelFunc
	reconnectTimer *time.Timer
	lastEventID    string
	closed         bool
}

// NewClient builds a client. onTaskUpdate is invoked from the stream
// goroutine; callers handle their own synchronization.
func NewClient(session Session, cfg Config, onTaskUpdate func(), log zerolog.Logger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	return &Client{
		session:      session,
		cfg:          cfg,
		onTaskUpdate: onTaskUpdate,
		// No overall timeout: the stream lives until closed. Closing the
		// request context is the only cancellation primitive.
		httpc: &http.Client{},
		log:   log,
	}
}

// Connected reports whether the stream is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

// CurrentState returns the lifecycle state, for observability.
func (c *Client) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the stream when a session is present and no connection or
// pending reconnect already exists. Safe to call repeatedly.
func (c *Client) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectLocked()
}

func (c *Client) connectLocked() {
	if c.closed || c.state == StateConnected || c.state == StateConnecting {
		return
	}
	tok := c.session.Token()
	if tok == "" || c.session.User() == nil {
		return
	}

	c.stopReconnectTimerLocked()
	c.state = StateConnecting

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(ctx, tok, c.lastEventID)
}

// WakeUp is the visibility-recovery hook: when the hosting context comes
// back to the foreground with the stream down and a session present, it
// reconnects immediately instead of waiting for the timer.
func (c *Client) WakeUp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConnected || c.state == StateConnecting {
		return
	}
	c.stopReconnectTimerLocked()
	c.state = StateDisconnected
	c.connectLocked()
}

// Disconnect closes the active connection and cancels any pending
// reconnect. The client may connect again later; call this when the
// session ends.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

// Close is Disconnect plus a terminal latch: no future Connect succeeds.
// No timers or goroutines survive.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.teardownLocked()
}

func (c *Client) teardownLocked() {
	c.stopReconnectTimerLocked()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = StateDisconnected
}

func (c *Client) stopReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Client) run(ctx context.Context, tok, lastEventID string) {
	streamURL := c.buildURL(tok, lastEventID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		c.log.Error().Err(err).Msg("stream request build failed")
		c.handleDisconnect(ctx)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("stream connection failed")
		c.handleDisconnect(ctx)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Msg("stream rejected")
		c.handleDisconnect(ctx)
		return
	}

	c.markConnected(ctx)
	c.log.Info().Msg("push stream connected")

	c.readLoop(ctx, resp)

	c.log.Info().Msg("push stream closed")
	c.handleDisconnect(ctx)
}

// readLoop consumes SSE frames until the stream ends or ctx is cancelled.
func (c *Client) readLoop(ctx context.Context, resp *http.Response) {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event, id string
	var data []string

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()

		switch {
		case line == "":
			if event != "" || len(data) > 0 {
				c.dispatch(ctx, event, id, strings.Join(data, "\n"))
			}
			event, id, data = "", "", nil
		case strings.HasPrefix(line, ":"):
			// heartbeat comment
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		}
	}
}

func (c *Client) dispatch(ctx context.Context, event, id, data string) {
	switch event {
	case "connected":
		c.markConnected(ctx)
	case "notification":
		if id != "" {
			c.mu.Lock()
			c.lastEventID = id
			c.mu.Unlock()
		}

		var n domain.Notification
		if err := json.Unmarshal([]byte(data), &n); err != nil {
			// Never crash the stream on a bad payload.
			c.log.Warn().Err(err).Msg("dropping unparseable notification")
			return
		}
		if !n.IsTaskEvent() {
			return
		}
		c.log.Debug().Str("type", n.Type).Str("event_id", n.ID).Msg("task notification received")
		c.onTaskUpdate()
	}
}

func (c *Client) markConnected(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// A frame the scanner buffered before teardown cancelled ctx must not
	// resurrect the connected state; that would block future connects.
	if ctx.Err() != nil {
		return
	}
	c.state = StateConnected
}

// handleDisconnect transitions to reconnect-pending and arms the single
// reconnect timer. A failure while a timer is already pending never arms a
// second one; an intentional teardown arms none.
func (c *Client) handleDisconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || ctx.Err() != nil {
		// Torn down on purpose; teardownLocked already set the state.
		return
	}
	if c.reconnectTimer != nil {
		return
	}

	c.state = StateReconnectPending
	c.cancel = nil
	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.reconnectTimer = nil
		if c.closed || c.state != StateReconnectPending {
			return
		}
		c.state = StateDisconnected
		// The session may have ended while the timer was pending.
		if c.session.Token() == "" || c.session.User() == nil {
			return
		}
		c.connectLocked()
	})
}

func (c *Client) buildURL(tok, lastEventID string) string {
	u := fmt.Sprintf("%s?token=%s", c.cfg.URL, url.QueryEscape(tok))
	if lastEventID != "" {
		u += "&lastEventId=" + url.QueryEscape(lastEventID)
	}
	return u
}
