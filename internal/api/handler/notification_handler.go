package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/taskapp/taskstream/internal/api/metrics"
	"github.com/taskapp/taskstream/internal/api/middleware"
	"github.com/taskapp/taskstream/internal/core/ports"
	"github.com/taskapp/taskstream/internal/infrastructure/stream"
)

// NotificationHandler serves the server-push event stream and its status
// endpoint.
type NotificationHandler struct {
	hub       *stream.Hub
	notifier  ports.NotificationService
	jwtSecret string
	heartbeat time.Duration
	log       zerolog.Logger
}

func NewNotificationHandler(hub *stream.Hub, notifier ports.NotificationService, jwtSecret string, heartbeat time.Duration, log zerolog.Logger) *NotificationHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &NotificationHandler{
		hub:       hub,
		notifier:  notifier,
		jwtSecret: jwtSecret,
		heartbeat: heartbeat,
		log:       log,
	}
}

// Stream opens a long-lived event stream for the authenticated user.
//
// The token is accepted from the Authorization header or the token query
// parameter. The browser EventSource primitive cannot set headers, so
// credentials travel in the URL there. Last-Event-ID (header or query)
// resumes delivery after the identified event.
//
// @Summary      Server-push notification stream
// @Tags         notifications
// @Produce      text/event-stream
// @Param        token        query  string  false  "JWT when headers are unavailable"
// @Param        lastEventId  query  string  false  "Resume after this event ID"
// @Success      200
// @Failure      401  {object}  map[string]string
// @Router       /notifications/stream [get]
func (h *NotificationHandler) Stream(c echo.Context) error {
	token := bearerOrQueryToken(c)
	if token == "" {
		metrics.AuthFailuresTotal.WithLabelValues("missing_token").Inc()
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	username, _, err := middleware.VerifyToken(token, h.jwtSecret)
	if err != nil {
		metrics.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	lastEventID := c.Request().Header.Get("Last-Event-ID")
	if lastEventID == "" {
		lastEventID = c.QueryParam("lastEventId")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	// Initial handshake event; carries no ID so it never disturbs
	// Last-Event-ID tracking on the client.
	if err := writeSSE(resp, "", "connected", `{"status":"connected"}`); err != nil {
		return nil
	}

	sub := h.hub.Subscribe(username, lastEventID)
	defer sub.Cancel()

	h.log.Info().Str("username", username).Str("last_event_id", lastEventID).Msg("push stream opened")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Str("username", username).Msg("push stream closed by client")
			return nil
		case n, ok := <-sub.Events():
			if !ok {
				return nil
			}
			payload, err := json.Marshal(n)
			if err != nil {
				h.log.Error().Err(err).Str("event_id", n.ID).Msg("failed to encode notification")
				continue
			}
			if err := writeSSE(resp, n.ID, "notification", string(payload)); err != nil {
				h.log.Debug().Err(err).Str("username", username).Msg("push stream write failed")
				return nil
			}
		case <-heartbeat.C:
			// Comment frame keeps intermediaries from timing out the socket.
			if _, err := fmt.Fprint(resp, ": heartbeat\n\n"); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}

// Status reports the number of open streams on this instance and bus health.
//
// @Summary      Notification subsystem status
// @Tags         notifications
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /notifications/status [get]
func (h *NotificationHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"activeConnections": h.hub.ActiveConnections(),
		"messagingHealthy":  h.notifier.Healthy(c.Request().Context()),
	})
}

func bearerOrQueryToken(c echo.Context) string {
	if auth := c.Request().Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return strings.TrimSpace(c.QueryParam("token"))
}

func writeSSE(resp *echo.Response, id, event, data string) error {
	if id != "" {
		if _, err := fmt.Fprintf(resp, "id: %s\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	resp.Flush()
	return nil
}
