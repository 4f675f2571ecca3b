package handler

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/taskapp/taskstream/internal/core/domain"
	"github.com/taskapp/taskstream/internal/infrastructure/stream"
)

type stubNotificationService struct{}

func (stubNotificationService) Notify(context.Context, *domain.Notification) {}
func (stubNotificationService) Healthy(context.Context) bool                 { return true }

func streamToken(t *testing.T, username string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"uid": int64(1),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newStreamServer(t *testing.T) (*httptest.Server, *stream.Hub) {
	t.Helper()
	hub := stream.NewHub(zerolog.Nop())
	h := NewNotificationHandler(hub, stubNotificationService{}, "secret", time.Hour, zerolog.Nop())

	e := echo.New()
	e.GET("/notifications/stream", h.Stream)
	e.GET("/notifications/status", h.Status)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, hub
}

// readEvent reads one complete SSE frame, returning the event name and data.
func readEvent(t *testing.T, r *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("stream read: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if event != "" || data != "" {
				return event, data
			}
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestNotificationHandler_Stream_HandshakeAndDelivery(t *testing.T) {
	srv, hub := newStreamServer(t)

	resp, err := http.Get(srv.URL + "/notifications/stream?token=" + streamToken(t, "alice"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type: %s", ct)
	}

	r := bufio.NewReader(resp.Body)
	event, data := readEvent(t, r)
	if event != "connected" || !strings.Contains(data, "connected") {
		t.Fatalf("expected connected handshake, got %s %s", event, data)
	}

	// The subscription registers asynchronously with the request handler.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ActiveConnections() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	hub.Send(domain.NewNotification(domain.NotifyTaskCreated, "hello", "alice"))

	event, data = readEvent(t, r)
	if event != "notification" {
		t.Fatalf("expected notification event, got %s", event)
	}
	if !strings.Contains(data, domain.NotifyTaskCreated) || !strings.Contains(data, "hello") {
		t.Fatalf("unexpected payload: %s", data)
	}
}

func TestNotificationHandler_Stream_RejectsMissingToken(t *testing.T) {
	srv, _ := newStreamServer(t)

	resp, err := http.Get(srv.URL + "/notifications/stream")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestNotificationHandler_Stream_RejectsBadToken(t *testing.T) {
	srv, _ := newStreamServer(t)

	resp, err := http.Get(srv.URL + "/notifications/stream?token=not.a.token")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestNotificationHandler_Stream_AcceptsBearerHeader(t *testing.T) {
	srv, _ := newStreamServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/notifications/stream", nil)
	req.Header.Set("Authorization", "Bearer "+streamToken(t, "bob"))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestNotificationHandler_Status(t *testing.T) {
	srv, _ := newStreamServer(t)

	resp, err := http.Get(srv.URL + "/notifications/status")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
