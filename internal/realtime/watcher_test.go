package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/status"
)

const frame = `{"type":"message","chat_id":"c1","message":{"id":"m1","chat_id":"c1","body":"hi","profile_name":"bob","created_at":"2024-03-01T12:00:00Z"}}`

var upgrader = websocket.Upgrader{}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func fastRetry() backoff.BackOff {
	return backoff.NewConstantBackOff(10 * time.Millisecond)
}

func nextEvent(t *testing.T, ch <-chan bus.Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		e, ok := evt.Payload.(Event)
		if !ok {
			t.Fatalf("payload type = %T", evt.Payload)
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for realtime event")
	}
	return Event{}
}

func TestWatcherPublishesMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer t0k" {
			t.Errorf("Authorization = %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"typing","chat_id":"c1"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	b := bus.New()
	events, unsub := b.Subscribe("realtime.", 8)
	defer unsub()
	m := status.NewMachine(b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	w := New(wsURL(srv), "t0k", b, m, nil, WithBackoff(fastRetry))
	go func() { done <- w.Run(ctx) }()

	e := nextEvent(t, events)
	if e.ChatID != "c1" || e.Message.ID != "m1" || e.Message.Body != "hi" {
		t.Errorf("event = %+v", e)
	}
	if m.Current() != status.Connected {
		t.Errorf("state = %s, want CONNECTED", m.Current())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if m.Current() != status.Disconnected {
		t.Errorf("state = %s, want DISCONNECTED", m.Current())
	}
}

func TestWatcherReconnects(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns.Add(1)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
		_ = conn.Close()
	}))
	defer srv.Close()

	b := bus.New()
	events, unsub := b.Subscribe("realtime.", 8)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := New(wsURL(srv), "", b, status.NewMachine(b), nil, WithBackoff(fastRetry))
	go func() { _ = w.Run(ctx) }()

	nextEvent(t, events)
	nextEvent(t, events)
	if n := conns.Load(); n < 2 {
		t.Errorf("connections = %d, want at least 2", n)
	}
}

func TestWatcherUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := status.NewMachine(nil)
	w := New(wsURL(srv), "expired", nil, m, nil, WithBackoff(fastRetry))
	err := w.Run(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Run() = %v, want ErrUnauthorized", err)
	}
	if m.Current() != status.Unauthorized {
		t.Errorf("state = %s, want UNAUTHORIZED", m.Current())
	}
}

func TestWatcherGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := status.NewMachine(nil)
	w := New(wsURL(srv), "", nil, m, nil, WithBackoff(func() backoff.BackOff {
		return backoff.WithMaxRetries(fastRetry(), 2)
	}))
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("Run() = nil, want error")
	}
	if m.Current() != status.Error {
		t.Errorf("state = %s, want ERROR", m.Current())
	}
}
