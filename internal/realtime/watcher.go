// Package realtime follows the backend's WebSocket feed and republishes new
// messages on the bus.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/status"
	"go.uber.org/zap"
)

// ErrUnauthorized is returned by Run when the server rejects the token.
var ErrUnauthorized = errors.New("realtime: token rejected")

// FrameMessage is the frame type carrying a new or edited message.
const FrameMessage = "message"

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

// Frame is one JSON frame of the feed.
type Frame struct {
	Type    string          `json:"type"`
	ChatID  string          `json:"chat_id"`
	Message *domain.Message `json:"message"`
}

// Event is the payload of bus.RealtimeMessage.
type Event struct {
	ChatID  string
	Message domain.Message
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithBackoff replaces the reconnect policy. newPolicy is called once per Run.
func WithBackoff(newPolicy func() backoff.BackOff) Option {
	return func(w *Watcher) { w.newPolicy = newPolicy }
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(w *Watcher) { w.dialer = d }
}

// Watcher keeps one connection to the feed open, reconnecting with
// exponential backoff until its context ends.
type Watcher struct {
	url       string
	token     string
	dialer    *websocket.Dialer
	newPolicy func() backoff.BackOff
	bus       *bus.Bus
	state     *status.Machine
	validate  *validator.Validate
	logger    *zap.Logger
}

// New creates a watcher for the feed at wsURL.
func New(wsURL, token string, b *bus.Bus, state *status.Machine, logger *zap.Logger, opts ...Option) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		url:      wsURL,
		token:    token,
		dialer:   websocket.DefaultDialer,
		bus:      b,
		state:    state,
		validate: validator.New(),
		logger:   logger,
		newPolicy: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = time.Second
			bo.MaxInterval = time.Minute
			bo.MaxElapsedTime = 0
			return bo
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run connects and reads frames until ctx is done, which is a clean exit.
// It gives up with ErrUnauthorized on an auth rejection, or with the last
// error once the backoff policy stops.
func (w *Watcher) Run(ctx context.Context) error {
	policy := w.newPolicy()
	for {
		w.transition(status.Connecting)
		conn, err := w.dial(ctx)
		if err == nil {
			w.transition(status.Connected)
			policy.Reset()
			err = w.read(ctx, conn)
		}

		switch {
		case ctx.Err() != nil:
			w.transition(status.Disconnected)
			return nil
		case errors.Is(err, ErrUnauthorized):
			w.transition(status.Unauthorized)
			return err
		}

		w.transition(status.Reconnecting)
		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			w.transition(status.Error)
			return fmt.Errorf("realtime: giving up: %w", err)
		}
		w.logger.Warn("realtime connection lost", zap.Error(err), zap.Duration("retry_in", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.transition(status.Disconnected)
			return nil
		case <-timer.C:
		}
	}
}

func (w *Watcher) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if w.token != "" {
		header.Set("Authorization", "Bearer "+w.token)
	}
	conn, resp, err := w.dialer.DialContext(ctx, w.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("dial %s: %w", w.url, err)
	}
	return conn, nil
}

func (w *Watcher) read(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go w.keepalive(ctx, conn, done)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		w.handle(data)
	}
}

// keepalive pings the server and closes conn when ctx ends so the blocked
// read returns.
func (w *Watcher) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer func() { _ = conn.Close() }()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (w *Watcher) handle(data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		w.logger.Warn("dropping undecodable frame", zap.Error(err))
		return
	}
	if f.Type != FrameMessage {
		w.logger.Debug("ignoring frame", zap.String("type", f.Type))
		return
	}
	if f.Message == nil {
		w.logger.Warn("message frame without message", zap.String("chat_id", f.ChatID))
		return
	}
	if err := w.validate.Struct(f.Message); err != nil {
		w.logger.Warn("dropping invalid message", zap.Error(err))
		return
	}
	chatID := f.ChatID
	if chatID == "" {
		chatID = f.Message.ChatID
	}
	w.bus.Emit(bus.RealtimeMessage, Event{ChatID: chatID, Message: *f.Message})
}

func (w *Watcher) transition(to status.State) {
	if w.state == nil {
		return
	}
	if err := w.state.Transition(to); err != nil {
		w.logger.Warn("connection state", zap.Error(err))
	}
}
