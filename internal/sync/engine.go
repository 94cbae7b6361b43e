// Package sync persists what the chat cache and the realtime feed learn
// into the local store, so chats and messages stay searchable offline.
package sync

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/chats"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/realtime"
	"github.com/matheus3301/chatline/internal/store"
	"go.uber.org/zap"
)

// LastSyncKey is the setting holding the unix millisecond time of the last
// persisted batch.
const LastSyncKey = "sync.last_persisted_at"

const previewLen = 100

// Engine handles idempotent ingestion of chats and messages into the store.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new sync engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{db: db, bus: b, logger: logger}
}

// Start subscribes to chat and realtime events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	chatEvents, unsubChat := e.bus.Subscribe("chat.", 256)
	liveEvents, unsubLive := e.bus.Subscribe(bus.RealtimeMessage, 256)

	go func() {
		defer close(e.done)
		defer unsubChat()
		defer unsubLive()
		for {
			select {
			case evt := <-chatEvents:
				e.handleEvent(evt)
			case evt := <-liveEvents:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the event loop to exit.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

func (e *Engine) handleEvent(evt bus.Event) {
	var err error
	switch p := evt.Payload.(type) {
	case []domain.Chat:
		err = e.IngestChats(p)
	case chats.MessagesMerged:
		err = e.IngestMessages(p.ChatID, p.Messages)
	case realtime.Event:
		err = e.IngestMessages(p.ChatID, []domain.Message{p.Message})
	default:
		return
	}
	if err != nil {
		e.logger.Error("failed to persist event", zap.String("kind", evt.Kind), zap.Error(err))
	}
}

// IngestChats stores chats together with the messages they carry.
func (e *Engine) IngestChats(list []domain.Chat) error {
	rows := make([]store.Chat, 0, len(list))
	var msgs []store.Message
	for _, c := range list {
		row, err := store.ChatFrom(c)
		if err != nil {
			return err
		}
		row.LastMessagePreview = truncate(row.LastMessagePreview, previewLen)
		rows = append(rows, row)
		for _, m := range c.Messages {
			msgs = append(msgs, store.MessageFrom(m))
		}
	}
	if err := e.db.SaveBatch(rows, msgs); err != nil {
		return fmt.Errorf("save chats: %w", err)
	}
	e.checkpoint()
	e.logger.Debug("chats persisted", zap.Int("chats", len(rows)), zap.Int("messages", len(msgs)))
	return nil
}

// IngestMessages stores msgs of one chat and moves the chat's preview
// forward if one of them is newer.
func (e *Engine) IngestMessages(chatID string, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	rows := make([]store.Message, 0, len(msgs))
	newest := msgs[0]
	for _, m := range msgs {
		if m.ChatID == "" {
			m.ChatID = chatID
		}
		rows = append(rows, store.MessageFrom(m))
		if m.CreatedAt.After(newest.CreatedAt) {
			newest = m
		}
	}

	chat := store.Chat{
		ID:                 chatID,
		LastMessageAt:      newest.CreatedAt.UnixMilli(),
		LastMessagePreview: truncate(newest.Body, previewLen),
	}
	if existing, err := e.db.GetChat(chatID); err != nil {
		return fmt.Errorf("get chat: %w", err)
	} else if existing != nil {
		chat.Name, chat.Members = existing.Name, existing.Members
	}

	if err := e.db.SaveBatch([]store.Chat{chat}, rows); err != nil {
		return fmt.Errorf("save messages: %w", err)
	}
	e.checkpoint()
	return nil
}

// LastSync returns when the engine last persisted something.
func (e *Engine) LastSync() (time.Time, bool) {
	v, ok, err := e.db.GetSetting(LastSyncKey)
	if err != nil || !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (e *Engine) checkpoint() {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := e.db.SetSetting(LastSyncKey, now); err != nil {
		e.logger.Warn("failed to record sync checkpoint", zap.Error(err))
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}
