// Package outbox posts queued messages to the backend.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/apierr"
	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/media"
	"github.com/matheus3301/chatline/internal/store"
	"go.uber.org/zap"
)

// SendFailure is shown for a message the server did not accept.
const SendFailure = "Failed to send message."

// Poster posts one message. *api.Client implements it.
type Poster interface {
	PostMessage(ctx context.Context, chatID, body string, image *api.Upload) (*domain.Message, error)
}

// Merger receives messages the server accepted. *chats.Cache implements it.
type Merger interface {
	UpdateChatMessages(chatID string, msgs []domain.Message) bool
}

// Sent is the payload of bus.OutboxSent.
type Sent struct {
	ClientMsgID string
	Message     domain.Message
}

// Failed is the payload of bus.OutboxFailed.
type Failed struct {
	ClientMsgID string
	ChatID      string
	Reason      string
}

// Queue adds a message to the outbox and returns its client id.
func Queue(db *store.DB, chatID, body, imagePath string) (string, error) {
	if body == "" && imagePath == "" {
		return "", fmt.Errorf("message needs a body or an image")
	}
	id := uuid.NewString()
	if err := db.QueueOutbox(id, chatID, body, imagePath); err != nil {
		return "", fmt.Errorf("queue message: %w", err)
	}
	return id, nil
}

// Sender drains the outbox.
type Sender struct {
	db       *store.DB
	poster   Poster
	merger   Merger
	bus      *bus.Bus
	logger   *zap.Logger
	maxDim   int
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSender creates an outbox sender. merger may be nil. Images are shrunk
// to maxDim before upload.
func NewSender(db *store.DB, poster Poster, merger Merger, b *bus.Bus, logger *zap.Logger, maxDim int) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		db:       db,
		poster:   poster,
		merger:   merger,
		bus:      b,
		logger:   logger,
		maxDim:   maxDim,
		interval: 500 * time.Millisecond,
	}
}

// Start begins polling the outbox for queued messages.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the sender loop and waits for it to exit.
func (s *Sender) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Drain(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Drain posts every queued message once and reports how many were sent and
// how many failed. Failed messages are not retried.
func (s *Sender) Drain(ctx context.Context) (sent, failed int) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return 0, 0
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return sent, failed
		}
		if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}
		if s.send(ctx, entry) {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}

func (s *Sender) send(ctx context.Context, entry store.OutboxEntry) bool {
	log := s.logger.With(zap.String("client_msg_id", entry.ClientMsgID), zap.String("chat_id", entry.ChatID))

	var upload *api.Upload
	if entry.ImagePath != "" {
		var err error
		if upload, err = media.Prepare(entry.ImagePath, s.maxDim); err != nil {
			s.fail(log, entry, err, err.Error())
			return false
		}
	}

	msg, err := s.poster.PostMessage(ctx, entry.ChatID, entry.Body, upload)
	if err != nil {
		s.fail(log, entry, err, apierr.Message(err, SendFailure))
		return false
	}

	if err := s.db.MarkOutboxSent(entry.ClientMsgID, msg.ID); err != nil {
		log.Error("failed to mark sent", zap.Error(err))
	}
	row := store.MessageFrom(*msg)
	if err := s.db.UpsertMessage(&row); err != nil {
		log.Error("failed to store sent message", zap.Error(err))
	}
	if s.merger != nil {
		s.merger.UpdateChatMessages(entry.ChatID, []domain.Message{*msg})
	}

	log.Info("message sent", zap.String("server_msg_id", msg.ID))
	s.bus.Emit(bus.OutboxSent, Sent{ClientMsgID: entry.ClientMsgID, Message: *msg})
	return true
}

func (s *Sender) fail(log *zap.Logger, entry store.OutboxEntry, err error, reason string) {
	log.Error("failed to send message", zap.Error(err))
	if markErr := s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error()); markErr != nil {
		log.Error("failed to mark failed", zap.Error(markErr))
	}
	s.bus.Emit(bus.OutboxFailed, Failed{ClientMsgID: entry.ClientMsgID, ChatID: entry.ChatID, Reason: reason})
}
