package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/matheus3301/chatline/internal/apierr"
	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/chats"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/listing"
	"github.com/matheus3301/chatline/internal/realtime"
	"go.uber.org/zap"
)

// Follower keeps the activated chat caught up with the realtime feed.
// Messages for other chats are merged straight into the cache.
type Follower struct {
	cache  *chats.Cache
	src    chats.MessageSource
	me     domain.User
	bus    *bus.Bus
	logger *zap.Logger

	mu  sync.Mutex
	rec *chats.Reconciler

	cancel context.CancelFunc
	done   chan struct{}
}

// NewFollower creates a follower reading message pages from src.
func NewFollower(cache *chats.Cache, src chats.MessageSource, me domain.User, b *bus.Bus, logger *zap.Logger) *Follower {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Follower{cache: cache, src: src, me: me, bus: b, logger: logger}
}

// Open fetches and activates chatID and loads its newest page of messages.
func (f *Follower) Open(ctx context.Context, chatID string) (*chats.Reconciler, error) {
	chat, err := f.cache.Fetch(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("fetch chat %s: %w", chatID, err)
	}

	// The previous chat's loads must be cancelled before another chat is
	// activated, or their pages would land in it.
	f.mu.Lock()
	prev := f.rec
	f.rec = nil
	f.mu.Unlock()
	if prev != nil {
		prev.Reset()
	}

	f.cache.Activate(chat)
	rec := chats.NewReconciler(chatID, f.me, f.src, f.cache, f.bus, f.logger)
	f.mu.Lock()
	f.rec = rec
	f.mu.Unlock()

	if err := rec.LoadOlder(ctx); err != nil {
		return rec, fmt.Errorf("load messages of %s: %w", chatID, err)
	}
	f.logger.Info("following chat", zap.String("chat_id", chatID), zap.Int("messages", len(rec.Messages())))
	return rec, nil
}

// Close deactivates the followed chat.
func (f *Follower) Close() {
	f.mu.Lock()
	rec := f.rec
	f.rec = nil
	f.mu.Unlock()
	if rec != nil {
		rec.Reset()
		f.cache.Deactivate()
	}
}

// Current returns the reconciler of the followed chat, if any.
func (f *Follower) Current() *chats.Reconciler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rec
}

// Start subscribes to realtime messages.
func (f *Follower) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})
	events, unsub := f.bus.Subscribe(bus.RealtimeMessage, 64)

	go func() {
		defer close(f.done)
		defer unsub()
		for {
			select {
			case evt := <-events:
				if e, ok := evt.Payload.(realtime.Event); ok {
					f.handle(ctx, e)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the follower and waits for it to exit.
func (f *Follower) Stop() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	<-f.done
}

func (f *Follower) handle(ctx context.Context, e realtime.Event) {
	rec := f.Current()
	if rec == nil || rec.ChatID() != e.ChatID {
		f.cache.UpdateChatMessages(e.ChatID, []domain.Message{e.Message})
		return
	}
	err := rec.LoadRecent(ctx)
	log := f.logger.With(zap.String("chat_id", e.ChatID))
	switch {
	case err == nil, errors.Is(err, listing.ErrSuperseded), ctx.Err() != nil:
	case apierr.IsNetwork(err):
		log.Info("backend unreachable, catch-up postponed to the next message", zap.Error(err))
	case apierr.IsMalformed(err):
		log.Error("backend sent malformed messages", zap.Error(err))
	default:
		log.Warn("catching up failed", zap.Error(err))
	}
}
