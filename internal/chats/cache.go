// Package chats keeps the user's chat list, the activated chat and the
// message history of an open chat in sync with the backend.
package chats

import (
	"context"
	"sync"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/listing"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ListFailure is shown when the chat list cannot be loaded.
const ListFailure = "Failed to load any chats."

// ChatSource is the part of the backend the cache reads from.
type ChatSource interface {
	ListChats(ctx context.Context, cursor string) ([]domain.Chat, error)
	GetChat(ctx context.Context, id string) (*domain.Chat, error)
}

// MessagesMerged is the payload of bus.ChatMessagesMerged.
type MessagesMerged struct {
	ChatID   string
	Messages []domain.Message
}

// Cache owns the authenticated user's chat list and the single activated
// chat. The activated chat is a reference by id into the list, so message
// updates applied to it are visible through both.
type Cache struct {
	src    ChatSource
	list   *listing.Store[domain.Chat]
	bus    *bus.Bus
	logger *zap.Logger
	group  singleflight.Group

	mu        sync.Mutex
	activated string
}

// NewCache creates an empty cache reading from src.
func NewCache(src ChatSource, b *bus.Bus, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{src: src, bus: b, logger: logger}
	c.list = listing.New[domain.Chat](
		listing.FetcherFunc[domain.Chat](c.fetchPage),
		listing.WithMerge[domain.Chat](mergeChats),
		listing.WithFailureMessage[domain.Chat](ListFailure),
		listing.WithBus[domain.Chat](b, "chats"),
	)
	return c
}

func (c *Cache) fetchPage(ctx context.Context, last *domain.Chat) ([]domain.Chat, error) {
	cursor := ""
	if last != nil {
		cursor = last.ID
	}
	return c.src.ListChats(ctx, cursor)
}

// mergeChats appends chats that are not in the list yet. A chat activated
// before its page arrived keeps its position.
func mergeChats(items, page []domain.Chat) []domain.Chat {
	seen := make(map[string]struct{}, len(items))
	for _, ch := range items {
		seen[ch.ID] = struct{}{}
	}
	for _, ch := range page {
		if _, ok := seen[ch.ID]; ok {
			continue
		}
		seen[ch.ID] = struct{}{}
		items = append(items, ch)
	}
	return items
}

// Load fetches the next page of chats.
func (c *Cache) Load(ctx context.Context) error {
	err := c.list.Load(ctx)
	if err == nil {
		c.bus.Emit(bus.ChatListLoaded, c.list.Items())
	}
	return err
}

// Reset empties the list and deactivates the activated chat.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.activated = ""
	c.mu.Unlock()
	c.list.Reset()
}

// Snapshot returns the state of the chat list.
func (c *Cache) Snapshot() listing.State[domain.Chat] {
	return c.list.Snapshot()
}

// Chat returns the cached chat with the given id.
func (c *Cache) Chat(id string) (domain.Chat, bool) {
	for _, ch := range c.list.Items() {
		if ch.ID == id {
			return ch, true
		}
	}
	return domain.Chat{}, false
}

// Fetch loads one chat from the backend and stores it in the list.
// Concurrent fetches of the same id share one request; a caller that gives
// up does not cancel it for the others.
func (c *Cache) Fetch(ctx context.Context, id string) (domain.Chat, error) {
	ch := c.group.DoChan(id, func() (any, error) {
		return c.src.GetChat(context.WithoutCancel(ctx), id)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return domain.Chat{}, ctx.Err()
	}
	if res.Err != nil {
		return domain.Chat{}, res.Err
	}
	chat := res.Val.(*domain.Chat).Clone()
	c.upsert(chat)
	return chat, nil
}

// upsert stores chat, merging its messages with the cached copy.
func (c *Cache) upsert(chat domain.Chat) {
	c.list.Update(func(items []domain.Chat) []domain.Chat {
		for i := range items {
			if items[i].ID == chat.ID {
				chat.Messages = MergeMessages(items[i].Messages, chat.Messages)
				items[i] = chat
				return items
			}
		}
		chat.Messages = MergeMessages(nil, chat.Messages)
		return append([]domain.Chat{chat}, items...)
	})
}

// Activate marks chat as the one open in a room view. A chat that is not in
// the list yet is added to its head.
func (c *Cache) Activate(chat domain.Chat) {
	c.mu.Lock()
	c.activated = chat.ID
	c.mu.Unlock()

	c.upsert(chat.Clone())
	c.logger.Debug("chat activated", zap.String("chat_id", chat.ID))
	c.bus.Emit(bus.ChatActivated, chat.ID)
}

// Deactivate clears the activated chat. Messages merged while it was active
// stay in the list entry.
func (c *Cache) Deactivate() {
	c.mu.Lock()
	id := c.activated
	c.activated = ""
	c.mu.Unlock()

	if id != "" {
		c.bus.Emit(bus.ChatDeactivated, id)
	}
}

// Activated returns the activated chat as currently stored in the list.
func (c *Cache) Activated() (domain.Chat, bool) {
	c.mu.Lock()
	id := c.activated
	c.mu.Unlock()
	if id == "" {
		return domain.Chat{}, false
	}
	return c.Chat(id)
}

// UpdateActivatedChatMessages merges msgs into the activated chat and
// reports whether its message sequence changed. It is a no-op returning
// false when no chat is activated.
func (c *Cache) UpdateActivatedChatMessages(msgs []domain.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activated == "" {
		return false
	}
	return c.updateMessages(c.activated, msgs)
}

// MergeIfActivated merges msgs into the activated chat only when chatID is
// the activated chat. It reports whether the message sequence changed.
func (c *Cache) MergeIfActivated(chatID string, msgs []domain.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activated == "" || c.activated != chatID {
		return false
	}
	return c.updateMessages(chatID, msgs)
}

// UpdateChatMessages merges msgs into the cached chat with the given id.
func (c *Cache) UpdateChatMessages(chatID string, msgs []domain.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateMessages(chatID, msgs)
}

func (c *Cache) updateMessages(chatID string, msgs []domain.Message) bool {
	changed := false
	c.list.Update(func(items []domain.Chat) []domain.Chat {
		for i := range items {
			if items[i].ID != chatID {
				continue
			}
			merged := MergeMessages(items[i].Messages, msgs)
			if !sameSequence(items[i].Messages, merged) {
				updated := items[i].Clone()
				updated.Messages = merged
				items[i] = updated
				changed = true
			}
			break
		}
		return items
	})
	if changed {
		c.bus.Emit(bus.ChatMessagesMerged, MessagesMerged{ChatID: chatID, Messages: msgs})
	}
	return changed
}

// IsDeadChat reports whether the cached chat with the given id can no
// longer receive messages. Unknown chats are not dead.
func (c *Cache) IsDeadChat(chatID string, me domain.User) bool {
	chat, ok := c.Chat(chatID)
	if !ok {
		return false
	}
	return IsDead(chat, me)
}

// Title returns GenerateTitle for the cached chat with the given id.
func (c *Cache) Title(chatID string, me domain.User) string {
	chat, ok := c.Chat(chatID)
	if !ok {
		return ""
	}
	return GenerateTitle(chat, me)
}
