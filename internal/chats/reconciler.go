package chats

import (
	"context"

	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/listing"
	"go.uber.org/zap"
)

// Failure messages of the two load directions.
const (
	OlderFailure  = "Failed to load messages."
	RecentFailure = "Failed to load new messages."
)

// MessageSource is the part of the backend a Reconciler reads from.
type MessageSource interface {
	ListMessages(ctx context.Context, chatID, cursor, sort string) ([]domain.Message, error)
}

// Mirror receives every page merged by a Reconciler. It must ignore pages
// for a chat that is not the activated one. *Cache implements it.
type Mirror interface {
	MergeIfActivated(chatID string, msgs []domain.Message) bool
}

// Reconciler keeps the message history of one open chat. Messages are held
// newest first: loading older history grows the tail, loading recent
// messages grows the head. Both directions have their own loading and error
// state so a stuck catch-up never blocks scrolling back, and vice versa.
type Reconciler struct {
	chatID string
	me     domain.User
	src    MessageSource
	mirror Mirror
	logger *zap.Logger

	older  *listing.Store[domain.Message]
	recent listing.Flight
}

// NewReconciler creates a reconciler for chatID seen by me. mirror may be nil.
func NewReconciler(chatID string, me domain.User, src MessageSource, mirror Mirror, b *bus.Bus, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{
		chatID: chatID,
		me:     me,
		src:    src,
		mirror: mirror,
		logger: logger.With(zap.String("chat_id", chatID)),
	}
	r.older = listing.New[domain.Message](
		listing.FetcherFunc[domain.Message](r.fetchOlder),
		listing.WithMerge[domain.Message](r.mergeOlder),
		listing.WithFailureMessage[domain.Message](OlderFailure),
		listing.WithBus[domain.Message](b, "messages:"+chatID),
	)
	return r
}

// ChatID returns the chat this reconciler follows.
func (r *Reconciler) ChatID() string { return r.chatID }

func (r *Reconciler) fetchOlder(ctx context.Context, last *domain.Message) ([]domain.Message, error) {
	cursor := ""
	if last != nil {
		cursor = last.ID
	}
	return r.src.ListMessages(ctx, r.chatID, cursor, api.SortDesc)
}

func (r *Reconciler) mergeOlder(items, page []domain.Message) []domain.Message {
	if r.mirror != nil && len(page) > 0 {
		r.mirror.MergeIfActivated(r.chatID, page)
	}
	return mergeNewestFirst(items, page)
}

// LoadOlder fetches the page of messages older than the oldest one held.
func (r *Reconciler) LoadOlder(ctx context.Context) error {
	return r.older.Load(ctx)
}

// LoadRecent fetches messages newer than the newest message received from
// someone else, merges them at the head and repeats while a fetch still
// changes the conversation. With nothing loaded yet it is LoadOlder.
func (r *Reconciler) LoadRecent(ctx context.Context) error {
	cursor, ok := r.recentCursor()
	if !ok {
		return r.LoadOlder(ctx)
	}

	fctx, ticket := r.recent.Begin(ctx)
	page, err := r.src.ListMessages(fctx, r.chatID, cursor, api.SortAsc)

	changed := false
	err = r.recent.Complete(ticket, err, RecentFailure, func() {
		r.older.Update(func(items []domain.Message) []domain.Message {
			merged := mergeNewestFirst(items, page)
			changed = !sameSequence(items, merged)
			return merged
		})
		if r.mirror != nil && r.mirror.MergeIfActivated(r.chatID, page) {
			changed = true
		}
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	r.logger.Debug("recent messages merged, catching up", zap.Int("count", len(page)))
	return r.LoadRecent(ctx)
}

// recentCursor picks the newest message not sent by the current user,
// falling back to the newest message.
func (r *Reconciler) recentCursor() (string, bool) {
	items := r.older.Items()
	if len(items) == 0 {
		return "", false
	}
	for _, m := range items {
		if m.ProfileName != r.me.Username {
			return m.ID, true
		}
	}
	return items[0].ID, true
}

// Reset cancels both directions and forgets all messages.
func (r *Reconciler) Reset() {
	r.recent.Cancel()
	r.older.Reset()
}

// Messages returns the held messages, newest first.
func (r *Reconciler) Messages() []domain.Message {
	return r.older.Items()
}

// Older returns the state of the older-history direction.
func (r *Reconciler) Older() listing.State[domain.Message] {
	return r.older.Snapshot()
}

// RecentLoading reports whether a catch-up fetch is in flight.
func (r *Reconciler) RecentLoading() bool { return r.recent.Loading() }

// RecentError returns the message of the last failed catch-up.
func (r *Reconciler) RecentError() string { return r.recent.LastError() }
