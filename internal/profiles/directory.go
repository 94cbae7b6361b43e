// Package profiles is the searchable directory of public profiles.
package profiles

import (
	"context"
	"fmt"
	"sync"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/listing"
	"go.uber.org/zap"
)

// ListFailure is shown when the directory cannot be loaded.
const ListFailure = "Failed to load profiles."

// Source is the part of the backend the directory reads from.
type Source interface {
	ListProfiles(ctx context.Context, cursor, name string) ([]domain.Profile, error)
	GetMemberChat(ctx context.Context, profileID string) (*domain.Chat, error)
}

// Activator receives the chat opened from the directory. *chats.Cache
// implements it.
type Activator interface {
	Activate(chat domain.Chat)
}

// Directory pages through profiles, optionally filtered by name.
type Directory struct {
	src    Source
	chats  Activator
	logger *zap.Logger
	list   *listing.Store[domain.Profile]

	mu     sync.Mutex
	filter string
}

// NewDirectory creates an unfiltered directory.
func NewDirectory(src Source, chats Activator, b *bus.Bus, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Directory{src: src, chats: chats, logger: logger}
	d.list = listing.New[domain.Profile](
		listing.FetcherFunc[domain.Profile](d.fetchPage),
		listing.WithFailureMessage[domain.Profile](ListFailure),
		listing.WithBus[domain.Profile](b, "profiles"),
	)
	return d
}

func (d *Directory) fetchPage(ctx context.Context, last *domain.Profile) ([]domain.Profile, error) {
	cursor := ""
	if last != nil {
		cursor = last.ID
	}
	return d.src.ListProfiles(ctx, cursor, d.Filter())
}

// Filter returns the current name filter.
func (d *Directory) Filter() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter
}

// SetFilter changes the name filter. A changed filter discards the loaded
// profiles and loads the first matching page; an unchanged one does nothing.
func (d *Directory) SetFilter(ctx context.Context, name string) error {
	d.mu.Lock()
	if name == d.filter && d.list.Len() > 0 {
		d.mu.Unlock()
		return nil
	}
	d.filter = name
	d.mu.Unlock()

	d.list.Reset()
	return d.list.Load(ctx)
}

// Load fetches the next page of matching profiles.
func (d *Directory) Load(ctx context.Context) error {
	return d.list.Load(ctx)
}

// Reset clears the filter and the loaded profiles.
func (d *Directory) Reset() {
	d.mu.Lock()
	d.filter = ""
	d.mu.Unlock()
	d.list.Reset()
}

// Snapshot returns the state of the directory.
func (d *Directory) Snapshot() listing.State[domain.Profile] {
	return d.list.Snapshot()
}

// OpenChat fetches the direct chat with profileID and activates it.
func (d *Directory) OpenChat(ctx context.Context, profileID string) (domain.Chat, error) {
	chat, err := d.src.GetMemberChat(ctx, profileID)
	if err != nil {
		return domain.Chat{}, fmt.Errorf("open chat with %s: %w", profileID, err)
	}
	opened := chat.Clone()
	if d.chats != nil {
		d.chats.Activate(opened)
	}
	d.logger.Info("opened chat", zap.String("profile_id", profileID), zap.String("chat_id", opened.ID))
	return opened, nil
}
