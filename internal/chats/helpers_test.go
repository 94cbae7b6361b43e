package chats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/chatline/internal/domain"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func msg(id string, minute int, from string) domain.Message {
	return domain.Message{
		ID:          id,
		ChatID:      "c1",
		Body:        "body " + id,
		ProfileName: from,
		CreatedAt:   base.Add(time.Duration(minute) * time.Minute),
	}
}

func msgIDs(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func at(minute int) *time.Time {
	t := base.Add(time.Duration(minute) * time.Minute)
	return &t
}

type listCall struct {
	chatID, cursor, sort string
}

// fakeSource serves scripted responses keyed by "sort:cursor".
type fakeSource struct {
	mu       sync.Mutex
	messages map[string][][]domain.Message
	chats    map[string][]domain.Chat
	chat     map[string]*domain.Chat
	err      error
	calls    []listCall
	cursors  []string // ListChats cursors
	gets     int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		messages: make(map[string][][]domain.Message),
		chats:    make(map[string][]domain.Chat),
		chat:     make(map[string]*domain.Chat),
	}
}

// queue adds a response for the given sort and cursor. Responses for the
// same key are served in order; the last one repeats.
func (f *fakeSource) queue(sort, cursor string, page ...domain.Message) {
	key := sort + ":" + cursor
	f.messages[key] = append(f.messages[key], page)
}

func (f *fakeSource) ListMessages(ctx context.Context, chatID, cursor, sort string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, listCall{chatID, cursor, sort})
	if f.err != nil {
		return nil, f.err
	}
	key := sort + ":" + cursor
	pages, ok := f.messages[key]
	if !ok {
		return nil, nil
	}
	page := pages[0]
	if len(pages) > 1 {
		f.messages[key] = pages[1:]
	}
	return append([]domain.Message(nil), page...), nil
}

func (f *fakeSource) ListChats(ctx context.Context, cursor string) ([]domain.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors = append(f.cursors, cursor)
	if f.err != nil {
		return nil, f.err
	}
	return f.chats[cursor], nil
}

func (f *fakeSource) GetChat(ctx context.Context, id string) (*domain.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	ch, ok := f.chat[id]
	if !ok {
		return nil, fmt.Errorf("chat %s not found", id)
	}
	return ch, nil
}

func (f *fakeSource) recorded() []listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]listCall(nil), f.calls...)
}
