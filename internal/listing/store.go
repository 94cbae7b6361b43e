// Package listing implements incremental, cursor-based loading of one
// ordered collection.
package listing

import (
	"context"
	"errors"
	"sync"

	"github.com/matheus3301/chatline/internal/bus"
)

// PageFetcher requests the page that follows last. last is nil when the
// collection is empty. An empty page means there is no more data.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, last *T) ([]T, error)
}

// FetcherFunc adapts a function to PageFetcher.
type FetcherFunc[T any] func(ctx context.Context, last *T) ([]T, error)

func (fn FetcherFunc[T]) FetchPage(ctx context.Context, last *T) ([]T, error) {
	return fn(ctx, last)
}

// MergeFunc combines the current items with a freshly fetched page.
type MergeFunc[T any] func(items, page []T) []T

// Append is the default MergeFunc.
func Append[T any](items, page []T) []T {
	return append(items, page...)
}

// State is a snapshot of a store.
type State[T any] struct {
	Items     []T
	Loading   bool
	LastError string
	HasMore   bool
}

// Option configures a Store.
type Option[T any] func(*Store[T])

// WithMerge replaces the default append merge.
func WithMerge[T any](fn MergeFunc[T]) Option[T] {
	return func(s *Store[T]) { s.merge = fn }
}

// WithFailureMessage sets the message shown when a server error occurs.
func WithFailureMessage[T any](msg string) Option[T] {
	return func(s *Store[T]) { s.failure = msg }
}

// WithBus publishes a bus.ListChanged event carrying name after every change.
func WithBus[T any](b *bus.Bus, name string) Option[T] {
	return func(s *Store[T]) {
		s.bus = b
		s.name = name
	}
}

// Store owns a growing collection loaded page by page. Starting a Load
// supersedes any Load already in flight; only the newest may apply.
type Store[T any] struct {
	fetcher PageFetcher[T]
	merge   MergeFunc[T]
	failure string
	bus     *bus.Bus
	name    string

	flight Flight

	mu      sync.RWMutex
	items   []T
	hasMore bool
	// cursor is the last item of the last non-empty page. Items added
	// through Update never move it.
	cursor *T
}

// New creates a store that loads pages from fetcher.
func New[T any](fetcher PageFetcher[T], opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		fetcher: fetcher,
		merge:   Append[T],
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches the page after the last loaded page and merges it.
// It returns ErrSuperseded if a newer Load or a Reset won.
func (s *Store[T]) Load(ctx context.Context) error {
	ctx, ticket := s.flight.Begin(ctx)
	s.notify()

	page, err := s.fetcher.FetchPage(ctx, s.pageCursor())
	err = s.flight.Complete(ticket, err, s.failure, func() {
		s.mu.Lock()
		s.items = s.merge(s.items, page)
		s.hasMore = len(page) > 0
		if len(page) > 0 {
			last := page[len(page)-1]
			s.cursor = &last
		}
		s.mu.Unlock()
	})
	if !errors.Is(err, ErrSuperseded) {
		s.notify()
	}
	return err
}

// Reset cancels the load in flight and empties the store.
func (s *Store[T]) Reset() {
	s.flight.Cancel()
	s.mu.Lock()
	s.items = nil
	s.hasMore = false
	s.cursor = nil
	s.mu.Unlock()
	s.notify()
}

func (s *Store[T]) pageCursor() *T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cursor == nil {
		return nil
	}
	c := *s.cursor
	return &c
}

// Update replaces the items with fn(items). fn receives a copy. The next
// Load still continues after the last fetched page.
func (s *Store[T]) Update(fn func(items []T) []T) {
	s.mu.Lock()
	s.items = fn(append([]T(nil), s.items...))
	s.mu.Unlock()
	s.notify()
}

// Items returns a copy of the loaded items.
func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]T(nil), s.items...)
}

// Len returns the number of loaded items.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Last returns the last loaded item.
func (s *Store[T]) Last() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	return s.items[len(s.items)-1], true
}

func (s *Store[T]) Loading() bool     { return s.flight.Loading() }
func (s *Store[T]) LastError() string { return s.flight.LastError() }

// HasMore reports whether the most recent page was non-empty.
func (s *Store[T]) HasMore() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMore
}

// Snapshot returns the full state of the store.
func (s *Store[T]) Snapshot() State[T] {
	loading, lastErr := s.flight.Loading(), s.flight.LastError()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State[T]{
		Items:     append([]T(nil), s.items...),
		Loading:   loading,
		LastError: lastErr,
		HasMore:   s.hasMore,
	}
}

func (s *Store[T]) notify() {
	if s.bus != nil {
		s.bus.Emit(bus.ListChanged, s.name)
	}
}
