package listing

import (
	"context"
	"errors"
	"sync"

	"github.com/matheus3301/chatline/internal/apierr"
)

// ErrSuperseded is returned by a load whose result was discarded because a
// newer load or a reset happened while it was in flight.
var ErrSuperseded = errors.New("listing: load superseded")

// Flight tracks the loading and error flags of one fetch direction and
// guarantees that at most one fetch may apply its result.
// The zero value is ready to use.
type Flight struct {
	mu        sync.Mutex
	gen       uint64
	cancel    context.CancelFunc
	loading   bool
	lastError string
}

// Ticket identifies one started fetch.
type Ticket struct {
	gen uint64
}

// Begin cancels the fetch in flight, clears the last error and marks the
// flight as loading. The returned context is cancelled when the fetch is
// superseded.
func (f *Flight) Begin(ctx context.Context) (context.Context, Ticket) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
	}
	f.gen++
	ctx, f.cancel = context.WithCancel(ctx)
	f.lastError = ""
	f.loading = true
	return ctx, Ticket{gen: f.gen}
}

// Complete finishes the fetch identified by t. If t is stale nothing changes
// and ErrSuperseded is returned. Otherwise loading is cleared, and on success
// apply runs while the flight is still held so a concurrent Begin or Cancel
// cannot interleave with it. On failure lastError is set from the error
// classifier using fallback.
func (f *Flight) Complete(t Ticket, err error, fallback string, apply func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if t.gen != f.gen {
		return ErrSuperseded
	}
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.loading = false
	if err != nil {
		f.lastError = apierr.Message(err, fallback)
		return err
	}
	if apply != nil {
		apply()
	}
	return nil
}

// Cancel aborts the fetch in flight and clears both flags.
func (f *Flight) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.gen++
	f.loading = false
	f.lastError = ""
}

// Loading reports whether a fetch is in flight.
func (f *Flight) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// LastError returns the user-facing message of the last failed fetch.
func (f *Flight) LastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastError
}
