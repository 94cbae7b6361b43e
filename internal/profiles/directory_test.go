package profiles

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/matheus3301/chatline/internal/apierr"
	"github.com/matheus3301/chatline/internal/domain"
)

type query struct {
	cursor, name string
}

type fakeSource struct {
	mu      sync.Mutex
	byName  map[string][]domain.Profile
	chats   map[string]*domain.Chat
	err     error
	queries []query
}

func (f *fakeSource) ListProfiles(ctx context.Context, cursor, name string) ([]domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query{cursor, name})
	if f.err != nil {
		return nil, f.err
	}
	all := f.byName[name]
	start := 0
	if cursor != "" {
		start = slices.IndexFunc(all, func(p domain.Profile) bool { return p.ID == cursor }) + 1
	}
	end := min(start+2, len(all))
	return all[start:end], nil
}

func (f *fakeSource) GetMemberChat(ctx context.Context, profileID string) (*domain.Chat, error) {
	ch, ok := f.chats[profileID]
	if !ok {
		return nil, &apierr.ServerError{Op: "get member chat", Status: 404}
	}
	return ch, nil
}

type recordingActivator struct {
	activated []domain.Chat
}

func (r *recordingActivator) Activate(chat domain.Chat) {
	r.activated = append(r.activated, chat)
}

func profile(id string) domain.Profile {
	return domain.Profile{ID: id, Name: id}
}

func profileIDs(ps []domain.Profile) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func newSource() *fakeSource {
	return &fakeSource{
		byName: map[string][]domain.Profile{
			"":   {profile("ann"), profile("bob"), profile("bea"), profile("cid")},
			"b":  {profile("bob"), profile("bea")},
			"zz": nil,
		},
		chats: map[string]*domain.Chat{
			"bob": {ID: "c-bob", Members: []domain.Member{{ProfileName: "alice"}, {ProfileName: "bob"}}},
		},
	}
}

func TestDirectoryPages(t *testing.T) {
	d := NewDirectory(newSource(), nil, nil, nil)
	for range 3 {
		if err := d.Load(context.Background()); err != nil {
			t.Fatalf("Load: %v", err)
		}
	}
	st := d.Snapshot()
	if got := profileIDs(st.Items); !slices.Equal(got, []string{"ann", "bob", "bea", "cid"}) {
		t.Errorf("profiles = %v", got)
	}
	if st.HasMore {
		t.Error("HasMore = true after empty page")
	}
}

func TestSetFilterReloads(t *testing.T) {
	src := newSource()
	d := NewDirectory(src, nil, nil, nil)
	if err := d.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := d.SetFilter(context.Background(), "b"); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}
	if got := profileIDs(d.Snapshot().Items); !slices.Equal(got, []string{"bob", "bea"}) {
		t.Errorf("filtered = %v", got)
	}
	last := src.queries[len(src.queries)-1]
	if last != (query{"", "b"}) {
		t.Errorf("query = %+v, want first page of b", last)
	}

	if err := d.SetFilter(context.Background(), "b"); err != nil {
		t.Fatal(err)
	}
	if n := len(src.queries); n != 2 {
		t.Errorf("queries = %d, want unchanged filter to skip reload", n)
	}
}

func TestSetFilterNoMatches(t *testing.T) {
	d := NewDirectory(newSource(), nil, nil, nil)
	if err := d.SetFilter(context.Background(), "zz"); err != nil {
		t.Fatal(err)
	}
	st := d.Snapshot()
	if len(st.Items) != 0 || st.HasMore {
		t.Errorf("state = %+v", st)
	}
}

func TestDirectoryFailure(t *testing.T) {
	src := newSource()
	src.err = &apierr.NetworkError{Op: "list profiles", Err: errors.New("down")}
	d := NewDirectory(src, nil, nil, nil)

	if err := d.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := d.Snapshot().LastError; got != apierr.NetworkMessage {
		t.Errorf("LastError = %q", got)
	}
}

func TestOpenChatActivates(t *testing.T) {
	act := &recordingActivator{}
	d := NewDirectory(newSource(), act, nil, nil)

	chat, err := d.OpenChat(context.Background(), "bob")
	if err != nil {
		t.Fatalf("OpenChat: %v", err)
	}
	if chat.ID != "c-bob" {
		t.Errorf("chat = %s", chat.ID)
	}
	if len(act.activated) != 1 || act.activated[0].ID != "c-bob" {
		t.Errorf("activated = %+v", act.activated)
	}
}

func TestOpenChatError(t *testing.T) {
	act := &recordingActivator{}
	d := NewDirectory(newSource(), act, nil, nil)

	_, err := d.OpenChat(context.Background(), "nobody")
	var srvErr *apierr.ServerError
	if !errors.As(err, &srvErr) || srvErr.Status != 404 {
		t.Errorf("err = %v", err)
	}
	if len(act.activated) != 0 {
		t.Error("activated on error")
	}
}
