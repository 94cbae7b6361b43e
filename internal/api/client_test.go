package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matheus3301/chatline/internal/apierr"
	"github.com/matheus3301/chatline/internal/domain"
)

func testClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/api", "tok")
	if err != nil {
		t.Fatal(err)
	}
	return c, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRejectsRelativeURL(t *testing.T) {
	if _, err := New("/api", ""); err == nil {
		t.Error("New() expected error for relative url")
	}
}

func TestListChatsSendsCursorAndToken(t *testing.T) {
	var gotPath, gotCursor, gotAuth string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCursor = r.URL.Query().Get("cursor")
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, []domain.Chat{{ID: "c2"}, {ID: "c3"}})
	}))

	chats, err := c.ListChats(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 || chats[0].ID != "c2" {
		t.Errorf("chats = %+v", chats)
	}
	if gotPath != "/api/chats" {
		t.Errorf("path = %q, want /api/chats", gotPath)
	}
	if gotCursor != "c1" {
		t.Errorf("cursor = %q, want c1", gotCursor)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("authorization = %q", gotAuth)
	}
}

func TestListMessagesQuery(t *testing.T) {
	now := time.Now().UTC()
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chats/c1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("sort") != SortAsc || r.URL.Query().Get("cursor") != "m1" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, []domain.Message{{ID: "m2", ChatID: "c1", CreatedAt: now}})
	}))

	msgs, err := c.ListMessages(context.Background(), "c1", "m1", SortAsc)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m2" {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestServerErrorHidesDetail(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "pq: connection reset"})
	}))

	_, err := c.ListChats(context.Background(), "")
	var srvErr *apierr.ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("error = %v, want ServerError", err)
	}
	if srvErr.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", srvErr.Status)
	}
	if got := apierr.Message(err, "Failed to load any chats."); got != "Failed to load any chats." {
		t.Errorf("message = %q", got)
	}
}

func TestMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>oops</html>"},
		{"missing id", `[{"name":"no id"}]`},
		{"wrong type", `{"id":"c1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			}))
			_, err := c.ListProfiles(context.Background(), "", "")
			var srvErr *apierr.ServerError
			if !errors.As(err, &srvErr) || !srvErr.Malformed() {
				t.Fatalf("error = %v, want malformed ServerError", err)
			}
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, "")
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.ListChats(context.Background(), "")
	if !apierr.IsNetwork(err) {
		t.Fatalf("error = %v, want NetworkError", err)
	}
}

func TestCancelledContextIsNotNetworkError(t *testing.T) {
	block := make(chan struct{})
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.ListChats(ctx, "")
	if apierr.IsNetwork(err) {
		t.Error("cancelled request classified as network error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestDefaultClientLeavesDeadlinesToContext(t *testing.T) {
	c, err := New("http://localhost:1", "tok")
	if err != nil {
		t.Fatal(err)
	}
	if c.http.Timeout != 0 {
		t.Errorf("http timeout = %s, want none", c.http.Timeout)
	}
}

func TestPostMessageJSON(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		writeJSON(w, http.StatusCreated, domain.Message{ID: "m9", ChatID: "c1", Body: in["body"], CreatedAt: time.Now()})
	}))

	msg, err := c.PostMessage(context.Background(), "c1", "hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "m9" || msg.Body != "hello" {
		t.Errorf("msg = %+v", msg)
	}
}

func TestPostMessageMultipart(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			t.Errorf("image part: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		if hdr.Filename != "cat.jpg" || string(data) != "jpegbytes" {
			t.Errorf("image = %q %q", hdr.Filename, data)
		}
		img := "/media/cat.jpg"
		writeJSON(w, http.StatusCreated, domain.Message{ID: "m1", ChatID: "c1", Body: r.FormValue("body"), Image: &img, CreatedAt: time.Now()})
	}))

	msg, err := c.PostMessage(context.Background(), "c1", "look", &Upload{Filename: "cat.jpg", ContentType: "image/jpeg", Data: []byte("jpegbytes")})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Image == nil || msg.Body != "look" {
		t.Errorf("msg = %+v", msg)
	}
}

func TestListProfilesNameFilter(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "bo" {
			t.Errorf("name = %q", r.URL.Query().Get("name"))
		}
		writeJSON(w, http.StatusOK, []domain.Profile{{ID: "p1", Name: "bob"}})
	}))
	profiles, err := c.ListProfiles(context.Background(), "", "bo")
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 1 || profiles[0].Name != "bob" {
		t.Errorf("profiles = %+v", profiles)
	}
}
