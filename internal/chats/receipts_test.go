package chats

import (
	"testing"
	"time"

	"github.com/matheus3301/chatline/internal/domain"
)

func TestReceipts(t *testing.T) {
	me := domain.User{Username: "alice"}
	m := msg("m1", 10, "alice")

	member := func(name string, received, seen *time.Time) domain.Member {
		return domain.Member{ProfileName: name, LastReceivedAt: received, LastSeenAt: seen}
	}

	tests := []struct {
		name         string
		members      []domain.Member
		wantReceived bool
		wantSeen     bool
	}{
		{"self chat", []domain.Member{member("alice", nil, nil)}, true, true},
		{"no marks", []domain.Member{member("alice", nil, nil), member("bob", nil, nil)}, false, false},
		{"received not seen", []domain.Member{member("bob", at(11), nil)}, true, false},
		{"exactly at creation", []domain.Member{member("bob", at(10), at(10))}, true, true},
		{"before creation", []domain.Member{member("bob", at(9), at(9))}, false, false},
		{"one of two", []domain.Member{member("bob", at(12), at(12)), member("carol", at(12), nil)}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := domain.Chat{ID: "c1", Members: tt.members}
			if got := HasBeenReceived(m, chat, me); got != tt.wantReceived {
				t.Errorf("HasBeenReceived() = %v, want %v", got, tt.wantReceived)
			}
			if got := HasBeenSeen(m, chat, me); got != tt.wantSeen {
				t.Errorf("HasBeenSeen() = %v, want %v", got, tt.wantSeen)
			}
		})
	}
}
