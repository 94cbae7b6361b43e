package chats

import (
	"time"

	"github.com/matheus3301/chatline/internal/domain"
)

// HasBeenReceived reports whether every other member of chat has received msg.
func HasBeenReceived(msg domain.Message, chat domain.Chat, me domain.User) bool {
	return allOthers(msg, chat, me, func(m domain.Member) *time.Time { return m.LastReceivedAt })
}

// HasBeenSeen reports whether every other member of chat has seen msg.
func HasBeenSeen(msg domain.Message, chat domain.Chat, me domain.User) bool {
	return allOthers(msg, chat, me, func(m domain.Member) *time.Time { return m.LastSeenAt })
}

func allOthers(msg domain.Message, chat domain.Chat, me domain.User, mark func(domain.Member) *time.Time) bool {
	for _, m := range chat.Others(me.Username) {
		ts := mark(m)
		if ts == nil || ts.Before(msg.CreatedAt) {
			return false
		}
	}
	return true
}
