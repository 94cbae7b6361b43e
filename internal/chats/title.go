package chats

import (
	"strings"

	"github.com/matheus3301/chatline/internal/domain"
)

// SelfTitle is the title of a chat whose only member is the current user.
const SelfTitle = "Yourself"

// GenerateTitle names a chat after its other members: "bob",
// "bob and carol", "bob, carol, and dan". A chat with only the current user
// is SelfTitle; a chat without members has no title.
func GenerateTitle(chat domain.Chat, me domain.User) string {
	if len(chat.Members) == 0 {
		return ""
	}
	var names []string
	for _, m := range chat.Others(me.Username) {
		names = append(names, m.ProfileName)
	}
	switch n := len(names); n {
	case 0:
		return SelfTitle
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:n-1], ", ") + ", and " + names[n-1]
	}
}

// IsDead reports whether a chat can no longer receive messages: it has more
// than one member and none of the others still has a profile.
func IsDead(chat domain.Chat, me domain.User) bool {
	if len(chat.Members) <= 1 {
		return false
	}
	for _, m := range chat.Others(me.Username) {
		if m.Profile != nil {
			return false
		}
	}
	return true
}
