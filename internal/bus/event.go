package bus

import "time"

// Event kinds published by chatline components. Subscribers filter by prefix
// ("list.", "chat.", "realtime.", "session.").
const (
	ListChanged        = "list.changed"
	ChatActivated      = "chat.activated"
	ChatDeactivated    = "chat.deactivated"
	ChatListLoaded     = "chat.list_loaded"
	ChatMessagesMerged = "chat.messages_merged"
	RealtimeMessage    = "realtime.message"
	StatusChanged      = "session.status_changed"
	OutboxSent         = "outbox.sent"
	OutboxFailed       = "outbox.failed"
)

// Event is a notification published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
