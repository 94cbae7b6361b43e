package store

// Chat is a cached chat row. Members is the JSON encoded member list.
type Chat struct {
	ID                 string
	Name               string
	Members            string
	LastMessageAt      int64
	LastMessagePreview string
}

// Message is a cached message row. Timestamps are unix milliseconds.
type Message struct {
	ID          int64
	ChatID      string
	MsgID       string
	ProfileName string
	Body        string
	Image       string
	CreatedAt   int64
	UpdatedAt   int64
}

// Outbox statuses.
const (
	OutboxQueued  = "queued"
	OutboxSending = "sending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// OutboxEntry is a message waiting to be posted.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	ChatID       string
	Body         string
	ImagePath    string
	Status       string
	ErrorMessage string
	ServerMsgID  string
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
