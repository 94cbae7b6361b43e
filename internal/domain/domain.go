// Package domain holds the backend entities exchanged with the chat API.
package domain

import "time"

// User is the authenticated account the client acts as.
type User struct {
	ID       string
	Username string
}

// Profile is a public profile as listed by GET /profiles.
type Profile struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Bio       string    `json:"bio,omitempty"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is one participant of a chat with its read receipts.
// Profile is nil once the participant's profile has been deleted.
type Member struct {
	ProfileName    string     `json:"profile_name" validate:"required"`
	Profile        *Profile   `json:"profile"`
	LastSeenAt     *time.Time `json:"last_seen_at"`
	LastReceivedAt *time.Time `json:"last_received_at"`
}

// Message is a single chat message.
type Message struct {
	ID          string    `json:"id" validate:"required"`
	ChatID      string    `json:"chat_id" validate:"required"`
	Body        string    `json:"body"`
	Image       *string   `json:"image,omitempty"`
	ProfileName string    `json:"profile_name"`
	CreatedAt   time.Time `json:"created_at" validate:"required"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Chat is a conversation. Messages are ordered by CreatedAt ascending.
type Chat struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name,omitempty"`
	Messages  []Message `json:"messages" validate:"dive"`
	Members   []Member  `json:"profiles" validate:"dive"`
	Managers  []string  `json:"managers"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy of c whose slices can be modified independently.
func (c Chat) Clone() Chat {
	c.Messages = append([]Message(nil), c.Messages...)
	c.Members = append([]Member(nil), c.Members...)
	c.Managers = append([]string(nil), c.Managers...)
	return c
}

// LastMessage returns the newest message of the chat, if any.
func (c Chat) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Others returns the members other than username.
func (c Chat) Others(username string) []Member {
	var out []Member
	for _, m := range c.Members {
		if m.ProfileName != username {
			out = append(out, m)
		}
	}
	return out
}
