package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/chatline/internal/domain"
)

// MessageFrom converts a backend message to its row.
func MessageFrom(m domain.Message) Message {
	row := Message{
		ChatID:      m.ChatID,
		MsgID:       m.ID,
		ProfileName: m.ProfileName,
		Body:        m.Body,
		CreatedAt:   m.CreatedAt.UnixMilli(),
	}
	if m.Image != nil {
		row.Image = *m.Image
	}
	if !m.UpdatedAt.IsZero() {
		row.UpdatedAt = m.UpdatedAt.UnixMilli()
	}
	return row
}

// Domain converts the row back to a backend message.
func (m Message) Domain() domain.Message {
	out := domain.Message{
		ID:          m.MsgID,
		ChatID:      m.ChatID,
		Body:        m.Body,
		ProfileName: m.ProfileName,
		CreatedAt:   time.UnixMilli(m.CreatedAt).UTC(),
	}
	if m.Image != "" {
		img := m.Image
		out.Image = &img
	}
	if m.UpdatedAt != 0 {
		out.UpdatedAt = time.UnixMilli(m.UpdatedAt).UTC()
	}
	return out
}

// ChatFrom converts a backend chat to its row. The preview is taken from the
// newest message.
func ChatFrom(c domain.Chat) (Chat, error) {
	members, err := json.Marshal(c.Members)
	if err != nil {
		return Chat{}, fmt.Errorf("encode members: %w", err)
	}
	row := Chat{ID: c.ID, Name: c.Name, Members: string(members)}
	if last, ok := c.LastMessage(); ok {
		row.LastMessageAt = last.CreatedAt.UnixMilli()
		row.LastMessagePreview = last.Body
	}
	return row, nil
}

// Domain converts the row back to a backend chat without messages.
func (c Chat) Domain() (domain.Chat, error) {
	out := domain.Chat{ID: c.ID, Name: c.Name}
	if c.Members != "" {
		if err := json.Unmarshal([]byte(c.Members), &out.Members); err != nil {
			return domain.Chat{}, fmt.Errorf("decode members of %s: %w", c.ID, err)
		}
	}
	return out, nil
}
