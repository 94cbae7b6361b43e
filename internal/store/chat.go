package store

import (
	"database/sql"
	"errors"
	"time"
)

// UpsertChat inserts or updates a chat. A zero LastMessageAt keeps the
// stored one, so a chat refreshed without messages does not lose its preview.
func (db *DB) UpsertChat(c *Chat) error {
	return upsertChat(db.DB, c)
}

func upsertChat(e execer, c *Chat) error {
	members := c.Members
	if members == "" {
		members = "[]"
	}
	_, err := e.Exec(`
		INSERT INTO chats (id, name, members, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			members = excluded.members,
			last_message_at = CASE WHEN excluded.last_message_at > chats.last_message_at
				THEN excluded.last_message_at ELSE chats.last_message_at END,
			last_message_preview = CASE WHEN excluded.last_message_at > chats.last_message_at
				THEN excluded.last_message_preview ELSE chats.last_message_preview END,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, members, c.LastMessageAt, c.LastMessagePreview, time.Now().UnixMilli())
	return err
}

// ListChats returns chats ordered by last message, newest first.
func (db *DB) ListChats(limit, offset int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, name, members, last_message_at, last_message_preview
		FROM chats
		ORDER BY last_message_at DESC, id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.Name, &c.Members, &c.LastMessageAt, &c.LastMessagePreview); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// GetChat returns the chat with the given id, or nil if it is not cached.
func (db *DB) GetChat(id string) (*Chat, error) {
	var c Chat
	err := db.QueryRow(`
		SELECT id, name, members, last_message_at, last_message_preview
		FROM chats WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Members, &c.LastMessageAt, &c.LastMessagePreview)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
