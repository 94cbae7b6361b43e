package store

import (
	"database/sql"
	"math"
)

// UpsertMessage inserts or updates a message (idempotent on chat_id + msg_id).
func (db *DB) UpsertMessage(m *Message) error {
	return upsertMessage(db.DB, m)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertMessage(e execer, m *Message) error {
	_, err := e.Exec(`
		INSERT INTO messages (chat_id, msg_id, profile_name, body, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, msg_id) DO UPDATE SET
			body = excluded.body,
			image = excluded.image,
			updated_at = excluded.updated_at
		WHERE excluded.body != messages.body
			OR excluded.image != messages.image
			OR excluded.updated_at != messages.updated_at`,
		m.ChatID, m.MsgID, m.ProfileName, m.Body, m.Image, m.CreatedAt, m.UpdatedAt)
	return err
}

// ListMessages returns messages of a chat created before beforeMs, newest
// first. A non-positive beforeMs starts at the newest message.
func (db *DB) ListMessages(chatID string, beforeMs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeMs <= 0 {
		beforeMs = math.MaxInt64
	}
	rows, err := db.Query(`
		SELECT id, chat_id, msg_id, profile_name, body, image, created_at, updated_at
		FROM messages
		WHERE chat_id = ? AND created_at < ?
		ORDER BY created_at DESC, msg_id DESC
		LIMIT ?`, chatID, beforeMs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.MsgID, &m.ProfileName, &m.Body, &m.Image, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
