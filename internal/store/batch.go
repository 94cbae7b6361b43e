package store

import "fmt"

// SaveBatch upserts chats and messages in one transaction.
func (db *DB) SaveBatch(chats []Chat, msgs []Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range chats {
		if err := upsertChat(tx, &chats[i]); err != nil {
			return fmt.Errorf("upsert chat %s: %w", chats[i].ID, err)
		}
	}
	for i := range msgs {
		if err := upsertMessage(tx, &msgs[i]); err != nil {
			return fmt.Errorf("upsert message %s: %w", msgs[i].MsgID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}
