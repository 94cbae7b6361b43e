// Package store is the local SQLite cache of chats, messages, the send
// outbox and small settings. chatlined writes to it while chatline reads
// and queues messages, so both processes share one WAL database.
package store

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

// DB is a connection to one profile's chatline.db.
type DB struct {
	*sql.DB
}

// dsnOptions are the go-sqlite3 connection parameters. Transactions take
// the write lock up front so two processes batching at once wait on
// busy_timeout instead of failing with SQLITE_BUSY on upgrade.
var dsnOptions = url.Values{
	"_journal_mode": {"WAL"},
	"_synchronous":  {"NORMAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"on"},
	"_txlock":       {"immediate"},
}

// Open connects to the database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?"+dsnOptions.Encode())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db %s: %w", path, err)
	}
	return &DB{db}, nil
}
