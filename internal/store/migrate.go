package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/matheus3301/chatline/internal/store/migrations"
)

// MigrateResult is the schema version after Migrate and whether it moved.
type MigrateResult struct {
	Version uint
	Changed bool
}

// Migrate brings the schema to the newest embedded version. A database left
// dirty by an interrupted migration is an error; it needs manual repair.
func (db *DB) Migrate() (*MigrateResult, error) {
	if err := db.requireFTS5(); err != nil {
		return nil, err
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	defer func() { _ = source.Close() }()

	// Closing the migrate instance would close db.DB through the driver,
	// so only the source is closed.
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}

	changed := true
	if err := m.Up(); errors.Is(err, migrate.ErrNoChange) {
		changed = false
	} else if err != nil {
		var dirty migrate.ErrDirty
		if errors.As(err, &dirty) {
			return nil, fmt.Errorf("schema is dirty at version %d: %w", dirty.Version, err)
		}
		return nil, fmt.Errorf("migration up: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		version = 0
	case err != nil:
		return nil, fmt.Errorf("migration version: %w", err)
	}
	if dirty {
		return nil, fmt.Errorf("schema is dirty at version %d", version)
	}
	return &MigrateResult{Version: version, Changed: changed}, nil
}

// requireFTS5 fails when the sqlite3 driver was built without the
// sqlite_fts5 tag; message search depends on it.
func (db *DB) requireFTS5() error {
	var enabled bool
	if err := db.QueryRow(`SELECT sqlite_compileoption_used('ENABLE_FTS5')`).Scan(&enabled); err != nil {
		return fmt.Errorf("check fts5: %w", err)
	}
	if !enabled {
		return errors.New("sqlite was built without FTS5; build with -tags sqlite_fts5")
	}
	return nil
}
