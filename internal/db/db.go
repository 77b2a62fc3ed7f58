// Package db provides a centralized database connection and schema for presenced.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=off")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection, so the pool must not
	// open a second one.
	if strings.Contains(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Owner registry. Row 1 is the reserved house-infrastructure owner;
	// it is seeded here and the store layer refuses to delete it.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS owners (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'person',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create owners table: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO owners (id, name, kind, created_at, updated_at)
		VALUES (1, 'House', 'home', strftime('%s','now'), strftime('%s','now'))
		ON CONFLICT(id) DO NOTHING;
	`)
	if err != nil {
		return fmt.Errorf("failed to seed system owner: %w", err)
	}

	// Per-MAC device metadata. No foreign key on owner_id: deleting an
	// owner must not cascade, dangling references resolve to
	// "unassigned" at merge time.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS devices (
			mac TEXT PRIMARY KEY,
			label TEXT,
			owner_id INTEGER,
			presence_type INTEGER,
			band TEXT,
			ip TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_devices_owner ON devices(owner_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create devices table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
