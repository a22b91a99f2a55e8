package storage

import (
	"database/sql"
	"fmt"

	"github.com/a-marczewski/deepmemo/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

const (
	SchemaVersion = 1
)

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection
func NewDB(cfg *config.Config) (*DB, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_busy_timeout=10000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	database := &DB{conn: db}

	// Run migrations
	if err := database.migrate(); err != nil {
		return nil, err
	}

	return database, nil
}

// migrate applies database migrations
func (db *DB) migrate() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Check current schema version
	var version int
	err = tx.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return err
	}

	// Apply migrations incrementally
	for version < SchemaVersion {
		version++
		switch version {
		case 1:
			if err := db.applySchemaV1(tx); err != nil {
				return fmt.Errorf("failed to apply schema v%d: %w", version, err)
			}
		default:
			return fmt.Errorf("unknown schema version: %d", version)
		}
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return err
	}

	return tx.Commit()
}

func (db *DB) applySchemaV1(tx *sql.Tx) error {
	schema := `
		CREATE TABLE IF NOT EXISTS entries (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			type TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			access_count INTEGER NOT NULL DEFAULT 0,
			last_accessed_at TIMESTAMP NOT NULL,
			is_deleted INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_entries_type ON entries(type);
		CREATE INDEX IF NOT EXISTS idx_entries_created_at ON entries(created_at);

		CREATE TABLE IF NOT EXISTS entry_tags (
			entry_id TEXT NOT NULL,
			tag TEXT NOT NULL,
			PRIMARY KEY (entry_id, tag)
		);

		CREATE INDEX IF NOT EXISTS idx_entry_tags_tag ON entry_tags(tag);

		CREATE TABLE IF NOT EXISTS relations (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			relation_type TEXT NOT NULL,
			weight REAL NOT NULL,
			created_at TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_relations_source ON relations(source_id);
		CREATE INDEX IF NOT EXISTS idx_relations_target ON relations(target_id);
	`

	_, err := tx.Exec(schema)
	return err
}

// GetConnection returns the underlying sql.DB connection
func (db *DB) GetConnection() *sql.DB {
	return db.conn
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}
