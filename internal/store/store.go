// Package store provides sqlite persistence for users, agents,
// conversation history, affinity provenance, semantic memory, and
// image jobs.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite database. Safe for concurrent use; sqlite
// serializes writers and busy_timeout covers contention.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and applies the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply store schema: %w", err)
	}
	// Best-effort migrations for databases created before these columns
	// existed (no-op when the column is already present).
	_, _ = db.Exec(`ALTER TABLE agents ADD COLUMN timezone TEXT NOT NULL DEFAULT 'UTC'`)
	_, _ = db.Exec(`ALTER TABLE agents ADD COLUMN base_image_url TEXT NOT NULL DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE image_jobs ADD COLUMN kind TEXT NOT NULL DEFAULT 'gen'`)
	_, _ = db.Exec(`ALTER TABLE image_jobs ADD COLUMN updated_at DATETIME`)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for read-only collaborators
// (retrieval indexing). Writers go through Store methods.
func (s *Store) DB() *sql.DB {
	return s.db
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v.String); err == nil {
			return &t
		}
	}
	return nil
}
