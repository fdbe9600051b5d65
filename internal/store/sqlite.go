package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// busyTimeoutMillis bounds lock waits when several processes share a draft file.
const busyTimeoutMillis = 5000

const schema = `
CREATE TABLE IF NOT EXISTS drafts (
	slot       TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLite stores slots in a single SQLite table.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the draft database at path.
// Parent directories are created as needed. Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("store: creating directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMillis),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: applying schema: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Put overwrites slot with data.
func (s *SQLite) Put(ctx context.Context, slot string, data []byte) error {
	if slot == "" {
		return ErrEmptySlotName
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (slot, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		slot, data, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: writing slot %q: %w", slot, err)
	}
	return nil
}

// Get reads slot. A missing slot yields ok == false and no error.
func (s *SQLite) Get(ctx context.Context, slot string) ([]byte, bool, error) {
	if slot == "" {
		return nil, false, ErrEmptySlotName
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM drafts WHERE slot = ?`, slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: reading slot %q: %w", slot, err)
	}
	return data, true, nil
}

// Delete removes slot.
func (s *SQLite) Delete(ctx context.Context, slot string) error {
	if slot == "" {
		return ErrEmptySlotName
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("store: deleting slot %q: %w", slot, err)
	}
	return nil
}

// UpdatedAt returns the last write time of slot.
func (s *SQLite) UpdatedAt(ctx context.Context, slot string) (time.Time, bool, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM drafts WHERE slot = ?`, slot).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("store: reading slot %q: %w", slot, err)
	}
	return time.UnixMilli(ms), true, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
