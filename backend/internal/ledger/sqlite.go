package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"vault-graph-sync/backend/internal/constants"
)

// SQLite is a Ledger persisted next to the vault
type SQLite struct {
	db   *sql.DB
	path string
}

var _ Ledger = (*SQLite)(nil)

// DefaultPath returns the ledger location inside a vault
func DefaultPath(vaultPath string) string {
	return filepath.Join(vaultPath, constants.StateDir, "sync.db")
}

// OpenSQLite opens (creating if needed) the ledger database at path
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	// WAL mode so the watcher and CLI can read concurrently
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA synchronous = NORMAL;
		PRAGMA busy_timeout = 5000;

		CREATE TABLE IF NOT EXISTS note_hashes (
			note_id TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			synced_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}

	return &SQLite{db: db, path: path}, nil
}

// Path returns the database file location
func (l *SQLite) Path() string {
	return l.path
}

func (l *SQLite) Get(ctx context.Context, noteID string) (string, bool, error) {
	var hash string
	err := l.db.QueryRowContext(ctx, `SELECT content_hash FROM note_hashes WHERE note_id = ?`, noteID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ledger get: %w", err)
	}
	return hash, true, nil
}

func (l *SQLite) Put(ctx context.Context, noteID, hash string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO note_hashes (note_id, content_hash, synced_at) VALUES (?, ?, ?)
		ON CONFLICT(note_id) DO UPDATE SET content_hash = excluded.content_hash, synced_at = excluded.synced_at
	`, noteID, hash, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("ledger put: %w", err)
	}
	return nil
}

func (l *SQLite) Delete(ctx context.Context, noteID string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM note_hashes WHERE note_id = ?`, noteID); err != nil {
		return fmt.Errorf("ledger delete: %w", err)
	}
	return nil
}

func (l *SQLite) Clear(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM note_hashes`); err != nil {
		return fmt.Errorf("ledger clear: %w", err)
	}
	return nil
}

func (l *SQLite) Close() error {
	return l.db.Close()
}
