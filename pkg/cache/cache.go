// Package cache keeps a small SQLite mirror of remote paths seen in
// directory listings. It feeds shell completions only: file contents are
// never stored and the protocol core never reads from here.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/silicakes/deluge-extensions-sub001/pkg/fs"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultTTL ages out paths not seen in a listing for this long.
const DefaultTTL = 24 * time.Hour

type Manager struct {
	db  *sql.DB
	ttl time.Duration
}

// DefaultPath returns the cache database location.
func DefaultPath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "delctl", "paths.db"), nil
}

func NewManager(dbPath string) (*Manager, error) {
	return NewManagerWithTTL(dbPath, DefaultTTL)
}

func NewManagerWithTTL(dbPath string, ttl time.Duration) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	m := &Manager{db: db, ttl: ttl}
	if err := m.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return m, nil
}

// NewManagerFromEnv opens the cache at its default location.
func NewManagerFromEnv() (*Manager, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return NewManager(path)
}

func (m *Manager) init() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS remote_paths (
			path TEXT PRIMARY KEY,
			is_dir INTEGER NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_remote_paths_dir ON remote_paths(is_dir);
	`)
	return err
}

// RecordListing upserts every entry of a fresh directory listing.
func (m *Manager) RecordListing(dir string, entries []fs.Entry) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO remote_paths (path, is_dir, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET is_dir = excluded.is_dir, updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	if _, err := stmt.Exec(dir, 1, now); err != nil {
		return err
	}
	for _, e := range entries {
		isDir := 0
		if e.IsDir() {
			isDir = 1
		}
		if _, err := stmt.Exec(fs.JoinPath(dir, e.Name), isDir, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Forget drops a path and everything under it after a delete or move.
func (m *Manager) Forget(path string) error {
	_, err := m.db.Exec(`DELETE FROM remote_paths WHERE path = ? OR path LIKE ?`, path, path+"/%")
	return err
}

// Paths returns cached paths starting with prefix, freshest first.
// dirsOnly restricts to directories, for the ls, mkdir and put
// destination completions.
func (m *Manager) Paths(prefix string, dirsOnly bool, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT path FROM remote_paths WHERE path LIKE ? AND updated_at > ?`
	if dirsOnly {
		query += ` AND is_dir = 1`
	}
	query += ` ORDER BY updated_at DESC, path LIMIT ?`

	rows, err := m.db.Query(query, prefix+"%", time.Now().Add(-m.ttl), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Prune removes entries older than the TTL.
func (m *Manager) Prune() error {
	_, err := m.db.Exec(`DELETE FROM remote_paths WHERE updated_at <= ?`, time.Now().Add(-m.ttl))
	return err
}

func (m *Manager) Close() error {
	return m.db.Close()
}
