// Package kv provides the on-device durable storage layer for stride.
//
// The store is a single SQLite table of string keys to string values,
// opened in WAL mode for concurrent reads during writes. Everything the
// core persists — the pending/failed operation queues, cached read
// snapshots, the last sync timestamp — goes through this interface.
//
// The store deliberately exposes nothing beyond get/set/delete/list:
// callers that need structure encode it in the key (e.g.
// "cache:water_log:<owner>") or in the JSON value.
package kv

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store is a durable string-keyed key-value store backed by SQLite.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the store at the given path.
//
// The parent directory is created if missing. The caller MUST call
// Close() when done.
//
// Example:
//
//	store, err := kv.Open(filepath.Join(dataDir, "stride.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	// WAL mode keeps reads available while the queue persists snapshots
	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the store, checkpointing the WAL first so everything is
// durable in the main database file.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}

	s.conn = nil
	return nil
}

// initSchema creates the kv table if it doesn't exist. Idempotent.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Get retrieves the value stored at key.
// The second return value is false if the key is absent.
func (s *Store) Get(key string) (string, bool, error) {
	return s.GetContext(context.Background(), key)
}

// GetContext retrieves a value with context support.
func (s *Store) GetContext(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value at key, replacing any existing value.
func (s *Store) Set(key, value string) error {
	return s.SetContext(context.Background(), key, value)
}

// SetContext stores a value with context support.
func (s *Store) SetContext(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO kv (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`
	_, err := s.conn.ExecContext(ctx, query, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Returns nil if the key doesn't exist (idempotent).
func (s *Store) Delete(key string) error {
	return s.DeleteContext(context.Background(), key)
}

// DeleteContext removes a key with context support.
func (s *Store) DeleteContext(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys returns all keys beginning with prefix, ordered lexically.
// An empty prefix lists every key.
func (s *Store) Keys(prefix string) ([]string, error) {
	return s.KeysContext(context.Background(), prefix)
}

// KeysContext lists keys with context support.
func (s *Store) KeysContext(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeLike(prefix) + "%"
	rows, err := s.conn.QueryContext(ctx,
		`SELECT key FROM kv WHERE key LIKE ? ESCAPE '\' ORDER BY key`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keys: %w", err)
	}

	return keys, nil
}

// DeletePrefix removes every key beginning with prefix and returns the
// number of rows removed. Used to drop a signed-out user's data.
func (s *Store) DeletePrefix(prefix string) (int, error) {
	return s.DeletePrefixContext(context.Background(), prefix)
}

// DeletePrefixContext removes a key range with context support.
func (s *Store) DeletePrefixContext(ctx context.Context, prefix string) (int, error) {
	pattern := escapeLike(prefix) + "%"
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM kv WHERE key LIKE ? ESCAPE '\'`, pattern)
	if err != nil {
		return 0, fmt.Errorf("failed to delete prefix %s: %w", prefix, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

// Clear removes every key in the store.
func (s *Store) Clear() error {
	if _, err := s.conn.Exec("DELETE FROM kv"); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	return nil
}

// Len returns the number of keys in the store.
func (s *Store) Len() (int, error) {
	var count int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM kv").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count keys: %w", err)
	}
	return count, nil
}

// escapeLike escapes LIKE wildcards so prefixes containing % or _
// match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
