package optify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// Pure-Go SQLite driver; no cgo toolchain required.
	_ "modernc.org/sqlite"
)

// SQLiteCache is an optional persistent Cache backend: composed
// options documents survive process restarts, at the cost of a JSON
// marshal/unmarshal round trip per Get/Set.
type SQLiteCache struct {
	db *sql.DB
}

// sqliteStore adapts *SQLiteCache to the cacheStore interface Cache
// expects.
type sqliteStore struct {
	cache *SQLiteCache
}

// NewSQLiteCache opens (creating if necessary) a SQLite database at
// path and returns a Cache backed by it.
func NewSQLiteCache(path string) (*Cache, error) {
	cache, err := openSQLiteCache(path)
	if err != nil {
		return nil, err
	}
	return &Cache{store: &sqliteStore{cache: cache}}, nil
}

func openSQLiteCache(path string) (*SQLiteCache, error) {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening cache database '%s': %w", path, err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error connecting to cache database '%s': %w", path, err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error creating cache schema: %w", err)
	}

	return &SQLiteCache{db: db}, nil
}

// Close releases the underlying database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func (s *sqliteStore) Get(key string) (any, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var raw []byte
	err := s.cache.db.QueryRowContext(ctx, "SELECT value FROM cache_entries WHERE key = ?", key).Scan(&raw)
	if err != nil {
		return nil, false
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false
	}
	return value, true
}

func (s *sqliteStore) Set(key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Cache entries are treated as immutable once written; "INSERT OR
	// IGNORE" avoids overwriting an existing row with what should
	// always be byte-identical content rather than surfacing a write
	// conflict.
	_, _ = s.cache.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO cache_entries (key, value, created_at) VALUES (?, ?, ?)",
		key, raw, time.Now().Unix())
}
