// Package cache keeps raw source responses in a SQLite database so repeated
// runs over the same file do not hit the network again.
package cache

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"
)

// Cache is a response cache backed by SQLite. It is safe for concurrent
// use by the workers of one run.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens or creates the cache at path. Entries older than ttl are
// ignored; a zero ttl keeps them forever.
func Open(path string, ttl time.Duration) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS responses (
			key TEXT PRIMARY KEY,
			status INTEGER NOT NULL,
			body BLOB NOT NULL,
			fetched_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_responses_fetched ON responses(fetched_at);
	`)
	return err
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// hashKey keeps keys short and uniform whatever the request URL looks like.
func hashKey(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for key. Expired entries are reported
// as missing.
func (c *Cache) Get(ctx context.Context, key string) (int, []byte, bool, error) {
	var (
		status    int
		body      []byte
		fetchedAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT status, body, fetched_at FROM responses WHERE key = ?`, hashKey(key),
	).Scan(&status, &body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, fmt.Errorf("reading cache: %w", err)
	}
	if c.expired(fetchedAt) {
		return 0, nil, false, nil
	}
	return status, body, true, nil
}

// Put stores a response, replacing any previous one for key.
func (c *Cache) Put(ctx context.Context, key string, status int, body []byte) error {
	if body == nil {
		body = []byte{}
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO responses (key, status, body, fetched_at) VALUES (?, ?, ?, ?)`,
		hashKey(key), status, body, c.now().Unix())
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Prune deletes expired entries and returns how many were removed.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	cutoff := c.now().Add(-c.ttl).Unix()
	res, err := c.db.ExecContext(ctx, `DELETE FROM responses WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM responses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}

func (c *Cache) expired(fetchedAt int64) bool {
	return c.ttl > 0 && c.now().Sub(time.Unix(fetchedAt, 0)) > c.ttl
}
