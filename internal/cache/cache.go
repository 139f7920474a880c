// Package cache persists fetched asset bytes across player sessions so
// repeat runs of an experiment skip redundant downloads.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Cache is a SQLite-backed asset store keyed by resolved location.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if needed) the asset cache at dbPath.
func Open(dbPath string) (*Cache, error) {
	if dbPath == "" {
		return nil, errors.New("cache path cannot be empty")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error: cannot open asset cache: %w", err)
	}
	if _, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS assets (
            location   TEXT PRIMARY KEY,
            data       BLOB NOT NULL,
            fetched_at INTEGER NOT NULL
        )
    `); err != nil {
		db.Close()
		return nil, fmt.Errorf("error: failed to create assets table: %w", err)
	}
	return &Cache{db: db}, nil
}

// Get implements the pipeline's cache lookup. A miss is reported via
// the bool, never as an error.
func (c *Cache) Get(key string) ([]byte, bool) {
	var data []byte
	err := c.db.QueryRow(`SELECT data FROM assets WHERE location = ?`, key).Scan(&data)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put stores asset bytes, replacing any previous entry for the key.
func (c *Cache) Put(key string, data []byte) error {
	_, err := c.db.Exec(`
        INSERT INTO assets (location, data, fetched_at) VALUES (?, ?, ?)
        ON CONFLICT(location) DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at
    `, key, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("error: failed to store asset %q: %w", key, err)
	}
	return nil
}

// Evict removes a single entry, reporting whether it was present.
func (c *Cache) Evict(key string) (bool, error) {
	res, err := c.db.Exec(`DELETE FROM assets WHERE location = ?`, key)
	if err != nil {
		return false, fmt.Errorf("error: failed to evict asset %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Prune deletes entries fetched before the cutoff and returns how many
// were removed.
func (c *Cache) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	res, err := c.db.Exec(`DELETE FROM assets WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error: failed to prune asset cache: %w", err)
	}
	return res.RowsAffected()
}

// Size returns the number of cached assets.
func (c *Cache) Size() (int64, error) {
	var n int64
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM assets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error: failed to count cached assets: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}
