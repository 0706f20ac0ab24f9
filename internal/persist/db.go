package persist

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB is the plain blob store: one JSON document per key.
type DB struct {
	db *sql.DB
}

func OpenDB(ctx context.Context, path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Writes come from one process, but the CLI may read while a sync writes.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS blobs (
			key TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the blob stored under key and whether it exists.
func (d *DB) Get(ctx context.Context, key string) ([]byte, int, bool, error) {
	var (
		body    string
		version int
	)
	err := d.db.QueryRowContext(ctx, `SELECT json, version FROM blobs WHERE key = ?`, key).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	return []byte(body), version, true, nil
}

func (d *DB) Put(ctx context.Context, key string, version int, body []byte, at time.Time) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO blobs (key, version, json, updated_at_unixms) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			version = excluded.version,
			json = excluded.json,
			updated_at_unixms = excluded.updated_at_unixms`,
		key, version, string(body), at.UnixMilli())
	return err
}

func (d *DB) DeleteAll(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM blobs`)
	return err
}

// Keys lists stored blob keys with their last write time.
func (d *DB) Keys(ctx context.Context) (map[string]time.Time, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT key, updated_at_unixms FROM blobs ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]time.Time{}
	for rows.Next() {
		var (
			k  string
			ms int64
		)
		if err := rows.Scan(&k, &ms); err != nil {
			return nil, err
		}
		out[k] = time.UnixMilli(ms)
	}
	return out, rows.Err()
}

func (d *DB) Close() error { return d.db.Close() }
