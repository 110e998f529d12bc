package cache

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLite is a file-backed Cache. Capacity is enforced across all stored
// values.
type SQLite struct {
	db       *sql.DB
	maxBytes int64
}

// NewSQLite opens a SQLite cache at dsn in WAL mode and creates its table.
func NewSQLite(ctx context.Context, dsn string, maxBytes int64) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		`CREATE TABLE IF NOT EXISTS local_cache (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
		)`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", stmt)
		}
	}
	return &SQLite{db: db, maxBytes: maxBytes}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM local_cache WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: get %s", key)
	}
	return v, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "cache: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if s.maxBytes > 0 {
		var others int64
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(LENGTH(value)), 0) FROM local_cache WHERE key <> ?`, key,
		).Scan(&others)
		if err != nil {
			return eris.Wrap(err, "cache: measure")
		}
		if next := others + int64(len(value)); next > s.maxBytes {
			return eris.Wrapf(ErrQuotaExceeded, "set %s: %d bytes over limit %d", key, next, s.maxBytes)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO local_cache (key, value, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return eris.Wrapf(err, "cache: set %s", key)
	}
	return eris.Wrap(tx.Commit(), "cache: commit")
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
