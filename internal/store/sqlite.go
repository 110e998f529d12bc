package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/filing-assistant/internal/audit"
	"github.com/sells-group/filing-assistant/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS drafts (
	id                TEXT PRIMARY KEY,
	owner_id          TEXT NOT NULL,
	assessment_period TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'draft',
	doc               TEXT NOT NULL,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS audit_events (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	payload    TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_drafts_owner ON drafts(owner_id);
CREATE INDEX IF NOT EXISTS idx_drafts_status ON drafts(status);
CREATE INDEX IF NOT EXISTS idx_audit_events_kind ON audit_events(kind);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateDraft(ctx context.Context, snap *model.DraftSnapshot) (*model.DraftSnapshot, error) {
	now := time.Now().UTC()
	c, err := prepareCreate(snap, uuid.New().String(), now)
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal draft")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, owner_id, assessment_period, status, doc, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.DraftID, c.OwnerID, c.AssessmentPeriod, string(c.Status), string(doc), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert draft")
	}
	return c, nil
}

func (s *SQLiteStore) UpdateDraft(ctx context.Context, id string, snap *model.DraftSnapshot) error {
	c, err := prepareUpdate(id, snap, time.Now().UTC())
	if err != nil {
		return err
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal draft")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET owner_id = ?, assessment_period = ?, status = ?, doc = ?, updated_at = ?
		 WHERE id = ? AND status <> 'submitted'`,
		c.OwnerID, c.AssessmentPeriod, string(c.Status), string(doc), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update draft %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM drafts WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "update %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: check draft %s", id)
	}
	return eris.Wrapf(ErrSubmitted, "update %s", id)
}

func (s *SQLiteStore) GetDraft(ctx context.Context, id string) (*model.DraftSnapshot, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM drafts WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "get %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get draft %s", id)
	}
	return decodeDraft([]byte(doc))
}

func (s *SQLiteStore) ListDrafts(ctx context.Context, filter DraftFilter) ([]model.DraftSnapshot, error) {
	query := `SELECT doc FROM drafts`
	var where []string
	var args []any
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC LIMIT ? OFFSET ?"
	args = append(args, clampLimit(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list drafts")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.DraftSnapshot
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan draft")
		}
		d, err := decodeDraft([]byte(doc))
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate drafts")
}

func (s *SQLiteStore) RecordAudit(ctx context.Context, evt audit.Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit payload")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, kind, payload, created_at) VALUES (?, ?, ?, ?)`,
		evt.ID, evt.Kind, string(payload), evt.Timestamp,
	)
	return eris.Wrap(err, "sqlite: insert audit event")
}

func decodeDraft(doc []byte) (*model.DraftSnapshot, error) {
	var d model.DraftSnapshot
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal draft")
	}
	return &d, nil
}
