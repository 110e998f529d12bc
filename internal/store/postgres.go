package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/filing-assistant/internal/audit"
	"github.com/sells-group/filing-assistant/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS drafts (
	id                TEXT PRIMARY KEY,
	owner_id          TEXT NOT NULL,
	assessment_period TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'draft',
	doc               JSONB NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_events (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	payload    JSONB,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_drafts_owner ON drafts(owner_id);
CREATE INDEX IF NOT EXISTS idx_drafts_status ON drafts(status);
CREATE INDEX IF NOT EXISTS idx_drafts_owner_updated ON drafts(owner_id, updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_events_kind ON audit_events(kind);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateDraft(ctx context.Context, snap *model.DraftSnapshot) (*model.DraftSnapshot, error) {
	now := time.Now().UTC()
	c, err := prepareCreate(snap, uuid.New().String(), now)
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal draft")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO drafts (id, owner_id, assessment_period, status, doc, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.DraftID, c.OwnerID, c.AssessmentPeriod, string(c.Status), doc, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert draft")
	}
	return c, nil
}

func (s *PostgresStore) UpdateDraft(ctx context.Context, id string, snap *model.DraftSnapshot) error {
	now := time.Now().UTC()
	c, err := prepareUpdate(id, snap, now)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal draft")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE drafts SET owner_id = $1, assessment_period = $2, status = $3, doc = $4, updated_at = $5
		 WHERE id = $6 AND status <> 'submitted'`,
		c.OwnerID, c.AssessmentPeriod, string(c.Status), doc, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update draft %s", id)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM drafts WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "update %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: check draft %s", id)
	}
	return eris.Wrapf(ErrSubmitted, "update %s", id)
}

func (s *PostgresStore) GetDraft(ctx context.Context, id string) (*model.DraftSnapshot, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM drafts WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "get %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get draft %s", id)
	}
	return decodeDraft(doc)
}

func (s *PostgresStore) ListDrafts(ctx context.Context, filter DraftFilter) ([]model.DraftSnapshot, error) {
	query := `SELECT doc FROM drafts`
	var where []string
	var args []any
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, clampLimit(filter.Limit), filter.Offset)
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list drafts")
	}
	defer rows.Close()

	var out []model.DraftSnapshot
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan draft")
		}
		d, err := decodeDraft(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate drafts")
}

func (s *PostgresStore) RecordAudit(ctx context.Context, evt audit.Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal audit payload")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_events (id, kind, payload, created_at) VALUES ($1, $2, $3, $4)`,
		evt.ID, evt.Kind, payload, evt.Timestamp,
	)
	return eris.Wrap(err, "postgres: insert audit event")
}
