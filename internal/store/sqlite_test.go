package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/filing-assistant/internal/audit"
	"github.com/sells-group/filing-assistant/internal/model"
)

// Compile-time interface checks.
var (
	_ Store          = (*SQLiteStore)(nil)
	_ Store          = (*PostgresStore)(nil)
	_ audit.Recorder = (*SQLiteStore)(nil)
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testDraft(owner string) *model.DraftSnapshot {
	return &model.DraftSnapshot{
		OwnerID:          owner,
		AssessmentPeriod: "2025-26",
		ReconciledLedger: model.Ledger{{
			Key:                model.NewFactKey(model.CategoryIncome, "salary"),
			SelectedAmount:     decimal.NewFromInt(900000),
			SelectedProvenance: model.ProvenanceVerifiedStatement,
		}},
		UserEnteredValues: map[string]any{"employer": "Acme"},
		LastModifiedAt:    time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSQLite_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateDraft(ctx, testDraft("u1"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.DraftID)
	assert.Equal(t, model.DraftStatusDraft, created.Status)

	got, err := st.GetDraft(ctx, created.DraftID)
	require.NoError(t, err)
	assert.Equal(t, created.DraftID, got.DraftID)
	assert.Equal(t, "Acme", got.UserEnteredValues["employer"])
	assert.True(t, got.ReconciledLedger[0].SelectedAmount.Equal(decimal.NewFromInt(900000)))
	assert.True(t, got.LastModifiedAt.Equal(created.LastModifiedAt))
}

func TestSQLite_CreateValidation(t *testing.T) {
	st := newTestSQLiteStore(t)
	var verr *model.ValidationError

	_, err := st.CreateDraft(context.Background(), &model.DraftSnapshot{})
	assert.True(t, errors.As(err, &verr))
	_, err = st.CreateDraft(context.Background(), nil)
	assert.True(t, errors.As(err, &verr))
}

func TestSQLite_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetDraft(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_Update(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateDraft(ctx, testDraft("u1"))
	require.NoError(t, err)

	edit := created.Clone()
	edit.UserEnteredValues["employer"] = "Acme Ltd"
	require.NoError(t, st.UpdateDraft(ctx, created.DraftID, edit))

	got, err := st.GetDraft(ctx, created.DraftID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", got.UserEnteredValues["employer"])

	err = st.UpdateDraft(ctx, "missing", edit)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_SubmittedIsImmutable(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateDraft(ctx, testDraft("u1"))
	require.NoError(t, err)

	submitted := created.Clone()
	submitted.Status = model.DraftStatusSubmitted
	require.NoError(t, st.UpdateDraft(ctx, created.DraftID, submitted))

	again := created.Clone()
	again.UserEnteredValues["employer"] = "Changed"
	err = st.UpdateDraft(ctx, created.DraftID, again)
	assert.True(t, errors.Is(err, ErrSubmitted))

	got, err := st.GetDraft(ctx, created.DraftID)
	require.NoError(t, err)
	assert.True(t, got.Submitted())
	assert.Equal(t, "Acme", got.UserEnteredValues["employer"])
}

func TestSQLite_ListDrafts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, owner := range []string{"u1", "u1", "u2"} {
		_, err := st.CreateDraft(ctx, testDraft(owner))
		require.NoError(t, err)
	}

	all, err := st.ListDrafts(ctx, DraftFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := st.ListDrafts(ctx, DraftFilter{OwnerID: "u1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	limited, err := st.ListDrafts(ctx, DraftFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := st.ListDrafts(ctx, DraftFilter{Status: model.DraftStatusSubmitted})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_RecordAudit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sink := audit.NewStoreSink(st)
	require.NoError(t, sink.LogEvent(ctx, "draft.saved", map[string]any{"draft_id": "d-1"}))

	var n int
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events WHERE kind = ?`, "draft.saved").Scan(&n))
	assert.Equal(t, 1, n)
}
