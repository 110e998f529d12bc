package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/filing-assistant/internal/aggregate"
	"github.com/sells-group/filing-assistant/internal/api"
	"github.com/sells-group/filing-assistant/internal/draft"
	"github.com/sells-group/filing-assistant/internal/formrule"
	"github.com/sells-group/filing-assistant/internal/model"
	"github.com/sells-group/filing-assistant/internal/store"
	"github.com/sells-group/filing-assistant/internal/taxcalc"
)

func TestParseValue(t *testing.T) {
	assert.Equal(t, "Asha", parseValue("Asha"))
	assert.Equal(t, float64(42), parseValue("42"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, []any{"a", "b"}, parseValue(`["a","b"]`))
}

func TestApplyEdits(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	values := filepath.Join(t.TempDir(), "values.json")
	require.NoError(t, os.WriteFile(values, []byte(`{"employer_name":"Acme","pan":"ABCDE1234F"}`), 0o600))

	savePeriod = "2026-27"
	saveRegime = "OLD"
	saveForm = "itr-2"
	saveValues = values
	saveSets = []string{"pan=XYZAB9876C", "capital_gains=[1,2]"}

	snap := &model.DraftSnapshot{OwnerID: "taxpayer-1"}
	require.NoError(t, applyEdits(snap))

	assert.Equal(t, "2026-27", snap.AssessmentPeriod)
	assert.Equal(t, model.RegimeOld, snap.RegimeSelection.Regime)
	assert.Equal(t, model.FormCapitalGains, snap.RegimeSelection.FormID)
	assert.Equal(t, "Acme", snap.UserEnteredValues["employer_name"])
	assert.Equal(t, "XYZAB9876C", snap.UserEnteredValues["pan"])
	assert.Equal(t, []any{float64(1), float64(2)}, snap.UserEnteredValues["capital_gains"])
}

func TestApplyEdits_Errors(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	saveSets = []string{"novalue"}
	assert.Error(t, applyEdits(&model.DraftSnapshot{}))

	saveSets = nil
	saveRegime = "flat"
	assert.Error(t, applyEdits(&model.DraftSnapshot{}))
}

func newRemoteServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "remote.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	calc, err := taxcalc.NewCalculator(taxcalc.DefaultRegimes())
	require.NoError(t, err)
	det := formrule.NewDeterminer(decimal.Zero)

	srv := httptest.NewServer(api.NewRouter(api.Deps{
		Store:      st,
		Engine:     aggregate.New(calc, det),
		Calculator: calc,
		Determiner: det,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func clientEnvVars(t *testing.T, dir, baseURL string) {
	t.Helper()
	t.Setenv("FILING_REMOTE_BASE_URL", baseURL)
	t.Setenv("FILING_DRAFT_OWNER_ID", "taxpayer-1")
	t.Setenv("FILING_CACHE_DRIVER", "sqlite")
	t.Setenv("FILING_CACHE_PATH", filepath.Join(dir, "cache.db"))
	t.Setenv("FILING_REMOTE_TIMEOUT_SECS", "2")
}

type saveOutput struct {
	Result        string `json:"result"`
	Reason        string `json:"reason"`
	DraftID       string `json:"draft_id"`
	Outcome       string `json:"outcome"`
	ExitAfterSave bool   `json:"exit_after_save"`
}

func TestDraftCommands_SaveLoadSubmit(t *testing.T) {
	dir := inTempDir(t)
	factsPath, profilePath := writeInputs(t, dir)
	srv := newRemoteServer(t)
	clientEnvVars(t, dir, srv.URL)

	out, err := execute(t, "draft", "save",
		"--facts", factsPath, "--profile", profilePath,
		"--period", "2026-27", "--set", "name=Asha", "--exit")
	require.NoError(t, err)

	var saved saveOutput
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	assert.Equal(t, draft.ResultSuccess.String(), saved.Result)
	assert.Equal(t, string(draft.OutcomeSynced), saved.Outcome)
	assert.True(t, saved.ExitAfterSave)
	require.NotEmpty(t, saved.DraftID)

	out, err = execute(t, "draft", "load")
	require.NoError(t, err)

	var loaded draft.LoadResult
	require.NoError(t, json.Unmarshal([]byte(out), &loaded))
	assert.Equal(t, model.SyncSynced, loaded.State)
	assert.True(t, loaded.Confirmed)
	require.NotNil(t, loaded.Snapshot)
	assert.Equal(t, saved.DraftID, loaded.Snapshot.DraftID)
	assert.Equal(t, "2026-27", loaded.Snapshot.AssessmentPeriod)
	assert.Equal(t, "Asha", loaded.Snapshot.UserEnteredValues["name"])
	require.NotNil(t, loaded.Snapshot.Computation)
	assert.True(t, loaded.Snapshot.Computation.NetPayableOrRefund.Equal(decimal.NewFromInt(3200)))
	assert.Equal(t, model.FormSimple, loaded.Snapshot.RegimeSelection.FormID)

	out, err = execute(t, "draft", "submit", "--id", saved.DraftID)
	require.NoError(t, err)
	assert.Contains(t, out, "Submitted draft "+saved.DraftID)

	out, err = execute(t, "draft", "save", "--id", saved.DraftID, "--set", "name=Other")
	require.Error(t, err)
	var closed saveOutput
	require.NoError(t, json.Unmarshal([]byte(out), &closed))
	assert.Equal(t, draft.ResultDraftClosed.String(), closed.Result)
}

func TestDraftCommands_SaveLocalOnlyWhenRemoteDown(t *testing.T) {
	dir := inTempDir(t)
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()
	clientEnvVars(t, dir, url)

	out, err := execute(t, "draft", "save", "--set", "name=Asha")
	require.NoError(t, err)

	var saved saveOutput
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	assert.Equal(t, draft.ResultSuccessWithLocalOnly.String(), saved.Result)
	assert.Equal(t, string(draft.OutcomeLocalOnly), saved.Outcome)

	out, err = execute(t, "draft", "load")
	require.NoError(t, err)
	var loaded draft.LoadResult
	require.NoError(t, json.Unmarshal([]byte(out), &loaded))
	assert.Equal(t, model.SyncLocal, loaded.State)
	assert.False(t, loaded.Confirmed)
	require.NotNil(t, loaded.Snapshot)
	assert.Equal(t, "Asha", loaded.Snapshot.UserEnteredValues["name"])
}

func TestDraftSubmit_RequiresID(t *testing.T) {
	inTempDir(t)

	_, err := execute(t, "draft", "submit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--id is required")
}
