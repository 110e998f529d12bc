package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/filing-assistant/internal/aggregate"
	"github.com/sells-group/filing-assistant/internal/ingest"
	"github.com/sells-group/filing-assistant/internal/model"
)

func TestParseTaxpayer(t *testing.T) {
	profile, ancillary, err := parseTaxpayer([]byte(`
profile:
  is_resident: true
  age: 45
  is_company_director: true
ancillary:
  house_property_count: 2
  business_turnover: "1500000"
  wants_presumptive_scheme: true
`))
	require.NoError(t, err)

	assert.True(t, profile.IsResident)
	assert.Equal(t, 45, profile.Age)
	assert.True(t, profile.IsCompanyDirector)
	assert.False(t, profile.HasForeignAssets)
	assert.Equal(t, 2, ancillary.HousePropertyCount)
	assert.True(t, ancillary.BusinessTurnover.Equal(decimal.NewFromInt(1500000)))
	assert.True(t, ancillary.WantsPresumptiveScheme)
}

func TestParseTaxpayer_Errors(t *testing.T) {
	_, _, err := parseTaxpayer([]byte("profile: [oops"))
	require.Error(t, err)

	_, _, err = parseTaxpayer([]byte("ancillary:\n  business_turnover: plenty\n"))
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "ancillary.business_turnover", ve.Field)
}

func TestReadTaxpayer_DefaultsToResident(t *testing.T) {
	profile, ancillary, err := readTaxpayer("")
	require.NoError(t, err)
	assert.True(t, profile.IsResident)
	assert.True(t, ancillary.BusinessTurnover.IsZero())

	_, _, err = readTaxpayer(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRenderPosition(t *testing.T) {
	pos := aggregate.Position{
		Ledger: model.Ledger{{
			Key:                model.NewFactKey(model.CategoryIncome, "salary"),
			SelectedAmount:     decimal.NewFromInt(900000),
			SelectedProvenance: model.ProvenanceVerifiedStatement,
			Conflicting:        true,
			Alternatives:       make([]model.Alternative, 2),
		}},
		Computation: model.TaxComputationResult{
			GrossIncome:        decimal.NewFromInt(900000),
			RecommendedRegime:  model.RegimeNew,
			NetPayableOrRefund: decimal.NewFromInt(3200),
		},
		Recommendation: model.FormRecommendation{
			FormID:              model.FormSimple,
			Rationale:           []string{"salary and other sources only"},
			EligibilityWarnings: []string{"residents only"},
		},
	}

	var buf bytes.Buffer
	renderPosition(&buf, pos)
	out := buf.String()

	assert.Contains(t, out, "900,000.00")
	assert.Contains(t, out, "2 alternatives")
	assert.Contains(t, out, "Refund due:")
	assert.Contains(t, out, "3,200.00")
	assert.Contains(t, out, "Form: ITR-1")
	assert.Contains(t, out, "  - salary and other sources only")
	assert.Contains(t, out, "  ! residents only")

	pos.Computation.NetPayableOrRefund = decimal.NewFromInt(-1200)
	buf.Reset()
	renderPosition(&buf, pos)
	assert.Contains(t, buf.String(), "Payable:")
	assert.Contains(t, buf.String(), "1,200.00")
}

func TestComputeCommand_JSON(t *testing.T) {
	dir := inTempDir(t)
	factsPath, profilePath := writeInputs(t, dir)

	out, err := execute(t, "compute", "--facts", factsPath, "--profile", profilePath, "--json")
	require.NoError(t, err)

	var pos aggregate.Position
	require.NoError(t, json.Unmarshal([]byte(out), &pos))
	require.Len(t, pos.Ledger, 3)
	assert.True(t, pos.Ledger[0].Conflicting)
	assert.True(t, pos.Computation.TaxLiability.Equal(decimal.NewFromInt(46800)))
	assert.True(t, pos.Computation.NetPayableOrRefund.Equal(decimal.NewFromInt(3200)))
	assert.Equal(t, model.FormSimple, pos.Recommendation.FormID)
}

func TestComputeCommand_InvalidFacts(t *testing.T) {
	dir := inTempDir(t)
	_, profilePath := writeInputs(t, dir)
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, writeFile(bad, `[{"category":"income","subcategory":"salary","amount":"-1","provenance":"verified_statement"}]`))

	_, err := execute(t, "compute", "--facts", bad, "--profile", profilePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "records[0]")
}

func TestExportCommand(t *testing.T) {
	dir := inTempDir(t)
	factsPath, profilePath := writeInputs(t, dir)
	outPath := filepath.Join(dir, "position.xlsx")

	out, err := execute(t, "export", "--facts", factsPath, "--profile", profilePath, "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 3 ledger items")

	f, err := xlsx.OpenFile(outPath)
	require.NoError(t, err)
	assert.NotNil(t, f.Sheet[ingest.SheetLedger])
	assert.NotNil(t, f.Sheet[ingest.SheetComputation])
	assert.NotNil(t, f.Sheet[ingest.SheetForm])
}

func TestExportCommand_RequiresOut(t *testing.T) {
	inTempDir(t)

	_, err := execute(t, "export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--out is required")
}
