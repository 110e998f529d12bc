package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvenance_TrustOrder(t *testing.T) {
	t.Parallel()

	assert.Greater(t, ProvenanceVerifiedStatement.Trust(), ProvenanceSelfReportedModule.Trust())
	assert.Greater(t, ProvenanceSelfReportedModule.Trust(), ProvenanceUserManualEntry.Trust())
	assert.Equal(t, 0, Provenance("rumour").Trust())
}

func TestParseProvenance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Provenance
		wantErr bool
	}{
		{"verified_statement", ProvenanceVerifiedStatement, false},
		{"Self-Reported-Module", ProvenanceSelfReportedModule, false},
		{" user_manual_entry ", ProvenanceUserManualEntry, false},
		{"ocr_guess", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProvenance(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProvenance_UnmarshalRejectsUnknown(t *testing.T) {
	t.Parallel()

	var f Fact
	err := json.Unmarshal([]byte(`{"key":{"category":"income","subcategory":"salary"},"amount":"10","provenance":"hearsay"}`), &f)
	assert.Error(t, err)
}

func TestFactKey_Less(t *testing.T) {
	t.Parallel()

	salary := NewFactKey(CategoryIncome, "Salary")
	rent := NewFactKey(CategoryIncome, "rent")
	sec80C := NewFactKey(CategoryDeduction, "80C")
	tds := NewFactKey(CategoryTaxWithheld, "employer-tds")

	assert.Equal(t, "income/salary", salary.String())
	assert.True(t, rent.Less(salary))
	assert.True(t, salary.Less(sec80C))
	assert.True(t, sec80C.Less(tds))
	assert.False(t, tds.Less(salary))
}

func TestFactKey_UnmarshalNormalizes(t *testing.T) {
	t.Parallel()

	var f Fact
	require.NoError(t, json.Unmarshal([]byte(`{"key":{"category":"income","subcategory":" Salary "},"amount":"10","provenance":"verified_statement"}`), &f))
	assert.Equal(t, NewFactKey(CategoryIncome, "salary"), f.Key)
}

func TestFact_Validate(t *testing.T) {
	t.Parallel()

	valid := Fact{
		Key:        NewFactKey(CategoryIncome, "salary"),
		Amount:     decimal.NewFromInt(500000),
		Provenance: ProvenanceVerifiedStatement,
		Detail:     Detail{Income: &IncomeDetail{Employer: "Acme"}},
	}
	require.NoError(t, valid.Validate())

	negative := valid
	negative.Amount = decimal.NewFromInt(-1)
	var ve *ValidationError
	require.ErrorAs(t, negative.Validate(), &ve)
	assert.Equal(t, "amount", ve.Field)

	mismatched := valid
	mismatched.Detail = Detail{Deduction: &DeductionDetail{Section: "80C"}}
	require.ErrorAs(t, mismatched.Validate(), &ve)
	assert.Equal(t, "detail", ve.Field)

	doubled := valid
	doubled.Detail = Detail{Income: &IncomeDetail{}, Withholding: &WithholdingDetail{}}
	assert.Error(t, doubled.Validate())

	noSub := valid
	noSub.Key.Subcategory = ""
	assert.Error(t, noSub.Validate())
}

func TestFact_OverridesOnlyForManualEntry(t *testing.T) {
	t.Parallel()

	f := Fact{Provenance: ProvenanceSelfReportedModule, Override: true}
	assert.False(t, f.Overrides())
	f.Provenance = ProvenanceUserManualEntry
	assert.True(t, f.Overrides())
}

func TestIncomeSources_SubsetOf(t *testing.T) {
	t.Parallel()

	set := NewIncomeSources(SourceSalary, SourceOther)
	assert.True(t, set.SubsetOf(SourceSalary, SourceOther, SourceHouseProperty))
	assert.False(t, set.SubsetOf(SourceSalary))
	assert.True(t, NewIncomeSources().SubsetOf(SourceSalary))
}
