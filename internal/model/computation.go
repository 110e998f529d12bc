package model

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Regime is one of the two mutually exclusive tax computation rule sets.
type Regime string

const (
	RegimeOld Regime = "old"
	RegimeNew Regime = "new"
)

// ParseRegime converts a string into a Regime.
func ParseRegime(s string) (Regime, error) {
	switch r := Regime(strings.ToLower(strings.TrimSpace(s))); r {
	case RegimeOld, RegimeNew:
		return r, nil
	}
	return "", eris.Errorf("model: unknown regime %q", s)
}

// TaxComputationResult is derived from a ledger and recomputed whenever its
// inputs change. A positive NetPayableOrRefund is a refund.
type TaxComputationResult struct {
	GrossIncome        decimal.Decimal `json:"gross_income"`
	TotalDeductions    decimal.Decimal `json:"total_deductions"`
	TaxableIncome      decimal.Decimal `json:"taxable_income"`
	OldRegimeTax       decimal.Decimal `json:"old_regime_tax"`
	NewRegimeTax       decimal.Decimal `json:"new_regime_tax"`
	RecommendedRegime  Regime          `json:"recommended_regime"`
	TaxLiability       decimal.Decimal `json:"tax_liability"`
	AmountAlreadyPaid  decimal.Decimal `json:"amount_already_paid"`
	NetPayableOrRefund decimal.Decimal `json:"net_payable_or_refund"`
}

// IsRefund reports whether more tax was paid than is owed.
func (r TaxComputationResult) IsRefund() bool {
	return r.NetPayableOrRefund.IsPositive()
}
