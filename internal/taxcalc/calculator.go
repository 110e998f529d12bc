package taxcalc

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/sells-group/filing-assistant/internal/model"
)

// RegimeRules is the slab table and standard deduction for one regime.
type RegimeRules struct {
	Slabs             SlabTable       `yaml:"slabs" json:"slabs"`
	StandardDeduction decimal.Decimal `yaml:"standard_deduction" json:"standard_deduction"`
}

// Regimes configures both regimes and the supplementary levy.
type Regimes struct {
	CessRate decimal.Decimal `yaml:"cess_rate" json:"cess_rate"`
	Old      RegimeRules     `yaml:"old" json:"old"`
	New      RegimeRules     `yaml:"new" json:"new"`
}

// Validate checks both slab tables and the cess rate.
func (r Regimes) Validate() error {
	if err := validateCess(r.CessRate); err != nil {
		return err
	}
	if err := r.Old.Slabs.Validate(); err != nil {
		return prefix("old", err)
	}
	if err := r.New.Slabs.Validate(); err != nil {
		return prefix("new", err)
	}
	if r.Old.StandardDeduction.IsNegative() {
		return model.NewValidationError("old.standard_deduction", "standard deduction is negative")
	}
	return nil
}

func prefix(regime string, err error) error {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return &model.ValidationError{Field: regime + "." + ve.Field, Reason: ve.Reason}
	}
	return err
}

// Comparison is the outcome of evaluating both regimes.
type Comparison struct {
	OldTaxable        decimal.Decimal `json:"old_taxable"`
	NewTaxable        decimal.Decimal `json:"new_taxable"`
	OldRegimeTax      decimal.Decimal `json:"old_regime_tax"`
	NewRegimeTax      decimal.Decimal `json:"new_regime_tax"`
	RecommendedRegime model.Regime    `json:"recommended_regime"`
	TaxLiability      decimal.Decimal `json:"tax_liability"`
}

// Calculator evaluates liability under configured regimes. It holds no
// mutable state and is safe for concurrent use.
type Calculator struct {
	regimes Regimes
}

// NewCalculator validates the regimes and returns a Calculator.
func NewCalculator(regimes Regimes) (*Calculator, error) {
	if err := regimes.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{regimes: regimes}, nil
}

// Regimes returns the configured regimes.
func (c *Calculator) Regimes() Regimes {
	return c.regimes
}

// CompareRegimes computes tax under both regimes. The new regime ignores
// deductions; the old regime subtracts deductions and its standard deduction.
// The strictly lower tax is recommended. On a tie the new regime is
// recommended as a policy choice, since it needs no deduction paperwork.
func (c *Calculator) CompareRegimes(gross, deductions decimal.Decimal) (Comparison, error) {
	if gross.IsNegative() {
		return Comparison{}, model.NewValidationError("gross_income", "gross income %s is negative", gross)
	}
	if deductions.IsNegative() {
		return Comparison{}, model.NewValidationError("total_deductions", "deductions %s are negative", deductions)
	}

	oldTaxable := decimal.Max(decimal.Zero, gross.Sub(deductions).Sub(c.regimes.Old.StandardDeduction))
	newTaxable := gross

	cmp := Comparison{
		OldTaxable:   oldTaxable,
		NewTaxable:   newTaxable,
		OldRegimeTax: applyCess(c.regimes.Old.Slabs.Base(oldTaxable), c.regimes.CessRate),
		NewRegimeTax: applyCess(c.regimes.New.Slabs.Base(newTaxable), c.regimes.CessRate),
	}
	if cmp.OldRegimeTax.LessThan(cmp.NewRegimeTax) {
		cmp.RecommendedRegime = model.RegimeOld
		cmp.TaxLiability = cmp.OldRegimeTax
	} else {
		cmp.RecommendedRegime = model.RegimeNew
		cmp.TaxLiability = cmp.NewRegimeTax
	}
	return cmp, nil
}

// Compute produces the full computation result for a filing.
func (c *Calculator) Compute(gross, deductions, paid decimal.Decimal) (model.TaxComputationResult, error) {
	if paid.IsNegative() {
		return model.TaxComputationResult{}, model.NewValidationError("amount_already_paid", "amount paid %s is negative", paid)
	}
	cmp, err := c.CompareRegimes(gross, deductions)
	if err != nil {
		return model.TaxComputationResult{}, err
	}
	return model.TaxComputationResult{
		GrossIncome:        gross,
		TotalDeductions:    deductions,
		TaxableIncome:      decimal.Max(decimal.Zero, gross.Sub(deductions)),
		OldRegimeTax:       cmp.OldRegimeTax,
		NewRegimeTax:       cmp.NewRegimeTax,
		RecommendedRegime:  cmp.RecommendedRegime,
		TaxLiability:       cmp.TaxLiability,
		AmountAlreadyPaid:  paid,
		NetPayableOrRefund: paid.Sub(cmp.TaxLiability),
	}, nil
}
