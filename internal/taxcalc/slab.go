// Package taxcalc computes progressive slab-based tax liability and compares
// the old and new regimes.
package taxcalc

import (
	"github.com/shopspring/decimal"

	"github.com/sells-group/filing-assistant/internal/model"
)

// Slab is a contiguous income bracket taxed at a marginal rate. A nil Upper
// means the slab is open-ended.
type Slab struct {
	Lower decimal.Decimal  `yaml:"lower" json:"lower"`
	Upper *decimal.Decimal `yaml:"upper,omitempty" json:"upper,omitempty"`
	Rate  decimal.Decimal  `yaml:"rate" json:"rate"`
}

// SlabTable is an ordered sequence of slabs starting at zero.
type SlabTable []Slab

var one = decimal.NewFromInt(1)

// Validate checks that slabs start at 0, are contiguous with strictly
// increasing bounds, have rates in [0,1), and end with an open-ended slab.
func (t SlabTable) Validate() error {
	if len(t) == 0 {
		return model.NewValidationError("slabs", "slab table is empty")
	}
	if !t[0].Lower.IsZero() {
		return model.NewValidationError("slabs", "first slab starts at %s, not 0", t[0].Lower)
	}
	for i, s := range t {
		if s.Rate.IsNegative() || s.Rate.GreaterThanOrEqual(one) {
			return model.NewValidationError("slabs", "slab %d rate %s outside [0,1)", i, s.Rate)
		}
		last := i == len(t)-1
		if s.Upper == nil {
			if !last {
				return model.NewValidationError("slabs", "slab %d is open-ended but not last", i)
			}
			continue
		}
		if last {
			return model.NewValidationError("slabs", "final slab must be open-ended")
		}
		if !s.Upper.GreaterThan(s.Lower) {
			return model.NewValidationError("slabs", "slab %d upper bound %s not above lower bound %s", i, s.Upper, s.Lower)
		}
		if !t[i+1].Lower.Equal(*s.Upper) {
			return model.NewValidationError("slabs", "slab %d ends at %s but slab %d starts at %s", i, s.Upper, i+1, t[i+1].Lower)
		}
	}
	return nil
}

// Base returns the marginal tax on taxable before any levy. The table must
// already be valid.
func (t SlabTable) Base(taxable decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, s := range t {
		if taxable.LessThanOrEqual(s.Lower) {
			break
		}
		top := taxable
		if s.Upper != nil && s.Upper.LessThan(taxable) {
			top = *s.Upper
		}
		total = total.Add(top.Sub(s.Lower).Mul(s.Rate))
	}
	return total
}

// ComputeTax applies the slab table to taxable income, adds the cess levy on
// the computed amount, and rounds half-up to whole currency units.
func ComputeTax(taxable decimal.Decimal, table SlabTable, cessRate decimal.Decimal) (decimal.Decimal, error) {
	if taxable.IsNegative() {
		return decimal.Zero, model.NewValidationError("taxable_income", "taxable income %s is negative", taxable)
	}
	if err := validateCess(cessRate); err != nil {
		return decimal.Zero, err
	}
	if err := table.Validate(); err != nil {
		return decimal.Zero, err
	}
	return applyCess(table.Base(taxable), cessRate), nil
}

func applyCess(base, cessRate decimal.Decimal) decimal.Decimal {
	// Round is half away from zero, which is half-up for non-negative amounts.
	return base.Mul(one.Add(cessRate)).Round(0)
}

func validateCess(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
		return model.NewValidationError("cess_rate", "cess rate %s outside [0,1)", rate)
	}
	return nil
}

// Bound is a convenience for building slab upper bounds.
func Bound(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
