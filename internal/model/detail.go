package model

// IncomeDetail carries source context for income facts.
type IncomeDetail struct {
	Employer    string `json:"employer,omitempty"`
	EmployerTAN string `json:"employer_tan,omitempty"`
}

// DeductionDetail carries source context for deduction facts.
type DeductionDetail struct {
	Section string `json:"section,omitempty"`
}

// WithholdingDetail carries source context for tax-withheld facts.
type WithholdingDetail struct {
	Deductor    string `json:"deductor,omitempty"`
	DeductorTAN string `json:"deductor_tan,omitempty"`
}

// Extension is the opaque, versioned part of a fact's detail. Values are
// carried for display and audit only.
type Extension struct {
	SchemaVersion string            `json:"schema_version,omitempty"`
	Values        map[string]string `json:"values,omitempty"`
}

// Detail is a tagged union: at most one of Income, Deduction, Withholding is
// set and it must match the fact's category.
type Detail struct {
	Income      *IncomeDetail      `json:"income,omitempty"`
	Deduction   *DeductionDetail   `json:"deduction,omitempty"`
	Withholding *WithholdingDetail `json:"withholding,omitempty"`
	Extension   Extension          `json:"extension,omitempty"`
}

func (d Detail) validateFor(c Category) error {
	set := 0
	var variant Category
	if d.Income != nil {
		set++
		variant = CategoryIncome
	}
	if d.Deduction != nil {
		set++
		variant = CategoryDeduction
	}
	if d.Withholding != nil {
		set++
		variant = CategoryTaxWithheld
	}
	switch {
	case set > 1:
		return NewValidationError("detail", "more than one detail variant set")
	case set == 1 && variant != c:
		return NewValidationError("detail", "%s detail attached to %s fact", variant, c)
	}
	return nil
}
