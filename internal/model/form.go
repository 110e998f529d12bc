package model

// FormID identifies a filing-form variant.
type FormID string

const (
	// FormSimple covers salary, other sources and at most one house property.
	FormSimple FormID = "ITR-1"
	// FormCapitalGains covers capital gains and multiple house properties.
	FormCapitalGains FormID = "ITR-2"
	// FormComprehensive covers everything, including non-presumptive business income.
	FormComprehensive FormID = "ITR-3"
	// FormPresumptive covers presumptive-scheme business or profession income.
	FormPresumptive FormID = "ITR-4"
)

// Simplified reports whether the form carries no itemised business,
// capital-gains or other-income schedules.
func (f FormID) Simplified() bool {
	return f == FormSimple || f == FormPresumptive
}

// FormRecommendation is the outcome of form determination.
type FormRecommendation struct {
	FormID              FormID   `json:"form_id"`
	Rationale           []string `json:"rationale"`
	EligibilityWarnings []string `json:"eligibility_warnings,omitempty"`
}
