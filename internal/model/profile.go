package model

import "github.com/shopspring/decimal"

// Profile holds taxpayer facts supplied once per determination request.
type Profile struct {
	IsResident        bool `json:"is_resident"`
	Age               int  `json:"age"`
	IsCompanyDirector bool `json:"is_company_director"`
	HasForeignAssets  bool `json:"has_foreign_assets"`
}

// AncillaryFacts are the non-income facts that affect form selection.
type AncillaryFacts struct {
	HousePropertyCount     int             `json:"house_property_count"`
	BusinessTurnover       decimal.Decimal `json:"business_turnover"`
	WantsPresumptiveScheme bool            `json:"wants_presumptive_scheme"`
	MaintainsBooks         bool            `json:"maintains_books"`
}

// IncomeSource is a form-relevant category of income.
type IncomeSource string

const (
	SourceSalary        IncomeSource = "salary"
	SourceHouseProperty IncomeSource = "house_property"
	SourceBusiness      IncomeSource = "business"
	SourceProfession    IncomeSource = "profession"
	SourceCapitalGains  IncomeSource = "capital_gains"
	SourceOther         IncomeSource = "other"
)

// Valid reports whether s is a known income source.
func (s IncomeSource) Valid() bool {
	switch s {
	case SourceSalary, SourceHouseProperty, SourceBusiness, SourceProfession, SourceCapitalGains, SourceOther:
		return true
	}
	return false
}

// IncomeSources is a set of income sources.
type IncomeSources map[IncomeSource]bool

// NewIncomeSources builds a set from the given sources.
func NewIncomeSources(sources ...IncomeSource) IncomeSources {
	set := make(IncomeSources, len(sources))
	for _, s := range sources {
		set[s] = true
	}
	return set
}

// Has reports whether s is in the set.
func (set IncomeSources) Has(s IncomeSource) bool {
	return set[s]
}

// SubsetOf reports whether every member of set is in allowed.
func (set IncomeSources) SubsetOf(allowed ...IncomeSource) bool {
	ok := NewIncomeSources(allowed...)
	for s, present := range set {
		if present && !ok[s] {
			return false
		}
	}
	return true
}
