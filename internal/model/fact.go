package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Provenance identifies where a reported fact came from.
type Provenance string

const (
	ProvenanceVerifiedStatement  Provenance = "verified_statement"
	ProvenanceSelfReportedModule Provenance = "self_reported_module"
	ProvenanceUserManualEntry    Provenance = "user_manual_entry"
)

// Trust ranks provenances: higher is more trusted. Unknown values rank 0.
func (p Provenance) Trust() int {
	switch p {
	case ProvenanceVerifiedStatement:
		return 3
	case ProvenanceSelfReportedModule:
		return 2
	case ProvenanceUserManualEntry:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is one of the known provenances.
func (p Provenance) Valid() bool {
	return p.Trust() > 0
}

// ParseProvenance converts a string into a Provenance. Hyphens and case are
// normalized so "Verified-Statement" parses the same as "verified_statement".
func ParseProvenance(s string) (Provenance, error) {
	p := Provenance(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !p.Valid() {
		return "", eris.Errorf("model: unknown provenance %q", s)
	}
	return p, nil
}

// UnmarshalText rejects unknown provenance names.
func (p *Provenance) UnmarshalText(text []byte) error {
	parsed, err := ParseProvenance(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Category is the top-level classification of a fact.
type Category string

const (
	CategoryIncome      Category = "income"
	CategoryDeduction   Category = "deduction"
	CategoryTaxWithheld Category = "tax_withheld"
)

func (c Category) order() int {
	switch c {
	case CategoryIncome:
		return 1
	case CategoryDeduction:
		return 2
	case CategoryTaxWithheld:
		return 3
	default:
		return 0
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c.order() > 0
}

// ParseCategory converts a string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !c.Valid() {
		return "", eris.Errorf("model: unknown category %q", s)
	}
	return c, nil
}

// FactKey identifies a conceptual item. Facts sharing a key are
// reconciliation candidates.
type FactKey struct {
	Category    Category `json:"category"`
	Subcategory string   `json:"subcategory"`
}

// NewFactKey builds a key with a normalized subcategory.
func NewFactKey(category Category, subcategory string) FactKey {
	return FactKey{Category: category, Subcategory: strings.ToLower(strings.TrimSpace(subcategory))}
}

// UnmarshalJSON normalizes the subcategory so decoded keys group with keys
// built by NewFactKey.
func (k *FactKey) UnmarshalJSON(data []byte) error {
	type plain FactKey
	var raw plain
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*k = NewFactKey(raw.Category, raw.Subcategory)
	return nil
}

func (k FactKey) String() string {
	return string(k.Category) + "/" + k.Subcategory
}

// Less orders keys by category (income, deduction, tax withheld), then subcategory.
func (k FactKey) Less(other FactKey) bool {
	if k.Category != other.Category {
		return k.Category.order() < other.Category.order()
	}
	return k.Subcategory < other.Subcategory
}

// Fact is a single reported amount from one source. Facts are values: a
// correction is a new Fact, never an edit of an existing one.
type Fact struct {
	Key        FactKey         `json:"key"`
	Amount     decimal.Decimal `json:"amount"`
	Provenance Provenance      `json:"provenance"`
	// Override marks a manual entry the user explicitly re-entered to replace
	// a value reported by another source.
	Override   bool      `json:"override,omitempty"`
	RecordedAt time.Time `json:"recorded_at,omitempty"`
	Detail     Detail    `json:"detail"`
}

// Validate checks the typed core of the fact and that the detail variant
// matches its category.
func (f Fact) Validate() error {
	if !f.Key.Category.Valid() {
		return NewValidationError("key.category", "unknown category %q", f.Key.Category)
	}
	if strings.TrimSpace(f.Key.Subcategory) == "" {
		return NewValidationError("key.subcategory", "subcategory is required")
	}
	if f.Amount.IsNegative() {
		return NewValidationError("amount", "amount %s for %s is negative", f.Amount.String(), f.Key)
	}
	if !f.Provenance.Valid() {
		return NewValidationError("provenance", "unknown provenance %q", f.Provenance)
	}
	return f.Detail.validateFor(f.Key.Category)
}

// Overrides reports whether this fact is an explicit user re-entry.
func (f Fact) Overrides() bool {
	return f.Override && f.Provenance == ProvenanceUserManualEntry
}
