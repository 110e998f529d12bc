// Package ingest reads extracted fact records from JSON, CSV and XLSX
// sources and exports computed positions back to spreadsheets.
package ingest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/sells-group/filing-assistant/internal/model"
)

// DefaultSchemaVersion is assigned to records that omit schema_version.
const DefaultSchemaVersion = "1.0.0"

// DefaultConstraint is the range of extension schema versions this build reads.
const DefaultConstraint = "^1"

//go:embed record.schema.json
var recordSchema string

const recordSchemaURL = "https://filing-assistant.local/schemas/fact-record.schema.json"

// Record is the flat wire shape produced by the document extraction
// service and by self-reported module exports.
type Record struct {
	SchemaVersion string            `json:"schema_version,omitempty"`
	Category      string            `json:"category"`
	Subcategory   string            `json:"subcategory"`
	Amount        decimal.Decimal   `json:"amount"`
	Provenance    string            `json:"provenance"`
	Override      bool              `json:"override,omitempty"`
	RecordedAt    string            `json:"recorded_at,omitempty"`
	Employer      string            `json:"employer,omitempty"`
	EmployerTAN   string            `json:"employer_tan,omitempty"`
	Section       string            `json:"section,omitempty"`
	Deductor      string            `json:"deductor,omitempty"`
	DeductorTAN   string            `json:"deductor_tan,omitempty"`
	Extension     map[string]string `json:"extension,omitempty"`
}

// Validator checks raw records against the embedded fact-record schema and
// the supported extension schema version range.
type Validator struct {
	schema     *jsonschema.Schema
	constraint *semver.Constraints
}

// NewValidator compiles the record schema. An empty constraint means
// DefaultConstraint.
func NewValidator(constraint string) (*Validator, error) {
	if constraint == "" {
		constraint = DefaultConstraint
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: parse schema constraint %q", constraint)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(recordSchemaURL, strings.NewReader(recordSchema)); err != nil {
		return nil, eris.Wrap(err, "ingest: load record schema")
	}
	schema, err := compiler.Compile(recordSchemaURL)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: compile record schema")
	}
	return &Validator{schema: schema, constraint: c}, nil
}

// Fact validates one raw JSON record and converts it into a Fact.
func (v *Validator) Fact(raw []byte) (model.Fact, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return model.Fact{}, model.NewValidationError("record", "malformed record: %v", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return model.Fact{}, model.NewValidationError("record", "%v", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.Fact{}, model.NewValidationError("record", "decode record: %v", err)
	}
	return v.convert(rec)
}

// Record validates a record assembled from tabular input.
func (v *Validator) Record(rec Record) (model.Fact, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return model.Fact{}, eris.Wrap(err, "ingest: marshal record")
	}
	return v.Fact(raw)
}

func (v *Validator) convert(rec Record) (model.Fact, error) {
	version := rec.SchemaVersion
	if version == "" {
		version = DefaultSchemaVersion
	}
	sv, err := semver.NewVersion(version)
	if err != nil {
		return model.Fact{}, model.NewValidationError("schema_version", "invalid schema version %q", rec.SchemaVersion)
	}
	if !v.constraint.Check(sv) {
		return model.Fact{}, model.NewValidationError("schema_version", "schema version %s is not supported", sv.String())
	}

	category, err := model.ParseCategory(rec.Category)
	if err != nil {
		return model.Fact{}, model.NewValidationError("category", "unknown category %q", rec.Category)
	}
	prov, err := model.ParseProvenance(rec.Provenance)
	if err != nil {
		return model.Fact{}, model.NewValidationError("provenance", "unknown provenance %q", rec.Provenance)
	}
	recordedAt, err := parseTime(rec.RecordedAt)
	if err != nil {
		return model.Fact{}, model.NewValidationError("recorded_at", "invalid timestamp %q", rec.RecordedAt)
	}

	fact := model.Fact{
		Key:        model.NewFactKey(category, rec.Subcategory),
		Amount:     rec.Amount,
		Provenance: prov,
		Override:   rec.Override,
		RecordedAt: recordedAt,
		Detail: model.Detail{
			Extension: model.Extension{SchemaVersion: sv.String(), Values: rec.Extension},
		},
	}
	switch category {
	case model.CategoryIncome:
		if rec.Employer != "" || rec.EmployerTAN != "" {
			fact.Detail.Income = &model.IncomeDetail{Employer: rec.Employer, EmployerTAN: rec.EmployerTAN}
		}
	case model.CategoryDeduction:
		if rec.Section != "" {
			fact.Detail.Deduction = &model.DeductionDetail{Section: rec.Section}
		}
	case model.CategoryTaxWithheld:
		if rec.Deductor != "" || rec.DeductorTAN != "" {
			fact.Detail.Withholding = &model.WithholdingDetail{Deductor: rec.Deductor, DeductorTAN: rec.DeductorTAN}
		}
	}

	if err := fact.Validate(); err != nil {
		return model.Fact{}, err
	}
	return fact, nil
}

var timeLayouts = []string{time.RFC3339, "2006-01-02"}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
