// Package aggregate composes reconciliation, tax computation and form
// determination into one pure, re-runnable pass over a taxpayer's facts.
package aggregate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/filing-assistant/internal/formrule"
	"github.com/sells-group/filing-assistant/internal/model"
	"github.com/sells-group/filing-assistant/internal/reconcile"
	"github.com/sells-group/filing-assistant/internal/taxcalc"
)

// Position is the complete derived view of a taxpayer's facts.
type Position struct {
	Ledger         model.Ledger               `json:"ledger"`
	Computation    model.TaxComputationResult `json:"computation"`
	Recommendation model.FormRecommendation   `json:"recommendation"`
}

// Engine holds the configured calculator and determiner. It has no mutable
// state of its own.
type Engine struct {
	calc *taxcalc.Calculator
	det  *formrule.Determiner
}

// New creates an Engine.
func New(calc *taxcalc.Calculator, det *formrule.Determiner) *Engine {
	return &Engine{calc: calc, det: det}
}

// Aggregate reconciles facts, computes liability under both regimes and
// recommends a form. Identical inputs always produce identical output.
func (e *Engine) Aggregate(facts []model.Fact, profile model.Profile, ancillary model.AncillaryFacts) (Position, error) {
	for i, f := range facts {
		if err := f.Validate(); err != nil {
			return Position{}, indexed(i, err)
		}
	}

	ledger := reconcile.Reconcile(facts)
	gross := ledger.Total(model.CategoryIncome)
	deductions := ledger.Total(model.CategoryDeduction)
	paid := ledger.Total(model.CategoryTaxWithheld)

	comp, err := e.calc.Compute(gross, deductions, paid)
	if err != nil {
		return Position{}, err
	}

	rec, err := e.det.Determine(profile, IncomeSources(ledger), ancillary)
	if err != nil {
		return Position{}, err
	}

	zap.L().Debug("aggregate: position computed",
		zap.Int("items", len(ledger)),
		zap.Int("conflicts", len(reconcile.Conflicts(ledger))),
		zap.String("regime", string(comp.RecommendedRegime)),
		zap.String("form", string(rec.FormID)),
	)

	return Position{Ledger: ledger, Computation: comp, Recommendation: rec}, nil
}

func indexed(i int, err error) error {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return &model.ValidationError{Field: fmt.Sprintf("facts[%d].%s", i, ve.Field), Reason: ve.Reason}
	}
	return eris.Wrapf(err, "aggregate: fact %d", i)
}

// ApplyTo copies the derived position into a draft before it is saved.
func (p Position) ApplyTo(d *model.DraftSnapshot) {
	d.ReconciledLedger = p.Ledger
	comp := p.Computation
	d.Computation = &comp
	rec := p.Recommendation
	d.FormRecommendation = &rec
	if d.RegimeSelection.Regime == "" {
		d.RegimeSelection.Regime = comp.RecommendedRegime
	}
	if d.RegimeSelection.FormID == "" {
		d.RegimeSelection.FormID = rec.FormID
	}
}

var sourceAliases = map[string]model.IncomeSource{
	"salary":          model.SourceSalary,
	"wages":           model.SourceSalary,
	"pension":         model.SourceSalary,
	"house_property":  model.SourceHouseProperty,
	"rent":            model.SourceHouseProperty,
	"rental":          model.SourceHouseProperty,
	"business":        model.SourceBusiness,
	"business_income": model.SourceBusiness,
	"profession":      model.SourceProfession,
	"professional":    model.SourceProfession,
	"capital_gains":   model.SourceCapitalGains,
	"stcg":            model.SourceCapitalGains,
	"ltcg":            model.SourceCapitalGains,
	"interest":        model.SourceOther,
	"dividend":        model.SourceOther,
	"other":           model.SourceOther,
	"other_income":    model.SourceOther,
}

// SourceFor maps an income subcategory to its form-relevant source.
// Unrecognised subcategories count as other income.
func SourceFor(subcategory string) model.IncomeSource {
	if s, ok := sourceAliases[strings.ToLower(strings.TrimSpace(subcategory))]; ok {
		return s
	}
	return model.SourceOther
}

// IncomeSources derives the set of income sources with a positive selected
// amount.
func IncomeSources(ledger model.Ledger) model.IncomeSources {
	set := model.NewIncomeSources()
	for _, item := range ledger {
		if item.Key.Category != model.CategoryIncome || !item.SelectedAmount.GreaterThan(decimal.Zero) {
			continue
		}
		set[SourceFor(item.Key.Subcategory)] = true
	}
	return set
}
