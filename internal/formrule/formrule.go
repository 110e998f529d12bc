// Package formrule selects the filing form from a taxpayer's income sources
// and ancillary facts using an ordered rule list. The first matching rule
// wins; the order is part of the contract.
package formrule

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/filing-assistant/internal/model"
)

// DefaultPresumptiveTurnoverLimit is the turnover below which the presumptive
// scheme is available.
var DefaultPresumptiveTurnoverLimit = decimal.NewFromInt(20_000_000)

// Input is everything a rule may inspect.
type Input struct {
	Profile   model.Profile
	Sources   model.IncomeSources
	Ancillary model.AncillaryFacts
}

// Rule maps an input to a form. Match returns the rationale for firing, or
// nil when the rule does not apply.
type Rule struct {
	Name  string
	Form  model.FormID
	Match func(in Input) []string
}

// Determiner evaluates the rule list. It holds only configuration.
type Determiner struct {
	limit   decimal.Decimal
	printer *message.Printer
}

// NewDeterminer creates a Determiner. A zero or negative limit falls back to
// DefaultPresumptiveTurnoverLimit.
func NewDeterminer(presumptiveLimit decimal.Decimal) *Determiner {
	if !presumptiveLimit.IsPositive() {
		presumptiveLimit = DefaultPresumptiveTurnoverLimit
	}
	return &Determiner{
		limit:   presumptiveLimit,
		printer: message.NewPrinter(language.English),
	}
}

func (d *Determiner) amount(v decimal.Decimal) string {
	return d.printer.Sprintf("%d", v.Round(0).IntPart())
}

func (d *Determiner) underLimit(in Input) bool {
	return in.Ancillary.BusinessTurnover.LessThan(d.limit)
}

// Rules returns the rules in evaluation order.
func (d *Determiner) Rules() []Rule {
	return []Rule{
		{
			Name: "comprehensive-disclosure",
			Form: model.FormComprehensive,
			Match: func(in Input) []string {
				var why []string
				if in.Profile.IsCompanyDirector {
					why = append(why, "company directors must file the comprehensive form")
				}
				if in.Profile.HasForeignAssets {
					why = append(why, "foreign assets are reported only on the comprehensive form")
				}
				if in.Sources.Has(model.SourceBusiness) && !in.Ancillary.WantsPresumptiveScheme {
					why = append(why, "business income outside the presumptive scheme needs full profit and loss schedules")
				}
				return why
			},
		},
		{
			Name: "presumptive",
			Form: model.FormPresumptive,
			Match: func(in Input) []string {
				hasBiz := in.Sources.Has(model.SourceBusiness) || in.Sources.Has(model.SourceProfession)
				if !hasBiz || !in.Ancillary.WantsPresumptiveScheme || !d.underLimit(in) {
					return nil
				}
				return []string{d.printer.Sprintf(
					"business or professional income under the presumptive scheme with turnover %s below the %s limit",
					d.amount(in.Ancillary.BusinessTurnover), d.amount(d.limit),
				)}
			},
		},
		{
			Name: "capital-gains-or-multiple-properties",
			Form: model.FormCapitalGains,
			Match: func(in Input) []string {
				var why []string
				if in.Sources.Has(model.SourceCapitalGains) {
					why = append(why, "capital gains must be reported on the capital gains schedule")
				}
				if in.Ancillary.HousePropertyCount > 1 {
					why = append(why, d.printer.Sprintf("%d house properties exceed the single-property limit of the simplest form", in.Ancillary.HousePropertyCount))
				}
				return why
			},
		},
		{
			Name: "simple",
			Form: model.FormSimple,
			Match: func(in Input) []string {
				if !in.Sources.SubsetOf(model.SourceSalary, model.SourceOther, model.SourceHouseProperty) ||
					in.Ancillary.HousePropertyCount > 1 {
					return nil
				}
				return []string{"income is limited to salary, other sources and at most one house property"}
			},
		},
		{
			Name: "fallback",
			Form: model.FormComprehensive,
			Match: func(in Input) []string {
				return []string{"no simpler form covers this combination of income sources"}
			},
		},
	}
}

// Determine returns the recommended form. Only malformed input is an error;
// anything unusual falls through to the comprehensive form so the user is
// never blocked.
func (d *Determiner) Determine(profile model.Profile, sources model.IncomeSources, ancillary model.AncillaryFacts) (model.FormRecommendation, error) {
	if err := validate(profile, sources, ancillary); err != nil {
		return model.FormRecommendation{}, err
	}
	in := Input{Profile: profile, Sources: sources, Ancillary: ancillary}

	var rec model.FormRecommendation
	for _, rule := range d.Rules() {
		if why := rule.Match(in); len(why) > 0 {
			rec = model.FormRecommendation{FormID: rule.Form, Rationale: why}
			break
		}
	}
	rec.EligibilityWarnings = d.warnings(in, rec.FormID)
	return rec, nil
}

func (d *Determiner) warnings(in Input, form model.FormID) []string {
	var out []string
	hasBiz := in.Sources.Has(model.SourceBusiness) || in.Sources.Has(model.SourceProfession)
	if hasBiz && in.Ancillary.WantsPresumptiveScheme && !d.underLimit(in) {
		out = append(out, d.printer.Sprintf(
			"turnover %s is not below the presumptive limit of %s, so the presumptive scheme is unavailable",
			d.amount(in.Ancillary.BusinessTurnover), d.amount(d.limit),
		))
	}
	if form.Simplified() && !in.Profile.IsResident {
		out = append(out, d.printer.Sprintf("%s is available to residents only; a non-resident should file %s", form, model.FormCapitalGains))
	}
	if form == model.FormPresumptive && in.Ancillary.MaintainsBooks {
		out = append(out, "books of account are maintained; confirm the presumptive scheme is intended")
	}
	return out
}

func validate(profile model.Profile, sources model.IncomeSources, ancillary model.AncillaryFacts) error {
	if profile.Age < 0 {
		return model.NewValidationError("profile.age", "age %d is negative", profile.Age)
	}
	if ancillary.HousePropertyCount < 0 {
		return model.NewValidationError("ancillary.house_property_count", "count %d is negative", ancillary.HousePropertyCount)
	}
	if ancillary.BusinessTurnover.IsNegative() {
		return model.NewValidationError("ancillary.business_turnover", "turnover %s is negative", ancillary.BusinessTurnover)
	}
	for s := range sources {
		if !s.Valid() {
			return model.NewValidationError("income_categories", "unknown income category %q", s)
		}
	}
	return nil
}
