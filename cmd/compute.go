package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/filing-assistant/internal/aggregate"
	"github.com/sells-group/filing-assistant/internal/ingest"
	"github.com/sells-group/filing-assistant/internal/model"
)

// taxpayerFile is the YAML document passed with --profile.
type taxpayerFile struct {
	Profile struct {
		IsResident        bool `yaml:"is_resident"`
		Age               int  `yaml:"age"`
		IsCompanyDirector bool `yaml:"is_company_director"`
		HasForeignAssets  bool `yaml:"has_foreign_assets"`
	} `yaml:"profile"`
	Ancillary struct {
		HousePropertyCount     int    `yaml:"house_property_count"`
		BusinessTurnover       string `yaml:"business_turnover"`
		WantsPresumptiveScheme bool   `yaml:"wants_presumptive_scheme"`
		MaintainsBooks         bool   `yaml:"maintains_books"`
	} `yaml:"ancillary"`
}

// readTaxpayer parses a taxpayer profile document. A missing path yields a
// resident with no ancillary facts.
func readTaxpayer(path string) (model.Profile, model.AncillaryFacts, error) {
	if path == "" {
		return model.Profile{IsResident: true}, model.AncillaryFacts{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Profile{}, model.AncillaryFacts{}, eris.Wrapf(err, "read profile %s", path)
	}
	return parseTaxpayer(data)
}

func parseTaxpayer(data []byte) (model.Profile, model.AncillaryFacts, error) {
	var f taxpayerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return model.Profile{}, model.AncillaryFacts{}, eris.Wrap(err, "parse profile")
	}

	turnover := decimal.Zero
	if f.Ancillary.BusinessTurnover != "" {
		var err error
		if turnover, err = decimal.NewFromString(f.Ancillary.BusinessTurnover); err != nil {
			return model.Profile{}, model.AncillaryFacts{}, model.NewValidationError("ancillary.business_turnover", "invalid amount %q", f.Ancillary.BusinessTurnover)
		}
	}

	profile := model.Profile{
		IsResident:        f.Profile.IsResident,
		Age:               f.Profile.Age,
		IsCompanyDirector: f.Profile.IsCompanyDirector,
		HasForeignAssets:  f.Profile.HasForeignAssets,
	}
	ancillary := model.AncillaryFacts{
		HousePropertyCount:     f.Ancillary.HousePropertyCount,
		BusinessTurnover:       turnover,
		WantsPresumptiveScheme: f.Ancillary.WantsPresumptiveScheme,
		MaintainsBooks:         f.Ancillary.MaintainsBooks,
	}
	return profile, ancillary, nil
}

// computeInputs are the flags shared by compute, export and draft save.
type computeInputs struct {
	factPaths   []string
	profilePath string
}

func (in *computeInputs) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&in.factPaths, "facts", nil, "fact record file (.json, .csv, .xlsx); repeatable")
	cmd.Flags().StringVar(&in.profilePath, "profile", "", "taxpayer profile YAML")
}

func (in *computeInputs) position(ctx context.Context, v *ingest.Validator, engine *aggregate.Engine) (aggregate.Position, error) {
	facts, err := v.LoadFiles(ctx, in.factPaths...)
	if err != nil {
		return aggregate.Position{}, err
	}
	profile, ancillary, err := readTaxpayer(in.profilePath)
	if err != nil {
		return aggregate.Position{}, err
	}
	return engine.Aggregate(facts, profile, ancillary)
}

var (
	computeIn   computeInputs
	computeJSON bool
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Reconcile facts, compare regimes and recommend a form",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("compute"); err != nil {
			return err
		}
		engine, _, _, err := initEngine(cfg)
		if err != nil {
			return err
		}
		v, err := initIngest(cfg)
		if err != nil {
			return err
		}

		pos, err := computeIn.position(cmd.Context(), v, engine)
		if err != nil {
			return err
		}

		if computeJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pos)
		}
		renderPosition(cmd.OutOrStdout(), pos)
		return nil
	},
}

// renderPosition prints a human-readable summary with grouped amounts.
func renderPosition(w io.Writer, pos aggregate.Position) {
	p := message.NewPrinter(language.English)
	amt := func(d decimal.Decimal) string {
		return p.Sprintf("%.2f", d.InexactFloat64())
	}

	fmt.Fprintf(w, "%-14s %-20s %16s  %-22s %s\n", "CATEGORY", "SUBCATEGORY", "AMOUNT", "SOURCE", "CONFLICT")
	for _, item := range pos.Ledger {
		conflict := ""
		if item.Conflicting {
			conflict = fmt.Sprintf("%d alternatives", len(item.Alternatives))
		}
		fmt.Fprintf(w, "%-14s %-20s %16s  %-22s %s\n",
			item.Key.Category, item.Key.Subcategory, amt(item.SelectedAmount), item.SelectedProvenance, conflict)
	}

	c := pos.Computation
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Gross income:      %16s\n", amt(c.GrossIncome))
	fmt.Fprintf(w, "Deductions:        %16s\n", amt(c.TotalDeductions))
	fmt.Fprintf(w, "Old regime tax:    %16s\n", amt(c.OldRegimeTax))
	fmt.Fprintf(w, "New regime tax:    %16s\n", amt(c.NewRegimeTax))
	fmt.Fprintf(w, "Recommended:       %16s\n", c.RecommendedRegime)
	fmt.Fprintf(w, "Already paid:      %16s\n", amt(c.AmountAlreadyPaid))
	if c.IsRefund() {
		fmt.Fprintf(w, "Refund due:        %16s\n", amt(c.NetPayableOrRefund))
	} else {
		fmt.Fprintf(w, "Payable:           %16s\n", amt(c.NetPayableOrRefund.Neg()))
	}

	r := pos.Recommendation
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Form: %s\n", r.FormID)
	for _, line := range r.Rationale {
		fmt.Fprintf(w, "  - %s\n", line)
	}
	for _, line := range r.EligibilityWarnings {
		fmt.Fprintf(w, "  ! %s\n", line)
	}
}

func init() {
	computeIn.register(computeCmd)
	computeCmd.Flags().BoolVar(&computeJSON, "json", false, "print the position as JSON")
	rootCmd.AddCommand(computeCmd)
}
