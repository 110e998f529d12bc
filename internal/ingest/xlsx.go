package ingest

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/filing-assistant/internal/aggregate"
	"github.com/sells-group/filing-assistant/internal/model"
)

// XLSXOptions selects the worksheet holding fact records.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSX reads fact records from a worksheet whose first row is a header.
func (v *Validator) ReadXLSX(path string, opts XLSXOptions) ([]model.Fact, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	cols, err := newColumns(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	var facts []model.Fact
	for i, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		if blank(cells) {
			continue
		}
		fact, err := v.row(cols, cells)
		if err != nil {
			return nil, atRecord(i, err)
		}
		facts = append(facts, fact)
	}
	return facts, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

// Sheet names written by ExportXLSX.
const (
	SheetLedger      = "Ledger"
	SheetComputation = "Computation"
	SheetForm        = "Form"
)

// ExportXLSX writes a computed position to a workbook with one sheet each
// for the ledger, the computation and the form recommendation.
func ExportXLSX(path string, pos aggregate.Position) error {
	f := xlsx.NewFile()

	ledger, err := f.AddSheet(SheetLedger)
	if err != nil {
		return eris.Wrap(err, "xlsx: add ledger sheet")
	}
	addRow(ledger, "category", "subcategory", "amount", "provenance", "conflicting", "alternatives")
	for _, item := range pos.Ledger {
		alts := make([]string, 0, len(item.Alternatives))
		for _, a := range item.Alternatives {
			alts = append(alts, string(a.Provenance)+"="+a.Amount.StringFixed(2))
		}
		conflicting := "no"
		if item.Conflicting {
			conflicting = "yes"
		}
		addRow(ledger,
			string(item.Key.Category),
			item.Key.Subcategory,
			item.SelectedAmount.StringFixed(2),
			string(item.SelectedProvenance),
			conflicting,
			strings.Join(alts, "; "),
		)
	}

	comp, err := f.AddSheet(SheetComputation)
	if err != nil {
		return eris.Wrap(err, "xlsx: add computation sheet")
	}
	c := pos.Computation
	addRow(comp, "field", "value")
	addRow(comp, "gross_income", c.GrossIncome.StringFixed(2))
	addRow(comp, "total_deductions", c.TotalDeductions.StringFixed(2))
	addRow(comp, "taxable_income", c.TaxableIncome.StringFixed(2))
	addRow(comp, "old_regime_tax", c.OldRegimeTax.StringFixed(2))
	addRow(comp, "new_regime_tax", c.NewRegimeTax.StringFixed(2))
	addRow(comp, "recommended_regime", string(c.RecommendedRegime))
	addRow(comp, "tax_liability", c.TaxLiability.StringFixed(2))
	addRow(comp, "amount_already_paid", c.AmountAlreadyPaid.StringFixed(2))
	addRow(comp, "net_payable_or_refund", c.NetPayableOrRefund.StringFixed(2))

	form, err := f.AddSheet(SheetForm)
	if err != nil {
		return eris.Wrap(err, "xlsx: add form sheet")
	}
	addRow(form, "kind", "text")
	addRow(form, "form_id", string(pos.Recommendation.FormID))
	for _, r := range pos.Recommendation.Rationale {
		addRow(form, "rationale", r)
	}
	for _, w := range pos.Recommendation.EligibilityWarnings {
		addRow(form, "warning", w)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "xlsx: save workbook")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
