package model

import "github.com/shopspring/decimal"

// Alternative is one candidate value considered during reconciliation.
type Alternative struct {
	Amount     decimal.Decimal `json:"amount"`
	Provenance Provenance      `json:"provenance"`
}

// ReconciledItem is the merged view of every fact sharing a key.
// Alternatives is populated only when Conflicting is true.
type ReconciledItem struct {
	Key                FactKey         `json:"key"`
	SelectedAmount     decimal.Decimal `json:"selected_amount"`
	SelectedProvenance Provenance      `json:"selected_provenance"`
	Conflicting        bool            `json:"conflicting"`
	Alternatives       []Alternative   `json:"alternatives,omitempty"`
}

// Ledger is an ordered sequence of reconciled items.
type Ledger []ReconciledItem

// Total sums the selected amounts of every item in the given category.
func (l Ledger) Total(c Category) decimal.Decimal {
	total := decimal.Zero
	for _, item := range l {
		if item.Key.Category == c {
			total = total.Add(item.SelectedAmount)
		}
	}
	return total
}

// Find returns the item with the given key, or nil.
func (l Ledger) Find(key FactKey) *ReconciledItem {
	for i := range l {
		if l[i].Key == key {
			return &l[i]
		}
	}
	return nil
}
