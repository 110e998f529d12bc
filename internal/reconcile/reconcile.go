// Package reconcile merges facts reported by several sources into one
// provenance-ranked ledger with an explicit conflict record.
package reconcile

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/filing-assistant/internal/model"
)

// Reconcile groups facts by key and selects one value per key. The highest
// trust provenance wins unless the user explicitly re-entered the value.
// Output order and content depend only on the set of facts, never on the
// order they arrived in.
func Reconcile(facts []model.Fact) model.Ledger {
	if len(facts) == 0 {
		return model.Ledger{}
	}

	sorted := make([]model.Fact, len(facts))
	copy(sorted, facts)
	for i := range sorted {
		sorted[i].Key = model.NewFactKey(sorted[i].Key.Category, sorted[i].Key.Subcategory)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return candidateLess(sorted[i], sorted[j])
	})

	groups := make(map[model.FactKey][]model.Fact)
	var keys []model.FactKey
	for _, f := range sorted {
		if _, ok := groups[f.Key]; !ok {
			keys = append(keys, f.Key)
		}
		groups[f.Key] = append(groups[f.Key], f)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	ledger := make(model.Ledger, 0, len(keys))
	for _, key := range keys {
		ledger = append(ledger, reconcileGroup(key, groups[key]))
	}
	return ledger
}

// reconcileGroup expects candidates already in trust order. A user override
// only matters when the candidates disagree.
func reconcileGroup(key model.FactKey, candidates []model.Fact) model.ReconciledItem {
	item := model.ReconciledItem{
		Key:                key,
		SelectedAmount:     candidates[0].Amount,
		SelectedProvenance: candidates[0].Provenance,
	}

	for _, c := range candidates[1:] {
		if !c.Amount.Equal(candidates[0].Amount) {
			item.Conflicting = true
			break
		}
	}
	if !item.Conflicting {
		return item
	}

	if o, ok := latestOverride(candidates); ok {
		item.SelectedAmount = o.Amount
		item.SelectedProvenance = o.Provenance
	}

	item.Alternatives = make([]model.Alternative, 0, len(candidates))
	for _, c := range candidates {
		item.Alternatives = append(item.Alternatives, model.Alternative{
			Amount:     c.Amount,
			Provenance: c.Provenance,
		})
	}

	zap.L().Debug("reconcile: sources disagree",
		zap.String("key", key.String()),
		zap.String("selected_amount", item.SelectedAmount.String()),
		zap.String("selected_provenance", string(item.SelectedProvenance)),
		zap.Int("candidates", len(candidates)),
	)
	return item
}

func latestOverride(candidates []model.Fact) (model.Fact, bool) {
	var best model.Fact
	found := false
	for _, c := range candidates {
		if !c.Overrides() {
			continue
		}
		if !found || c.RecordedAt.After(best.RecordedAt) ||
			(c.RecordedAt.Equal(best.RecordedAt) && c.Amount.GreaterThan(best.Amount)) {
			best = c
			found = true
		}
	}
	return best, found
}

// candidateLess orders by trust descending, then amount descending, then by
// amount text so the order is total.
func candidateLess(a, b model.Fact) bool {
	if ta, tb := a.Provenance.Trust(), b.Provenance.Trust(); ta != tb {
		return ta > tb
	}
	if cmp := a.Amount.Cmp(b.Amount); cmp != 0 {
		return cmp > 0
	}
	return a.Amount.String() < b.Amount.String()
}

// Conflicts returns the items that need manual resolution.
func Conflicts(ledger model.Ledger) model.Ledger {
	var out model.Ledger
	for _, item := range ledger {
		if item.Conflicting {
			out = append(out, item)
		}
	}
	return out
}
