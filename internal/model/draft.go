package model

import "time"

// DraftStatus is the lifecycle status of a filing draft.
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusSubmitted DraftStatus = "submitted"
)

// SyncState tracks where a draft is persisted.
type SyncState string

const (
	SyncNoDraft   SyncState = "no_draft"
	SyncLocal     SyncState = "local"
	SyncSynced    SyncState = "synced"
	SyncSubmitted SyncState = "submitted"
)

// RegimeSelection is the user's chosen regime and form for the draft.
type RegimeSelection struct {
	Regime Regime `json:"regime,omitempty"`
	FormID FormID `json:"form_id,omitempty"`
}

// IsZero reports whether nothing has been selected.
func (r RegimeSelection) IsZero() bool {
	return r.Regime == "" && r.FormID == ""
}

// DraftSnapshot is the unit of persistence. Every save replaces the whole
// document; once Status is submitted the snapshot is immutable.
type DraftSnapshot struct {
	DraftID            string                `json:"draft_id,omitempty"`
	OwnerID            string                `json:"owner_id"`
	AssessmentPeriod   string                `json:"assessment_period,omitempty"`
	ParentFilingID     string                `json:"parent_filing_id,omitempty"`
	RegimeSelection    RegimeSelection       `json:"regime_selection"`
	ReconciledLedger   Ledger                `json:"reconciled_ledger"`
	UserEnteredValues  map[string]any        `json:"user_entered_values"`
	FormRecommendation *FormRecommendation   `json:"form_recommendation,omitempty"`
	Computation        *TaxComputationResult `json:"computation,omitempty"`
	LastModifiedAt     time.Time             `json:"last_modified_at"`
	Status             DraftStatus           `json:"status"`
}

// Submitted reports whether the draft is closed to further edits.
func (d *DraftSnapshot) Submitted() bool {
	return d != nil && d.Status == DraftStatusSubmitted
}

// Clone returns a deep-enough copy for independent mutation of the draft's
// maps and slices. Nested values inside UserEnteredValues are shared.
func (d *DraftSnapshot) Clone() *DraftSnapshot {
	if d == nil {
		return nil
	}
	c := *d
	if d.ReconciledLedger != nil {
		c.ReconciledLedger = make(Ledger, len(d.ReconciledLedger))
		for i, item := range d.ReconciledLedger {
			item.Alternatives = append([]Alternative(nil), item.Alternatives...)
			c.ReconciledLedger[i] = item
		}
	}
	if d.UserEnteredValues != nil {
		c.UserEnteredValues = make(map[string]any, len(d.UserEnteredValues))
		for k, v := range d.UserEnteredValues {
			c.UserEnteredValues[k] = v
		}
	}
	if d.FormRecommendation != nil {
		rec := *d.FormRecommendation
		rec.Rationale = append([]string(nil), rec.Rationale...)
		rec.EligibilityWarnings = append([]string(nil), rec.EligibilityWarnings...)
		c.FormRecommendation = &rec
	}
	if d.Computation != nil {
		comp := *d.Computation
		c.Computation = &comp
	}
	return &c
}
