package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sells-group/filing-assistant/internal/model"
	"github.com/sells-group/filing-assistant/internal/store"
)

func (s *server) createDraft(w http.ResponseWriter, r *http.Request) {
	var snap model.DraftSnapshot
	if !decode(w, r, &snap) {
		return
	}
	if snap.Submitted() {
		writeError(w, http.StatusConflict, "draft is submitted")
		return
	}
	created, err := s.Store.CreateDraft(r.Context(), &snap)
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.logEvent(r, "remote.draft_created", map[string]any{"draft_id": created.DraftID, "owner_id": created.OwnerID})
	writeJSON(w, http.StatusCreated, map[string]string{"draft_id": created.DraftID})
}

func (s *server) updateDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var snap model.DraftSnapshot
	if !decode(w, r, &snap) {
		return
	}
	if err := s.Store.UpdateDraft(r.Context(), id, &snap); err != nil {
		writeFailure(w, err)
		return
	}
	s.logEvent(r, "remote.draft_updated", map[string]any{"draft_id": id, "status": string(snap.Status)})
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) getDraft(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Store.GetDraft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *server) listDrafts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.DraftFilter{
		OwnerID: q.Get("owner_id"),
		Status:  model.DraftStatus(q.Get("status")),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	drafts, err := s.Store.ListDrafts(r.Context(), filter)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if drafts == nil {
		drafts = []model.DraftSnapshot{}
	}
	writeJSON(w, http.StatusOK, drafts)
}

// PositionRequest is the body of POST /v1/positions.
type PositionRequest struct {
	Facts     []model.Fact         `json:"facts"`
	Profile   model.Profile        `json:"profile"`
	Ancillary model.AncillaryFacts `json:"ancillary"`
}

func (s *server) aggregate(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if !decode(w, r, &req) {
		return
	}
	pos, err := s.Engine.Aggregate(req.Facts, req.Profile, req.Ancillary)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// FormRequest is the body of POST /v1/forms/recommend.
type FormRequest struct {
	Profile          model.Profile        `json:"profile"`
	IncomeCategories []model.IncomeSource `json:"income_categories"`
	Ancillary        model.AncillaryFacts `json:"ancillary"`
}

func (s *server) recommendForm(w http.ResponseWriter, r *http.Request) {
	var req FormRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := s.Determiner.Determine(req.Profile, model.NewIncomeSources(req.IncomeCategories...), req.Ancillary)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CompareRequest is the body of POST /v1/tax/compare.
type CompareRequest struct {
	GrossIncome       decimal.Decimal `json:"gross_income"`
	TotalDeductions   decimal.Decimal `json:"total_deductions"`
	AmountAlreadyPaid decimal.Decimal `json:"amount_already_paid"`
}

func (s *server) compareRegimes(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.Calculator.Compute(req.GrossIncome, req.TotalDeductions, req.AmountAlreadyPaid)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
