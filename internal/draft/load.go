package draft

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filing-assistant/internal/model"
	"github.com/sells-group/filing-assistant/internal/remote"
)

// LoadResult is the outcome of a resolved load.
type LoadResult struct {
	// Snapshot is nil when no draft exists anywhere.
	Snapshot *model.DraftSnapshot `json:"snapshot"`
	State    model.SyncState      `json:"state"`
	// Confirmed is true when the remote store answered.
	Confirmed bool `json:"confirmed"`
}

// Pending is a load whose remote half may still be in flight.
type Pending struct {
	store   *Store
	draftID string
	local   *model.DraftSnapshot
	// seen is the local entry as read by Load.
	seen *entry

	cancel context.CancelFunc
	done   chan struct{}
	remote *model.DraftSnapshot
	err    error

	mu        sync.Mutex
	abandoned bool
	resolved  *LoadResult
}

// Load reads the local cache immediately and, when a draft id is known,
// starts fetching the remote copy in the background. An empty draftID means
// the owner's current draft.
func (s *Store) Load(ctx context.Context, draftID string) (*Pending, error) {
	local := s.readLocal(ctx, draftID)

	p := &Pending{store: s, draftID: draftID, seen: local, done: make(chan struct{})}
	if local != nil {
		p.local = local.Snapshot
		if p.draftID == "" {
			p.draftID = local.Snapshot.DraftID
		}
		s.setState(p.draftID, local.State)
	}

	if p.draftID == "" {
		close(p.done)
		p.cancel = func() {}
		return p, nil
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go func() {
		defer close(p.done)
		p.remote, p.err = s.remote.Get(fetchCtx, p.draftID)
	}()
	return p, nil
}

// LoadDraft loads and waits for the remote overlay. It returns a nil
// snapshot when no draft exists.
func (s *Store) LoadDraft(ctx context.Context, draftID string) (*LoadResult, error) {
	p, err := s.Load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	return p.Resolve(ctx)
}

// Local returns the locally cached snapshot, or nil. It never waits.
func (p *Pending) Local() *model.DraftSnapshot {
	return p.local.Clone()
}

// DraftID is the id being loaded, if known.
func (p *Pending) DraftID() string {
	return p.draftID
}

// Abandon cancels the remote fetch. Its result is never applied.
func (p *Pending) Abandon() {
	p.mu.Lock()
	p.abandoned = true
	p.mu.Unlock()
	p.cancel()
}

// Resolve waits for the remote fetch and merges it over the local copy.
// A failed fetch is not an error: the local snapshot is returned unconfirmed.
// If ctx ends first the load is abandoned.
func (p *Pending) Resolve(ctx context.Context) (*LoadResult, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		p.Abandon()
		return nil, eris.Wrap(ErrAbandoned, ctx.Err().Error())
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.abandoned {
		return nil, ErrAbandoned
	}
	if p.resolved == nil {
		res, err := p.store.apply(ctx, p.draftID, p.seen, p.remote, p.err)
		if err != nil {
			return nil, err
		}
		p.resolved = res
	}
	res := *p.resolved
	res.Snapshot = res.Snapshot.Clone()
	return &res, nil
}

// apply merges the fetched remote copy over the local entry seen by Load
// and caches the result. The cache write is serialized with saves; if a save
// replaced the local entry after Load, that entry is newer than both inputs
// and is returned untouched.
func (s *Store) apply(ctx context.Context, draftID string, seen *entry, rem *model.DraftSnapshot, fetchErr error) (*LoadResult, error) {
	var local *model.DraftSnapshot
	if seen != nil {
		local = seen.Snapshot
	}

	if draftID != "" && fetchErr == nil && rem != nil {
		if err := s.writes.Acquire(ctx, 1); err != nil {
			return nil, eris.Wrap(ErrAbandoned, err.Error())
		}
		defer s.writes.Release(1)

		if cur := s.readLocal(ctx, draftID); entryChanged(seen, cur) {
			zap.L().Debug("draft: local copy changed during load, keeping it",
				zap.String("draft_id", draftID))
			if rem.Submitted() {
				s.markSubmitted(draftID)
			}
			return &LoadResult{
				Snapshot:  cur.Snapshot,
				State:     s.State(draftID),
				Confirmed: cur.State == model.SyncSynced,
			}, nil
		}

		merged := Merge(local, rem)
		state := s.resolvedState(merged, rem)
		if err := s.writeLocal(ctx, merged, state); err != nil {
			zap.L().Warn("draft: caching merged draft failed", zap.String("draft_id", draftID), zap.Error(err))
		}
		if state == model.SyncSubmitted {
			s.markSubmitted(draftID)
		} else {
			s.setState(draftID, state)
		}
		s.logEvent(ctx, "draft.loaded", map[string]any{"owner_id": s.owner, "draft_id": draftID, "state": string(state)})
		return &LoadResult{Snapshot: merged, State: state, Confirmed: true}, nil
	}

	if fetchErr != nil && !errors.Is(fetchErr, remote.ErrNotFound) {
		zap.L().Warn("draft: remote fetch failed, using local copy", zap.String("draft_id", draftID), zap.Error(fetchErr))
	}
	if local == nil {
		return &LoadResult{State: model.SyncNoDraft}, nil
	}
	state := model.SyncLocal
	if local.Submitted() {
		state = model.SyncSubmitted
		s.markSubmitted(draftID)
	} else {
		s.setState(draftID, state)
	}
	return &LoadResult{Snapshot: local, State: state}, nil
}

// entryChanged reports whether cur is a different write than seen.
func entryChanged(seen, cur *entry) bool {
	switch {
	case cur == nil:
		return false
	case seen == nil:
		return true
	}
	return seen.Fingerprint != cur.Fingerprint ||
		seen.State != cur.State ||
		!seen.CachedAt.Equal(cur.CachedAt)
}

func (s *Store) resolvedState(merged, rem *model.DraftSnapshot) model.SyncState {
	if merged.Submitted() {
		return model.SyncSubmitted
	}
	mfp, err := Fingerprint(merged)
	if err != nil {
		return model.SyncLocal
	}
	rfp, err := Fingerprint(rem)
	if err != nil || mfp != rfp {
		return model.SyncLocal
	}
	return model.SyncSynced
}

// Merge overlays the remote snapshot on the local one. Remote values win
// per field for user-entered values and per key for ledger items; keys only
// present locally are kept. Remote metadata fills gaps in the local copy,
// and a remote submitted status is final.
func Merge(local, rem *model.DraftSnapshot) *model.DraftSnapshot {
	if local == nil {
		return rem.Clone()
	}
	if rem == nil {
		return local.Clone()
	}
	m := local.Clone()
	if rem.DraftID != "" {
		m.DraftID = rem.DraftID
	}

	if len(rem.UserEnteredValues) > 0 && m.UserEnteredValues == nil {
		m.UserEnteredValues = make(map[string]any, len(rem.UserEnteredValues))
	}
	for k, v := range rem.UserEnteredValues {
		m.UserEnteredValues[k] = v
	}

	for _, item := range rem.ReconciledLedger {
		item.Alternatives = append([]model.Alternative(nil), item.Alternatives...)
		if existing := m.ReconciledLedger.Find(item.Key); existing != nil {
			*existing = item
			continue
		}
		m.ReconciledLedger = append(m.ReconciledLedger, item)
	}
	sort.SliceStable(m.ReconciledLedger, func(i, j int) bool {
		return m.ReconciledLedger[i].Key.Less(m.ReconciledLedger[j].Key)
	})

	if m.OwnerID == "" {
		m.OwnerID = rem.OwnerID
	}
	if m.AssessmentPeriod == "" {
		m.AssessmentPeriod = rem.AssessmentPeriod
	}
	if m.ParentFilingID == "" {
		m.ParentFilingID = rem.ParentFilingID
	}
	if m.RegimeSelection.Regime == "" {
		m.RegimeSelection.Regime = rem.RegimeSelection.Regime
	}
	if m.RegimeSelection.FormID == "" {
		m.RegimeSelection.FormID = rem.RegimeSelection.FormID
	}
	if m.FormRecommendation == nil && rem.FormRecommendation != nil {
		rec := *rem.FormRecommendation
		m.FormRecommendation = &rec
	}
	if m.Computation == nil && rem.Computation != nil {
		comp := *rem.Computation
		m.Computation = &comp
	}
	if rem.Submitted() {
		m.Status = model.DraftStatusSubmitted
	}
	if m.Status == "" {
		m.Status = rem.Status
	}
	if rem.LastModifiedAt.After(m.LastModifiedAt) {
		m.LastModifiedAt = rem.LastModifiedAt
	}
	return m
}
