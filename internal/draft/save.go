package draft

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filing-assistant/internal/model"
	"github.com/sells-group/filing-assistant/internal/remote"
)

// Outcome says where a save landed.
type Outcome string

const (
	// OutcomeSynced means the remote acknowledged and the local cache was written.
	OutcomeSynced Outcome = "synced"
	// OutcomeLocalOnly means the remote was unreachable but the edit is cached locally.
	OutcomeLocalOnly Outcome = "local_only"
	// OutcomeFailed means neither store accepted the write.
	OutcomeFailed Outcome = "failed"
)

// SaveOptions are caller-signalled flags for a save.
type SaveOptions struct {
	// ExitAfterSave tells the caller to navigate away afterwards. It has no
	// effect on the save itself.
	ExitAfterSave bool
}

// SaveResult describes a completed save.
type SaveResult struct {
	DraftID       string               `json:"draft_id,omitempty"`
	Outcome       Outcome              `json:"outcome"`
	ExitAfterSave bool                 `json:"exit_after_save"`
	Snapshot      *model.DraftSnapshot `json:"snapshot"`
}

// scheduleFields are the user-entered fields that hold itemised schedules on
// the full forms and must be scalars on a simplified form.
var scheduleFields = []string{"business_income", "capital_gains", "other_income"}

// SaveDraft persists snap. The remote store is written first so it can
// assign an id; the local cache is then written under both keys whatever the
// remote outcome, so no edit is lost. The caller's snapshot is not modified.
func (s *Store) SaveDraft(ctx context.Context, snap *model.DraftSnapshot, opts SaveOptions) (*SaveResult, error) {
	if snap == nil {
		return nil, model.NewValidationError("snapshot", "snapshot is required")
	}
	if snap.Submitted() {
		return nil, eris.Wrapf(ErrDraftClosed, "save %s", snap.DraftID)
	}
	if snap.OwnerID != "" && snap.OwnerID != s.owner {
		return nil, model.NewValidationError("owner_id", "draft belongs to %q, not %q", snap.OwnerID, s.owner)
	}

	if err := s.writes.Acquire(ctx, 1); err != nil {
		return nil, eris.Wrap(err, "draft: wait for previous save")
	}
	defer s.writes.Release(1)

	if s.closed(ctx, snap.DraftID) {
		return nil, eris.Wrapf(ErrDraftClosed, "save %s", snap.DraftID)
	}

	working := snap.Clone()
	working.OwnerID = s.owner
	working.Status = model.DraftStatusDraft
	working.LastModifiedAt = s.now().UTC()
	coerceSchedules(working)
	s.setState(working.DraftID, model.SyncLocal)

	remoteErr := s.pushRemote(ctx, working)
	switch {
	case errors.Is(remoteErr, remote.ErrClosed):
		s.markSubmitted(working.DraftID)
		return nil, eris.Wrapf(ErrDraftClosed, "save %s", working.DraftID)
	case ctx.Err() != nil:
		// Abandoned: nothing from this save is applied.
		return nil, eris.Wrap(ctx.Err(), "draft: save abandoned")
	}

	state := model.SyncSynced
	if remoteErr != nil {
		state = model.SyncLocal
		zap.L().Warn("draft: remote save failed, keeping local copy",
			zap.String("draft_id", working.DraftID), zap.Error(remoteErr))
	}
	localErr := s.writeLocal(ctx, working, state)
	if localErr != nil {
		zap.L().Error("draft: local save failed", zap.String("draft_id", working.DraftID), zap.Error(localErr))
	}

	res := &SaveResult{DraftID: working.DraftID, ExitAfterSave: opts.ExitAfterSave, Snapshot: working}
	switch {
	case remoteErr == nil:
		res.Outcome = OutcomeSynced
	case localErr == nil:
		res.Outcome = OutcomeLocalOnly
	default:
		res.Outcome = OutcomeFailed
	}
	s.setState(working.DraftID, state)

	s.logEvent(ctx, "draft.saved", map[string]any{
		"owner_id": s.owner,
		"draft_id": working.DraftID,
		"outcome":  string(res.Outcome),
	})

	if res.Outcome == OutcomeFailed {
		return res, eris.Wrapf(ErrRemoteUnavailable, "save %s: local write failed too: %v", working.DraftID, localErr)
	}
	return res, nil
}

// pushRemote creates or updates the draft, filling in the assigned id.
func (s *Store) pushRemote(ctx context.Context, snap *model.DraftSnapshot) error {
	if snap.DraftID == "" {
		id, err := s.remote.Create(ctx, snap)
		if err != nil {
			return err
		}
		snap.DraftID = id
		return nil
	}
	return s.remote.Update(ctx, snap.DraftID, snap)
}

// closed reports whether the draft is known to be submitted, either in this
// session or in the local cache.
func (s *Store) closed(ctx context.Context, draftID string) bool {
	if draftID == "" {
		return false
	}
	if s.State(draftID) == model.SyncSubmitted {
		return true
	}
	e := s.readKey(ctx, DraftKey(s.owner, draftID))
	return e != nil && e.Snapshot.Submitted()
}

func (s *Store) markSubmitted(draftID string) {
	if draftID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[draftID] = model.SyncSubmitted
}

// coerceSchedules replaces collection-valued schedule fields with a scalar
// zero when the selected form has no itemised schedules.
func coerceSchedules(snap *model.DraftSnapshot) {
	if !snap.RegimeSelection.FormID.Simplified() {
		return
	}
	for key, v := range snap.UserEnteredValues {
		if !isScheduleField(key) || !isCollection(v) {
			continue
		}
		zap.L().Debug("draft: coercing schedule field to zero",
			zap.String("field", key), zap.String("form", string(snap.RegimeSelection.FormID)))
		snap.UserEnteredValues[key] = 0
	}
}

func isScheduleField(key string) bool {
	for _, f := range scheduleFields {
		if key == f || strings.HasPrefix(key, f+".") {
			return true
		}
	}
	return false
}

func isCollection(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}
