package draft

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filing-assistant/internal/model"
	"github.com/sells-group/filing-assistant/internal/remote"
)

// Submit closes a draft. The transition is only recorded once the remote
// store acknowledges it; a submission is never local-only.
func (s *Store) Submit(ctx context.Context, draftID string) (*model.DraftSnapshot, error) {
	if draftID == "" {
		return nil, model.NewValidationError("draft_id", "draft id is required to submit")
	}
	if err := s.writes.Acquire(ctx, 1); err != nil {
		return nil, eris.Wrap(err, "draft: wait for previous save")
	}
	defer s.writes.Release(1)

	if s.closed(ctx, draftID) {
		return nil, eris.Wrapf(ErrDraftClosed, "submit %s", draftID)
	}

	snap, err := s.remote.Get(ctx, draftID)
	switch {
	case errors.Is(err, remote.ErrNotFound):
		return nil, model.NewValidationError("draft_id", "draft %s does not exist", draftID)
	case err != nil:
		return nil, eris.Wrapf(ErrRemoteUnavailable, "submit %s: %v", draftID, err)
	case snap.Submitted():
		s.markSubmitted(draftID)
		return nil, eris.Wrapf(ErrDraftClosed, "submit %s", draftID)
	}

	snap.DraftID = draftID
	snap.Status = model.DraftStatusSubmitted
	snap.LastModifiedAt = s.now().UTC()
	if err := s.remote.Update(ctx, draftID, snap); err != nil {
		if errors.Is(err, remote.ErrClosed) {
			s.markSubmitted(draftID)
			return nil, eris.Wrapf(ErrDraftClosed, "submit %s", draftID)
		}
		return nil, eris.Wrapf(ErrRemoteUnavailable, "submit %s: %v", draftID, err)
	}

	s.markSubmitted(draftID)
	if err := s.writeLocal(ctx, snap, model.SyncSubmitted); err != nil {
		zap.L().Warn("draft: caching submitted draft failed", zap.String("draft_id", draftID), zap.Error(err))
	}
	s.logEvent(ctx, "draft.submitted", map[string]any{"owner_id": s.owner, "draft_id": draftID})
	return snap.Clone(), nil
}
