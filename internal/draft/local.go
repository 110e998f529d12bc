package draft

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filing-assistant/internal/model"
)

// entry is the value stored under both local keys.
type entry struct {
	Snapshot    *model.DraftSnapshot `json:"snapshot"`
	State       model.SyncState      `json:"state"`
	Fingerprint string               `json:"fingerprint"`
	CachedAt    time.Time            `json:"cached_at"`
}

// Fingerprint returns a digest of the snapshot's canonical JSON form. Two
// snapshots with equal fingerprints have identical content.
func Fingerprint(snap *model.DraftSnapshot) (string, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return "", eris.Wrap(err, "draft: marshal snapshot")
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", eris.Wrap(err, "draft: canonicalize snapshot")
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// readLocal returns the best local entry for draftID: the draft-keyed entry
// when one exists, else the current entry if it is the same draft or no id
// was asked for. Unreadable entries are treated as absent.
func (s *Store) readLocal(ctx context.Context, draftID string) *entry {
	if draftID != "" {
		if e := s.readKey(ctx, DraftKey(s.owner, draftID)); e != nil {
			return e
		}
	}
	e := s.readKey(ctx, CurrentKey(s.owner))
	if e == nil {
		return nil
	}
	if draftID != "" && e.Snapshot.DraftID != "" && e.Snapshot.DraftID != draftID {
		return nil
	}
	return e
}

func (s *Store) readKey(ctx context.Context, key string) *entry {
	raw, ok, err := s.local.Get(ctx, key)
	if err != nil {
		zap.L().Warn("draft: local read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil || e.Snapshot == nil {
		zap.L().Warn("draft: discarding unreadable local entry", zap.String("key", key), zap.Error(err))
		return nil
	}
	return &e
}

// writeLocal stores snap under its draft key (when it has an id) and under
// the current key. A quota rejection is logged and swallowed; any other
// failure is returned.
func (s *Store) writeLocal(ctx context.Context, snap *model.DraftSnapshot, state model.SyncState) error {
	fp, err := Fingerprint(snap)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(entry{Snapshot: snap, State: state, Fingerprint: fp, CachedAt: s.now().UTC()})
	if err != nil {
		return eris.Wrap(err, "draft: marshal local entry")
	}

	keys := []string{CurrentKey(s.owner)}
	if snap.DraftID != "" {
		keys = append([]string{DraftKey(s.owner, snap.DraftID)}, keys...)
	}
	for _, key := range keys {
		if err := s.local.Set(ctx, key, raw); err != nil {
			if isQuota(err) {
				zap.L().Warn("draft: local cache full, write skipped", zap.String("key", key))
				continue
			}
			return eris.Wrapf(err, "draft: local write %s", key)
		}
	}
	return nil
}
