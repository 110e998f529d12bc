// Package draft persists filing drafts across sessions. The local cache
// gives an immediate, offline-tolerant read; the remote store is the source
// of truth whenever it is reachable.
package draft

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/filing-assistant/internal/cache"
	"github.com/sells-group/filing-assistant/internal/model"
)

var (
	// ErrDraftClosed is returned for any attempt to mutate a submitted draft.
	ErrDraftClosed = eris.New("draft: draft is closed")
	// ErrRemoteUnavailable is returned when an operation needs the remote
	// store and it could not be reached.
	ErrRemoteUnavailable = eris.New("draft: remote store unavailable")
	// ErrAbandoned is returned by Resolve after Abandon.
	ErrAbandoned = eris.New("draft: load abandoned")
)

// LocalCache is the durable local key-value store.
type LocalCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Remote is the backend draft store.
type Remote interface {
	Create(ctx context.Context, snap *model.DraftSnapshot) (string, error)
	Update(ctx context.Context, id string, snap *model.DraftSnapshot) error
	Get(ctx context.Context, id string) (*model.DraftSnapshot, error)
}

// AuditSink receives fire-and-forget events.
type AuditSink interface {
	LogEvent(ctx context.Context, kind string, payload map[string]any) error
}

// Option configures a Store.
type Option func(*Store)

// WithAudit sets the audit sink.
func WithAudit(sink AuditSink) Option {
	return func(s *Store) {
		s.audit = sink
	}
}

// WithClock overrides the time source used for LastModifiedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store manages the drafts of a single owner. Saves and submits are
// serialized; loads run concurrently with them.
type Store struct {
	owner  string
	local  LocalCache
	remote Remote
	audit  AuditSink
	now    func() time.Time

	writes *semaphore.Weighted

	mu     sync.Mutex
	states map[string]model.SyncState
}

// New creates a Store for owner.
func New(owner string, local LocalCache, remote Remote, opts ...Option) *Store {
	s := &Store{
		owner:  owner,
		local:  local,
		remote: remote,
		now:    time.Now,
		writes: semaphore.NewWeighted(1),
		states: make(map[string]model.SyncState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentKey is the well-known local key holding the owner's latest draft.
func CurrentKey(owner string) string {
	return "filing:" + owner + ":current"
}

// DraftKey is the local key for a specific draft.
func DraftKey(owner, draftID string) string {
	return "filing:" + owner + ":draft:" + draftID
}

// State reports the sync state of a draft as last observed by this Store.
func (s *Store) State(draftID string) model.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[draftID]; ok {
		return st
	}
	return model.SyncNoDraft
}

func (s *Store) setState(draftID string, st model.SyncState) {
	if draftID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[draftID] == model.SyncSubmitted {
		return
	}
	s.states[draftID] = st
}

func (s *Store) logEvent(ctx context.Context, kind string, payload map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogEvent(ctx, kind, payload); err != nil {
		zap.L().Warn("draft: audit event dropped", zap.String("kind", kind), zap.Error(err))
	}
}

func isQuota(err error) bool {
	return errors.Is(err, cache.ErrQuotaExceeded)
}
