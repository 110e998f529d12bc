// Package store is the server-side draft repository behind the remote draft
// API. It is the single source of truth for cross-device resume.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/filing-assistant/internal/audit"
	"github.com/sells-group/filing-assistant/internal/model"
)

var (
	// ErrNotFound is returned when a draft id is unknown.
	ErrNotFound = eris.New("store: draft not found")
	// ErrSubmitted is returned when updating a submitted draft.
	ErrSubmitted = eris.New("store: draft is submitted")
)

// DraftFilter specifies criteria for listing drafts.
type DraftFilter struct {
	OwnerID string            `json:"owner_id,omitempty"`
	Status  model.DraftStatus `json:"status,omitempty"`
	Limit   int               `json:"limit,omitempty"`
	Offset  int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for drafts.
type Store interface {
	// Drafts
	CreateDraft(ctx context.Context, snap *model.DraftSnapshot) (*model.DraftSnapshot, error)
	UpdateDraft(ctx context.Context, id string, snap *model.DraftSnapshot) error
	GetDraft(ctx context.Context, id string) (*model.DraftSnapshot, error)
	ListDrafts(ctx context.Context, filter DraftFilter) ([]model.DraftSnapshot, error)

	// Audit
	RecordAudit(ctx context.Context, evt audit.Event) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// prepareCreate copies snap and stamps the server-owned fields of a new draft.
func prepareCreate(snap *model.DraftSnapshot, id string, now time.Time) (*model.DraftSnapshot, error) {
	if snap == nil {
		return nil, model.NewValidationError("snapshot", "snapshot is required")
	}
	if snap.OwnerID == "" {
		return nil, model.NewValidationError("owner_id", "owner is required")
	}
	c := snap.Clone()
	c.DraftID = id
	if c.Status == "" {
		c.Status = model.DraftStatusDraft
	}
	if c.LastModifiedAt.IsZero() {
		c.LastModifiedAt = now
	}
	return c, nil
}

// prepareUpdate copies snap for storage under id.
func prepareUpdate(id string, snap *model.DraftSnapshot, now time.Time) (*model.DraftSnapshot, error) {
	if snap == nil {
		return nil, model.NewValidationError("snapshot", "snapshot is required")
	}
	c := snap.Clone()
	c.DraftID = id
	if c.Status == "" {
		c.Status = model.DraftStatusDraft
	}
	if c.LastModifiedAt.IsZero() {
		c.LastModifiedAt = now
	}
	return c, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
