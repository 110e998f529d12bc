package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/filing-assistant/internal/model"
	"github.com/sells-group/filing-assistant/internal/remote"
)

// --- Remote Mock ---

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) Create(ctx context.Context, snap *model.DraftSnapshot) (string, error) {
	args := m.Called(ctx, snap)
	return args.String(0), args.Error(1)
}

func (m *mockRemote) Update(ctx context.Context, id string, snap *model.DraftSnapshot) error {
	args := m.Called(ctx, id, snap)
	return args.Error(0)
}

func (m *mockRemote) Get(ctx context.Context, id string) (*model.DraftSnapshot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DraftSnapshot), args.Error(1)
}

// --- Audit Mock ---

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) LogEvent(ctx context.Context, kind string, payload map[string]any) error {
	args := m.Called(ctx, kind, payload)
	return args.Error(0)
}

// --- Fake remote store ---

// fakeRemote stores drafts as JSON, like the real backend, so reads return
// decoded copies.
type fakeRemote struct {
	mu      sync.Mutex
	docs    map[string][]byte
	nextID  int
	down    bool
	creates int
	updates int
	// gate, when set, blocks every call until it is closed or ctx ends.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{docs: make(map[string][]byte)}
}

func (f *fakeRemote) wait(ctx context.Context) error {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeRemote) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeRemote) put(snap *model.DraftSnapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[snap.DraftID] = raw
}

func (f *fakeRemote) stored(id string) *model.DraftSnapshot {
	f.mu.Lock()
	raw, ok := f.docs[id]
	f.mu.Unlock()
	if !ok {
		return nil
	}
	var snap model.DraftSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		panic(err)
	}
	return &snap
}

func (f *fakeRemote) Create(ctx context.Context, snap *model.DraftSnapshot) (string, error) {
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	f.mu.Lock()
	if f.down {
		f.mu.Unlock()
		return "", &remote.UnavailableError{Op: "create", StatusCode: 503}
	}
	f.creates++
	f.nextID++
	id := fmt.Sprintf("d-%d", f.nextID)
	f.mu.Unlock()

	c := snap.Clone()
	c.DraftID = id
	f.put(c)
	return id, nil
}

func (f *fakeRemote) Update(ctx context.Context, id string, snap *model.DraftSnapshot) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	if f.down {
		f.mu.Unlock()
		return &remote.UnavailableError{Op: "update", StatusCode: 503}
	}
	f.updates++
	f.mu.Unlock()

	if cur := f.stored(id); cur != nil && cur.Submitted() {
		return remote.ErrClosed
	}
	f.put(snap)
	return nil
}

func (f *fakeRemote) Get(ctx context.Context, id string) (*model.DraftSnapshot, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	down := f.down
	f.mu.Unlock()
	if down {
		return nil, &remote.UnavailableError{Op: "get", StatusCode: 503}
	}
	snap := f.stored(id)
	if snap == nil {
		return nil, remote.ErrNotFound
	}
	return snap, nil
}

// --- Failing cache ---

type brokenCache struct{ err error }

func (b brokenCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, b.err }
func (b brokenCache) Set(context.Context, string, []byte) error         { return b.err }
