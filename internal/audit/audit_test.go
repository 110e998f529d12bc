package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type memRecorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (m *memRecorder) RecordAudit(_ context.Context, evt Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, evt)
	return nil
}

func (m *memRecorder) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestZapSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewZapSink(zap.New(core))

	require.NoError(t, sink.LogEvent(context.Background(), "draft.saved", map[string]any{"draft_id": "d-1"}))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "draft.saved", entry.Message)
	assert.Equal(t, "audit", entry.LoggerName)
	assert.NotEmpty(t, entry.ContextMap()["event_id"])
}

func TestStoreSink(t *testing.T) {
	rec := &memRecorder{}
	sink := NewStoreSink(rec)

	require.NoError(t, sink.LogEvent(context.Background(), "draft.submitted", map[string]any{"draft_id": "d-1"}))
	require.Len(t, rec.events, 1)
	assert.Equal(t, "draft.submitted", rec.events[0].Kind)
	assert.NotEmpty(t, rec.events[0].ID)

	rec.err = errors.New("db down")
	assert.Error(t, sink.LogEvent(context.Background(), "x", nil))
	assert.Error(t, NewStoreSink(nil).LogEvent(context.Background(), "x", nil))
}

func TestMulti(t *testing.T) {
	ok := &memRecorder{}
	bad := &memRecorder{err: errors.New("nope")}
	m := Multi{NewStoreSink(ok), NewStoreSink(bad)}

	err := m.LogEvent(context.Background(), "k", nil)
	assert.Error(t, err)
	assert.Equal(t, 1, ok.len(), "healthy sink still receives the event")
}

func TestAsync_DeliversAndDrains(t *testing.T) {
	rec := &memRecorder{}
	a := NewAsync(NewStoreSink(rec), 8)

	for range 5 {
		require.NoError(t, a.LogEvent(context.Background(), "k", nil))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))
	assert.Equal(t, 5, rec.len())

	assert.ErrorIs(t, a.LogEvent(context.Background(), "late", nil), ErrDropped)
	require.NoError(t, a.Close(ctx), "close is idempotent")
}

type blockingSink struct{ release chan struct{} }

func (b blockingSink) LogEvent(context.Context, string, map[string]any) error {
	<-b.release
	return nil
}

func TestAsync_NeverBlocksCaller(t *testing.T) {
	release := make(chan struct{})
	a := NewAsync(blockingSink{release: release}, 1)

	var dropped int
	for range 10 {
		if err := a.LogEvent(context.Background(), "k", nil); errors.Is(err, ErrDropped) {
			dropped++
		}
	}
	assert.Positive(t, dropped)

	close(release)
	require.NoError(t, a.Close(context.Background()))
}
