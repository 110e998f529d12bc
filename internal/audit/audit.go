// Package audit records fire-and-forget events about draft activity.
// Failures here never affect the operation being audited.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Event is a single audit record.
type Event struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewEvent stamps a new event with an id and the current time.
func NewEvent(kind string, payload map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Sink accepts audit events.
type Sink interface {
	LogEvent(ctx context.Context, kind string, payload map[string]any) error
}

// Recorder persists events. The server store implements it.
type Recorder interface {
	RecordAudit(ctx context.Context, evt Event) error
}

// ZapSink writes events to a zap logger.
type ZapSink struct {
	log *zap.Logger
}

// NewZapSink creates a ZapSink. A nil logger means the global one.
func NewZapSink(log *zap.Logger) *ZapSink {
	if log == nil {
		log = zap.L()
	}
	return &ZapSink{log: log.Named("audit")}
}

func (s *ZapSink) LogEvent(_ context.Context, kind string, payload map[string]any) error {
	evt := NewEvent(kind, payload)
	s.log.Info(kind,
		zap.String("event_id", evt.ID),
		zap.Time("timestamp", evt.Timestamp),
		zap.Any("payload", evt.Payload),
	)
	return nil
}

// StoreSink writes events through a Recorder.
type StoreSink struct {
	rec Recorder
}

// NewStoreSink creates a StoreSink.
func NewStoreSink(rec Recorder) *StoreSink {
	return &StoreSink{rec: rec}
}

func (s *StoreSink) LogEvent(ctx context.Context, kind string, payload map[string]any) error {
	if s.rec == nil {
		return eris.New("audit: no recorder configured")
	}
	return eris.Wrap(s.rec.RecordAudit(ctx, NewEvent(kind, payload)), "audit: record")
}

// Multi fans an event out to several sinks and joins their errors.
type Multi []Sink

func (m Multi) LogEvent(ctx context.Context, kind string, payload map[string]any) error {
	var errs []error
	for _, s := range m {
		if err := s.LogEvent(ctx, kind, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ErrDropped is returned when the async buffer is full or closed.
var ErrDropped = eris.New("audit: event dropped")

type queued struct {
	kind    string
	payload map[string]any
}

// Async delivers events to the wrapped sink from a background goroutine so
// callers never wait on it.
type Async struct {
	next Sink
	ch   chan queued
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts delivery with a buffer of size events.
func NewAsync(next Sink, size int) *Async {
	if size <= 0 {
		size = 64
	}
	a := &Async{next: next, ch: make(chan queued, size)}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for q := range a.ch {
		if err := a.next.LogEvent(context.Background(), q.kind, q.payload); err != nil {
			zap.L().Warn("audit: delivery failed", zap.String("kind", q.kind), zap.Error(err))
		}
	}
}

// LogEvent enqueues the event without blocking.
func (a *Async) LogEvent(_ context.Context, kind string, payload map[string]any) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrDropped
	}
	select {
	case a.ch <- queued{kind: kind, payload: payload}:
		return nil
	default:
		return ErrDropped
	}
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "audit: drain")
	}
}
