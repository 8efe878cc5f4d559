package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jdziat/funcgate/pkg/core"
)

// CallSource reports finished calls to hooks, such as a gateway.
type CallSource interface {
	OnCallFinish(fn func(context.Context, core.Event))
}

// DefaultQueueSize is the number of records a Recorder buffers before
// finishing calls wait for the journal.
const DefaultQueueSize = 1024

// Recorder writes a journal record for every finished call.
type Recorder struct {
	journal core.Journal
	logger  *slog.Logger
	queue   chan *core.CallRecord

	mu     sync.RWMutex
	closed bool
}

// NewRecorder creates a Recorder writing to j.
func NewRecorder(j core.Journal, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		journal: j,
		logger:  logger,
		queue:   make(chan *core.CallRecord, DefaultQueueSize),
	}
}

// Start hooks the Recorder into src and writes records in the background.
// Once ctx is cancelled the queue is closed, records still queued are
// written, and the returned channel is closed. Start must be called once.
func (r *Recorder) Start(ctx context.Context, src CallSource) <-chan struct{} {
	src.OnCallFinish(r.Observe)

	done := make(chan struct{})
	writeCtx := context.WithoutCancel(ctx)

	go func() {
		defer close(done)
		for rec := range r.queue {
			r.write(writeCtx, rec)
		}
	}()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	}()

	return done
}

// Observe queues the record for a finished-call event. While the queue is
// full it blocks, so calls wait for the journal instead of going
// unrecorded. It has the signature of a gateway OnCallFinish hook.
func (r *Recorder) Observe(_ context.Context, e core.Event) {
	rec := RecordFor(e)
	if rec == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("journal closed, call not recorded", "request_id", rec.RequestID, "function", rec.Function)
		return
	}
	r.queue <- rec
}

func (r *Recorder) write(ctx context.Context, rec *core.CallRecord) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.journal.Record(ctx, rec); err != nil {
		r.logger.Error("failed to journal call", "request_id", rec.RequestID, "function", rec.Function, "error", err)
	}
}

// RecordFor converts a finished-call event into a journal record. Other
// events return nil.
func RecordFor(e core.Event) *core.CallRecord {
	switch ev := e.(type) {
	case *core.CallCompleted:
		return &core.CallRecord{
			RequestID:      ev.Call.RequestID,
			Function:       ev.Call.Function,
			Convention:     ev.Convention.String(),
			Fallback:       ev.Fallback,
			Outcome:        core.OutcomeOK,
			DurationMicros: ev.Duration.Microseconds(),
			CreatedAt:      ev.Timestamp,
		}
	case *core.CallFailed:
		return &core.CallRecord{
			RequestID:      ev.Call.RequestID,
			Function:       ev.Call.Function,
			Convention:     ev.Convention.String(),
			Fallback:       ev.Fallback,
			Outcome:        ev.Outcome,
			Error:          ev.Error,
			DurationMicros: ev.Duration.Microseconds(),
			CreatedAt:      ev.Timestamp,
		}
	default:
		return nil
	}
}
