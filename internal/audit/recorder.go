// Package audit writes relay audit records off the request path.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hubenschmidt/voice-journal/internal/metrics"
	"github.com/hubenschmidt/voice-journal/internal/store"
)

const maxErrorLen = 500

// Sink persists audit records.
type Sink interface {
	InsertTranscription(ctx context.Context, t store.Transcription) error
}

// Recorder queues audit records on a buffered channel and writes them from a
// single goroutine. All methods are nil-safe, and Record after Close drops.
type Recorder struct {
	sink Sink
	ch   chan store.Transcription
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts the writer goroutine. Must call Close when done.
func NewRecorder(sink Sink, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 64
	}
	r := &Recorder{
		sink: sink,
		ch:   make(chan store.Transcription, buffer),
		done: make(chan struct{}),
	}
	go r.drain()
	return r
}

func (r *Recorder) drain() {
	defer close(r.done)
	for t := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.sink.InsertTranscription(ctx, t); err != nil {
			slog.Warn("audit write failed", "id", t.ID, "error", err)
		}
		cancel()
	}
}

// Record queues one record. The ID and CreatedAt are filled in when empty.
// A full queue drops the record rather than blocking the caller.
func (r *Recorder) Record(t store.Transcription) {
	if r == nil {
		return
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if len(t.Error) > maxErrorLen {
		t.Error = t.Error[:maxErrorLen]
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		metrics.AuditDropped.Inc()
		slog.Warn("audit recorder closed, dropping record", "id", t.ID)
		return
	}
	select {
	case r.ch <- t:
	default:
		metrics.AuditDropped.Inc()
		slog.Warn("audit queue full, dropping record", "id", t.ID)
	}
}

// Close drains pending writes and stops the writer goroutine.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()
	<-r.done
}
