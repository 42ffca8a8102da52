package recorder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTrack struct {
	stopped atomic.Bool
	ended   atomic.Bool
}

func (t *fakeTrack) Stop()      { t.stopped.Store(true) }
func (t *fakeTrack) Live() bool { return !t.stopped.Load() && !t.ended.Load() }

type fakeStream struct {
	tracks []*fakeTrack
}

func newFakeStream() *fakeStream {
	return &fakeStream{tracks: []*fakeTrack{{}, {}}}
}

func (s *fakeStream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *fakeStream) openTracks() int {
	n := 0
	for _, t := range s.tracks {
		if !t.stopped.Load() {
			n++
		}
	}
	return n
}

type fakeDevices struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
	calls   []Constraints
}

func (d *fakeDevices) GetUserMedia(_ context.Context, c Constraints) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
	if d.err != nil {
		return nil, d.err
	}
	s := newFakeStream()
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDevices) all() []*fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeStream(nil), d.streams...)
}

// fakeEncoder emits its chunks when stopped, then reports stop.
type fakeEncoder struct {
	mu        sync.Mutex
	seq       int
	chunks    [][]byte
	recording bool
	onData    func([]byte)
	onStop    func()
}

func (e *fakeEncoder) Start(onData func([]byte), onStop func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onData, e.onStop, e.recording = onData, onStop, true
	return nil
}

func (e *fakeEncoder) Stop() {
	e.mu.Lock()
	if !e.recording {
		e.mu.Unlock()
		return
	}
	e.recording = false
	chunks, onData, onStop := e.chunks, e.onData, e.onStop
	e.mu.Unlock()

	for _, c := range chunks {
		onData(c)
	}
	onStop()
}

func (e *fakeEncoder) Recording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recording
}

type fakePlatform struct {
	mu        sync.Mutex
	supported map[string]bool
	// chunks returns what the nth encoder (1-based) emits.
	chunks   func(seq int) [][]byte
	encoders []*fakeEncoder
	// failFrom makes the nth encoder (1-based) and every later one fail.
	failFrom int
}

var errEncoderExhausted = errors.New("encoder exhausted")

func (p *fakePlatform) IsTypeSupported(t string) bool { return p.supported[t] }

func (p *fakePlatform) NewEncoder(_ Stream, _ string) (Encoder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	seq := len(p.encoders) + 1
	if p.failFrom > 0 && seq >= p.failFrom {
		return nil, errEncoderExhausted
	}
	e := &fakeEncoder{seq: seq, chunks: p.chunks(seq)}
	p.encoders = append(p.encoders, e)
	return e, nil
}

func (p *fakePlatform) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.encoders)
}

func webmPlatform(chunks func(seq int) [][]byte) *fakePlatform {
	return &fakePlatform{supported: map[string]bool{"audio/webm": true}, chunks: chunks}
}

// segmentBytes fills a chunk with the segment number so the relay can tell
// segments apart.
func segmentBytes(seq, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(seq)
	}
	return b
}

type fakeRelay struct {
	mu      sync.Mutex
	files   []File
	respond func(seq int) (string, error)
}

func (r *fakeRelay) Transcribe(_ context.Context, f File) (string, error) {
	r.mu.Lock()
	r.files = append(r.files, f)
	r.mu.Unlock()
	if r.respond == nil {
		return "", nil
	}
	return r.respond(int(f.Data[0]))
}

func (r *fakeRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func testOptions(d *fakeDevices, p *fakePlatform, r *fakeRelay) Options {
	return Options{
		Devices:         d,
		Platform:        p,
		Relay:           r,
		SegmentDuration: 15 * time.Millisecond,
		SegmentGap:      2 * time.Millisecond,
	}
}
