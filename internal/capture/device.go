package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hubenschmidt/voice-journal/internal/audio"
	"github.com/hubenschmidt/voice-journal/internal/recorder"
)

// DefaultFrame is the playback granularity.
const DefaultFrame = 20 * time.Millisecond

// FileDevice opens WAV-file playback streams.
type FileDevice struct {
	Path  string
	Frame time.Duration
}

// GetUserMedia decodes the file and starts real-time playback. Processing
// constraints are accepted but not applied.
func (d *FileDevice) GetUserMedia(ctx context.Context, c recorder.Constraints) (recorder.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(d.Path)
	if errors.Is(err, os.ErrPermission) {
		return nil, fmt.Errorf("%w: %v", recorder.ErrPermissionDenied, err)
	}
	if err != nil {
		return nil, fmt.Errorf("open capture source: %w", err)
	}
	defer f.Close()

	samples, rate, err := audio.ReadWAV(f)
	if err != nil {
		return nil, fmt.Errorf("read capture source: %w", err)
	}

	frame := d.Frame
	if frame <= 0 {
		frame = DefaultFrame
	}
	slog.Debug("capture stream opened", "path", d.Path, "rate", rate, "samples", len(samples),
		"echo_cancellation", c.EchoCancellation, "noise_suppression", c.NoiseSuppression)

	s := newStream(samples, rate, frame)
	go s.run()
	return &mediaStream{s}, nil
}

type mediaStream struct {
	*Stream
}

func (m *mediaStream) Tracks() []recorder.Track {
	return []recorder.Track{m.track}
}

// WAVPlatform encodes each segment as a standalone 16-bit WAV container.
type WAVPlatform struct{}

func (WAVPlatform) IsTypeSupported(mimeType string) bool {
	return mimeType == "audio/wav"
}

func (WAVPlatform) NewEncoder(s recorder.Stream, mimeType string) (recorder.Encoder, error) {
	ms, ok := s.(*mediaStream)
	if !ok {
		return nil, fmt.Errorf("wav encoder: unsupported stream %T", s)
	}
	if mimeType != "audio/wav" {
		return nil, fmt.Errorf("wav encoder: %w: %s", recorder.ErrUnsupported, mimeType)
	}
	return &wavEncoder{stream: ms.Stream}, nil
}

type wavEncoder struct {
	stream *Stream

	mu        sync.Mutex
	recording bool
	stop      chan struct{}
}

func (e *wavEncoder) Start(onData func([]byte), onStop func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recording || e.stop != nil {
		return errors.New("wav encoder: already started")
	}
	id, frames := e.stream.subscribe()
	e.recording = true
	e.stop = make(chan struct{})
	go e.run(id, frames, e.stop, onData, onStop)
	return nil
}

func (e *wavEncoder) run(id int, frames <-chan []float32, stop <-chan struct{}, onData func([]byte), onStop func()) {
	var buf []float32
loop:
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				break loop
			}
			buf = append(buf, f...)
		case <-stop:
			e.stream.unsubscribe(id)
			for f := range frames {
				buf = append(buf, f...)
			}
			break loop
		}
	}

	e.mu.Lock()
	e.recording = false
	e.mu.Unlock()

	if len(buf) > 0 {
		onData(audio.SamplesToWAV(buf, e.stream.rate))
	}
	onStop()
}

func (e *wavEncoder) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.recording {
		return
	}
	e.recording = false
	close(e.stop)
}

func (e *wavEncoder) Recording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recording
}
