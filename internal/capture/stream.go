// Package capture provides a recorder platform backed by a WAV file played
// back in real time, so the dictation pipeline runs without a microphone.
package capture

import (
	"sync"
	"time"
)

const subscriberBuffer = 256

// Stream publishes fixed-size PCM frames at the source sample rate until the
// samples run out or its track is stopped.
type Stream struct {
	rate     int
	interval time.Duration
	frame    int
	samples  []float32

	mu     sync.Mutex
	subs   map[int]chan []float32
	nextID int

	stop  chan struct{}
	done  chan struct{}
	track *Track
}

func newStream(samples []float32, rate int, frameDur time.Duration) *Stream {
	frame := int(float64(rate) * frameDur.Seconds())
	if frame < 1 {
		frame = 1
	}
	s := &Stream{
		rate:     rate,
		interval: frameDur,
		frame:    frame,
		samples:  samples,
		subs:     make(map[int]chan []float32),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.track = &Track{stream: s}
	return s
}

// SampleRate is the rate of every published frame.
func (s *Stream) SampleRate() int { return s.rate }

func (s *Stream) run() {
	defer s.finish()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for pos := 0; pos < len(s.samples); pos += s.frame {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
		end := min(pos+s.frame, len(s.samples))
		s.publish(s.samples[pos:end])
	}
}

func (s *Stream) publish(frame []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (s *Stream) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	close(s.done)
}

// subscribe returns a frame channel that is closed when the stream ends.
func (s *Stream) subscribe() (int, <-chan []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan []float32, subscriberBuffer)
	select {
	case <-s.done:
		close(ch)
		return -1, ch
	default:
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	return id, ch
}

func (s *Stream) unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

// Track is the single audio track of a Stream.
type Track struct {
	stream *Stream
	once   sync.Once
}

// Stop ends playback.
func (t *Track) Stop() {
	t.once.Do(func() { close(t.stream.stop) })
}

// Live reports whether frames are still being produced.
func (t *Track) Live() bool {
	select {
	case <-t.stream.done:
		return false
	case <-t.stream.stop:
		return false
	default:
		return true
	}
}
