// Package recorder turns a continuous capture stream into fixed-length,
// independently decodable segments, relays each one for transcription and
// appends the returned text to a document.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hubenschmidt/voice-journal/internal/metrics"
)

const (
	DefaultSegmentDuration = 5 * time.Second
	DefaultSegmentGap      = 100 * time.Millisecond
	DefaultMinSegmentSize  = 1024
)

const (
	msgPermissionDenied = "Microphone permission denied. Please allow microphone access and try again."
	msgUnsupported      = "Audio recording not supported on this platform"
	msgRelayFailed      = "Failed to transcribe audio"
	suppressedRelayErr  = "Invalid file format"
)

// State is the capture lifecycle position.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateRecording
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// Status is the observable controller state.
type Status struct {
	State             State
	Recording         bool
	Processing        bool
	Error             string
	PermissionGranted bool
}

// Options configures a Controller. Devices, Platform and Relay are required.
type Options struct {
	Devices  MediaDevices
	Platform Platform
	Relay    Relay
	// Transcript receives segment text. Defaults to a new Document.
	Transcript Transcript

	SegmentDuration time.Duration
	SegmentGap      time.Duration
	MinSegmentSize  int

	Logger   *slog.Logger
	OnStatus func(Status)
}

// CaptureSession is one continuous recording span. It owns the stream; the
// container type is negotiated once and reused for every segment.
type CaptureSession struct {
	stream   Stream
	mimeType string

	// guarded by Controller.mu
	active  bool
	seq     int
	encoder Encoder
	next    *time.Timer
}

// MIMEType returns the negotiated container type.
func (s *CaptureSession) MIMEType() string { return s.mimeType }

// Controller drives the capture lifecycle. Errors never escape its methods;
// they surface through Status.
type Controller struct {
	opts Options
	log  *slog.Logger

	mu         sync.Mutex
	state      State
	permission bool
	errMsg     string
	inflight   int
	session    *CaptureSession

	// counts open segments and in-flight relay calls
	wg sync.WaitGroup
}

// New creates an idle controller.
func New(opts Options) *Controller {
	if opts.SegmentDuration <= 0 {
		opts.SegmentDuration = DefaultSegmentDuration
	}
	if opts.SegmentGap <= 0 {
		opts.SegmentGap = DefaultSegmentGap
	}
	if opts.MinSegmentSize <= 0 {
		opts.MinSegmentSize = DefaultMinSegmentSize
	}
	if opts.Transcript == nil {
		opts.Transcript = NewDocument("")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{opts: opts, log: opts.Logger.With("component", "recorder")}
}

// Transcript returns the sink segment text is appended to.
func (c *Controller) Transcript() Transcript {
	return c.opts.Transcript
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	return Status{
		State:             c.state,
		Recording:         c.state == StateRecording,
		Processing:        c.inflight > 0,
		Error:             c.errMsg,
		PermissionGranted: c.permission,
	}
}

func (c *Controller) publish() {
	if c.opts.OnStatus == nil {
		return
	}
	c.opts.OnStatus(c.Status())
}

// RequestPermission opens a throwaway stream to trigger the permission prompt
// and releases it immediately.
func (c *Controller) RequestPermission(ctx context.Context) bool {
	stream, err := c.opts.Devices.GetUserMedia(ctx, Constraints{})
	if err != nil {
		msg := "Failed to access microphone: " + err.Error()
		if errors.Is(err, ErrPermissionDenied) {
			msg = msgPermissionDenied
		}
		c.log.Warn("microphone access failed", "error", err)
		c.mu.Lock()
		c.permission = false
		c.errMsg = msg
		c.mu.Unlock()
		c.publish()
		return false
	}
	releaseTracks(stream)

	c.mu.Lock()
	c.permission = true
	c.errMsg = ""
	if c.state == StateIdle {
		c.state = StateArmed
	}
	c.mu.Unlock()
	c.publish()
	return true
}

// Start begins a capture session and its first segment. It does nothing when
// a session is already running.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		return
	}
	c.errMsg = ""
	granted := c.permission
	c.mu.Unlock()
	c.publish()

	if !granted && !c.RequestPermission(ctx) {
		return
	}

	stream, err := c.opts.Devices.GetUserMedia(ctx, Constraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	})
	if err != nil {
		c.log.Error("open capture stream", "error", err)
		c.fail(err.Error())
		return
	}

	mimeType, err := Negotiate(c.opts.Platform)
	if err != nil {
		releaseTracks(stream)
		c.log.Error("no supported container", "error", err)
		c.fail(msgUnsupported)
		return
	}

	sess := &CaptureSession{stream: stream, mimeType: mimeType, active: true}
	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		releaseTracks(stream)
		return
	}
	c.session = sess
	c.state = StateRecording
	c.mu.Unlock()
	c.log.Info("recording started", "mime", mimeType)
	c.publish()

	c.beginSegment(sess)
}

// Stop ends the session: pending scheduling is cancelled, the open segment is
// closed early and still dispatched, and every track is released. Relay calls
// already in flight keep running. Stop is a no-op when nothing is recording.
func (c *Controller) Stop() {
	c.mu.Lock()
	sess := c.session
	if sess == nil || !sess.active {
		c.mu.Unlock()
		return
	}
	sess.active = false
	if sess.next != nil {
		sess.next.Stop()
		sess.next = nil
	}
	enc := sess.encoder
	c.state = StateStopping
	c.mu.Unlock()
	c.publish()

	if enc != nil && enc.Recording() {
		enc.Stop()
	}
	releaseTracks(sess.stream)

	c.mu.Lock()
	if c.session == sess {
		c.session = nil
		c.state = StateIdle
	}
	c.mu.Unlock()
	c.log.Info("recording stopped", "segments", sess.seq)
	c.publish()
}

// Wait blocks until every open segment has closed and every relay call has
// returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// fail records a capture error that prevented a session from starting.
func (c *Controller) fail(msg string) {
	c.mu.Lock()
	c.errMsg = msg
	c.state = StateIdle
	c.mu.Unlock()
	c.publish()
}

// abort tears down a running session after a fatal capture error.
func (c *Controller) abort(sess *CaptureSession, err error) {
	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return
	}
	sess.active = false
	if sess.next != nil {
		sess.next.Stop()
		sess.next = nil
	}
	enc := sess.encoder
	c.session = nil
	c.state = StateIdle
	c.errMsg = err.Error()
	if errors.Is(err, ErrUnsupported) {
		c.errMsg = msgUnsupported
	}
	c.mu.Unlock()

	c.log.Error("capture aborted", "error", err)
	if enc != nil && enc.Recording() {
		enc.Stop()
	}
	releaseTracks(sess.stream)
	c.publish()
}

func (c *Controller) beginSegment(sess *CaptureSession) {
	c.mu.Lock()
	if c.session != sess || !sess.active {
		c.mu.Unlock()
		return
	}
	if !streamLive(sess.stream) {
		c.mu.Unlock()
		c.log.Info("capture stream ended")
		c.Stop()
		return
	}
	err := c.openSegment(sess)
	c.mu.Unlock()
	if err != nil {
		c.abort(sess, err)
	}
}

// openSegment starts the next encoder. Called with c.mu held.
func (c *Controller) openSegment(sess *CaptureSession) error {
	sess.seq++
	seg := newSegment(sess.seq, sess.mimeType, c.opts.SegmentDuration)

	enc, err := c.opts.Platform.NewEncoder(sess.stream, sess.mimeType)
	if err != nil {
		return fmt.Errorf("create encoder: %w", err)
	}
	c.wg.Add(1)
	if err = enc.Start(seg.Append, func() { c.closeSegment(sess, seg) }); err != nil {
		c.wg.Done()
		return fmt.Errorf("start encoder: %w", err)
	}
	sess.encoder = enc
	seg.timer = time.AfterFunc(seg.Duration, func() {
		if enc.Recording() {
			enc.Stop()
		}
	})
	return nil
}

// closeSegment runs once per encoder when it stops.
func (c *Controller) closeSegment(sess *CaptureSession, seg *Segment) {
	defer c.wg.Done()
	blob := seg.Close()

	c.mu.Lock()
	if seg.timer != nil {
		seg.timer.Stop()
	}
	viable := len(blob.Data) >= c.opts.MinSegmentSize
	if viable {
		c.inflight++
		c.wg.Add(1)
	}
	if c.session == sess && sess.active {
		sess.encoder = nil
		sess.next = time.AfterFunc(c.opts.SegmentGap, func() { c.beginSegment(sess) })
	}
	c.mu.Unlock()

	if !viable {
		metrics.SegmentsDiscarded.Inc()
		c.log.Debug("segment discarded", "seq", blob.Seq, "bytes", len(blob.Data))
		return
	}
	metrics.SegmentsDispatched.Inc()
	c.publish()
	go c.dispatch(blob)
}

func (c *Controller) dispatch(blob Blob) {
	defer c.wg.Done()

	text, err := c.opts.Relay.Transcribe(context.Background(), blob.File())
	if err == nil {
		if t := strings.TrimSpace(text); t != "" {
			c.opts.Transcript.Append(TranscriptAppend{Seq: blob.Seq, Text: t, Separator: " "})
		}
	}

	c.mu.Lock()
	c.inflight--
	if err != nil {
		metrics.SegmentFailures.Inc()
		msg := err.Error()
		if msg == "" {
			msg = msgRelayFailed
		}
		if !strings.Contains(msg, suppressedRelayErr) {
			c.errMsg = msg
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("segment transcription failed", "seq", blob.Seq, "error", err)
	}
	c.publish()
}
