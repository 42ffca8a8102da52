package recorder

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied is returned by MediaDevices when the user refuses
	// microphone access.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnsupported means the platform can encode none of PreferredTypes.
	ErrUnsupported = errors.New("audio recording not supported on this platform")
)

// Constraints are the capture processing flags requested from the platform.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// Track is one source inside a capture stream.
type Track interface {
	Stop()
	Live() bool
}

// Stream is an open capture stream.
type Stream interface {
	Tracks() []Track
}

// MediaDevices opens capture streams.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}

// Encoder records one segment from a stream.
//
// Start must not invoke its callbacks before returning. onData receives
// encoded chunks in order; onStop is called exactly once after the last chunk,
// either because Stop was called or the stream ended. Stop may invoke the
// callbacks synchronously.
type Encoder interface {
	Start(onData func([]byte), onStop func()) error
	Stop()
	Recording() bool
}

// Platform is the recorder capability of the host.
type Platform interface {
	IsTypeSupported(mimeType string) bool
	NewEncoder(s Stream, mimeType string) (Encoder, error)
}

// File is a closed segment wrapped for upload.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Relay transcribes one file.
type Relay interface {
	Transcribe(ctx context.Context, f File) (string, error)
}

// PreferredTypes is the container preference order; the first one the
// platform supports is used for a whole capture session.
var PreferredTypes = []string{
	"audio/webm",
	"audio/webm;codecs=opus",
	"audio/ogg;codecs=opus",
	"audio/mp4",
	"audio/wav",
}

// Negotiate picks the container type for a capture session.
func Negotiate(p Platform) (string, error) {
	for _, t := range PreferredTypes {
		if p.IsTypeSupported(t) {
			return t, nil
		}
	}
	return "", ErrUnsupported
}

func releaseTracks(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

func streamLive(s Stream) bool {
	for _, t := range s.Tracks() {
		if t.Live() {
			return true
		}
	}
	return false
}
