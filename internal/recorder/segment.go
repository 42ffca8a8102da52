package recorder

import (
	"strings"
	"sync"
	"time"
)

// Segment accumulates the chunks of one encoder run. It is append-only until
// Close, which materializes the blob.
type Segment struct {
	Seq      int
	MIMEType string
	Duration time.Duration

	mu     sync.Mutex
	chunks [][]byte
	closed bool

	// guarded by Controller.mu
	timer *time.Timer
}

func newSegment(seq int, mimeType string, d time.Duration) *Segment {
	return &Segment{Seq: seq, MIMEType: mimeType, Duration: d}
}

// Append adds a chunk. Empty chunks and chunks after Close are ignored.
func (s *Segment) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.chunks = append(s.chunks, append([]byte(nil), chunk...))
}

// Close merges the chunks in arrival order.
func (s *Segment) Close() Blob {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true

	n := 0
	for _, c := range s.chunks {
		n += len(c)
	}
	data := make([]byte, 0, n)
	for _, c := range s.chunks {
		data = append(data, c...)
	}
	s.chunks = nil
	return Blob{Seq: s.Seq, MIMEType: s.MIMEType, Data: data}
}

// Blob is a closed, decodable segment.
type Blob struct {
	Seq      int
	MIMEType string
	Data     []byte
}

// File names the blob for upload with an extension matching its container.
func (b Blob) File() File {
	ext, mime := "webm", "audio/webm"
	switch {
	case strings.Contains(b.MIMEType, "webm"):
	case strings.Contains(b.MIMEType, "ogg"):
		ext, mime = "ogg", "audio/ogg"
	case strings.Contains(b.MIMEType, "mp4"):
		ext, mime = "m4a", "audio/m4a"
	case strings.Contains(b.MIMEType, "wav"):
		ext, mime = "wav", "audio/wav"
	}
	return File{Name: "audio." + ext, MIMEType: mime, Data: b.Data}
}

// TranscriptAppend is the text a segment contributes to the document.
type TranscriptAppend struct {
	Seq       int
	Text      string
	Separator string
}

func (t TranscriptAppend) String() string {
	return t.Text + t.Separator
}

// Transcript receives segment text in relay-completion order.
type Transcript interface {
	Append(TranscriptAppend)
}

// Document is a mutex-guarded text buffer implementing Transcript.
type Document struct {
	mu sync.Mutex
	b  strings.Builder
}

// NewDocument creates a document holding initial.
func NewDocument(initial string) *Document {
	d := &Document{}
	d.b.WriteString(initial)
	return d
}

func (d *Document) Append(a TranscriptAppend) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.b.WriteString(a.String())
}

// Set replaces the text, as a user edit would.
func (d *Document) Set(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.b.Reset()
	d.b.WriteString(text)
}

func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.b.String()
}
