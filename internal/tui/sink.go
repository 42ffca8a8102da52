package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hubenschmidt/voice-journal/internal/recorder"
)

// Sink forwards recorder callbacks into a running program, making the update
// loop the only writer of the editor buffer. Callbacks before Attach are
// dropped.
type Sink struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

// Attach routes future callbacks to p.
func (s *Sink) Attach(p *tea.Program) {
	s.mu.Lock()
	s.send = p.Send
	s.mu.Unlock()
}

// Append implements recorder.Transcript.
func (s *Sink) Append(a recorder.TranscriptAppend) {
	s.dispatch(TranscriptMsg{Append: a})
}

// Status is a recorder.Options.OnStatus callback.
func (s *Sink) Status(st recorder.Status) {
	s.dispatch(RecorderStatusMsg{Status: st})
}

func (s *Sink) dispatch(msg tea.Msg) {
	s.mu.Lock()
	send := s.send
	s.mu.Unlock()
	if send != nil {
		send(msg)
	}
}
