package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/voice-journal/internal/recorder"
	"github.com/hubenschmidt/voice-journal/internal/ws"
)

var errStreamClosed = errors.New("dictation stream closed")

// StreamRelay sends segments over one dictation websocket and matches each
// returned event to its caller by segment id.
type StreamRelay struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan ws.Event
	err     error
	done    chan struct{}
}

// DialStream opens the dictation socket at url (ws:// or wss://).
func DialStream(ctx context.Context, url, token string) (*StreamRelay, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial dictation stream: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial dictation stream: %w", err)
	}
	s := &StreamRelay{
		conn:    conn,
		pending: make(map[string]chan ws.Event),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *StreamRelay) readLoop() {
	for {
		var ev ws.Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			s.mu.Lock()
			s.err = err
			close(s.done)
			s.mu.Unlock()
			return
		}
		s.mu.Lock()
		ch, ok := s.pending[ev.ID]
		delete(s.pending, ev.ID)
		s.mu.Unlock()
		if ok {
			ch <- ev
		}
	}
}

// Transcribe sends one segment and waits for its event.
func (s *StreamRelay) Transcribe(ctx context.Context, f recorder.File) (string, error) {
	id := uuid.NewString()
	ch := make(chan ws.Event, 1)

	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return "", errStreamClosed
	default:
	}
	s.pending[id] = ch
	s.mu.Unlock()

	if err := s.send(ws.SegmentHeader{Type: ws.TypeSegment, ID: id, Name: f.Name, MIME: f.MIMEType}, f.Data); err != nil {
		s.forget(id)
		return "", err
	}

	select {
	case ev := <-ch:
		if ev.Type == ws.TypeError {
			return "", &APIError{Status: ev.Status, Message: ev.Error}
		}
		return ev.Text, nil
	case <-ctx.Done():
		s.forget(id)
		return "", ctx.Err()
	case <-s.done:
		return "", fmt.Errorf("%w: %v", errStreamClosed, s.err)
	}
}

func (s *StreamRelay) send(hdr ws.SegmentHeader, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(hdr); err != nil {
		return fmt.Errorf("write segment header: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("write segment: %w", err)
	}
	return nil
}

func (s *StreamRelay) forget(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Close sends a close frame and tears the connection down.
func (s *StreamRelay) Close() error {
	s.writeMu.Lock()
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return s.conn.Close()
}
