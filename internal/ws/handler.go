// Package ws serves streaming dictation: clients push closed segments over one
// websocket and receive transcripts as each relay call completes.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/voice-journal/internal/metrics"
	"github.com/hubenschmidt/voice-journal/internal/relay"
)

const (
	// frame overhead on top of the largest accepted segment
	readSlack    = 1 << 20
	writeTimeout = 10 * time.Second

	defaultSegmentsInFlight = 4
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message types on the wire.
const (
	TypeSegment    = "segment"
	TypeTranscript = "transcript"
	TypeError      = "error"
)

// SegmentHeader is the text frame preceding each binary segment frame.
type SegmentHeader struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
	MIME string `json:"mime"`
}

// Event is sent to the client when a segment's relay call completes.
type Event struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Text   string `json:"text"`
	Status int    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HandlerConfig wires the dictation handler.
type HandlerConfig struct {
	Relay         *relay.Relay
	MaxConcurrent int
	// MaxInFlight bounds the relay calls one stream may have outstanding.
	// Reading from the client pauses while the bound is reached.
	MaxInFlight int
	Identify    relay.Identify
	Logger      *slog.Logger
}

// Handler manages dictation streams with admission control.
type Handler struct {
	cfg HandlerConfig
	sem chan struct{}
	log *slog.Logger

	mu      sync.Mutex
	closing bool
	conns   map[*websocket.Conn]struct{}
	streams sync.WaitGroup
}

// NewHandler creates a handler accepting at most cfg.MaxConcurrent streams.
func NewHandler(cfg HandlerConfig) *Handler {
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaultSegmentsInFlight
	}
	return &Handler{
		cfg:   cfg,
		sem:   make(chan struct{}, maxConc),
		log:   logger.With("component", "ws"),
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Close stops accepting streams and ends reading on the open ones. Segments
// already received are still transcribed and their events sent. Close
// returns when every stream has finished or ctx is done.
func (h *Handler) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	for conn := range h.conns {
		conn.UnderlyingConn().SetReadDeadline(time.Now())
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.streams.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain dictation streams: %w", ctx.Err())
	}
}

// track registers an upgraded connection; false means the handler is closing.
func (h *Handler) track(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.conns[conn] = struct{}{}
	h.streams.Add(1)
	return true
}

func (h *Handler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	h.streams.Done()
}

// ServeHTTP upgrades the connection and runs the stream.
// Returns 503 if at max concurrent stream capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	caller := relay.Caller{Source: "ws"}
	if h.cfg.Identify != nil {
		caller.UserID = h.cfg.Identify(r)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if !h.track(conn) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeTimeout))
		return
	}
	defer h.untrack(conn)

	metrics.StreamsActive.Inc()
	metrics.StreamsTotal.Inc()
	defer metrics.StreamsActive.Dec()

	h.runStream(conn, caller)
}

func (h *Handler) runStream(conn *websocket.Conn, caller relay.Caller) {
	streamID := uuid.NewString()
	log := h.log.With("stream_id", streamID, "user_id", caller.UserID)
	log.Info("dictation stream opened")

	conn.SetReadLimit(relay.MaxUploadBytes + readSlack)
	send := newEventSender(conn, log)

	var wg sync.WaitGroup
	inFlight := make(chan struct{}, h.cfg.MaxInFlight)
	segments := 0
	for {
		hdr, data, err := readSegment(conn)
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("stream read ended", "error", err)
			}
			break
		}
		segments++
		inFlight <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				<-inFlight
				wg.Done()
			}()
			send(h.transcribe(caller, hdr, data))
		}()
	}

	// results still in flight are delivered if the client keeps reading
	wg.Wait()
	log.Info("dictation stream closed", "segments", segments)
}

func (h *Handler) transcribe(caller relay.Caller, hdr SegmentHeader, data []byte) Event {
	text, err := h.cfg.Relay.Transcribe(context.Background(), caller, relay.Audio{
		Name: hdr.Name,
		Type: hdr.MIME,
		Data: data,
	})
	if err != nil {
		ev := Event{Type: TypeError, ID: hdr.ID, Status: http.StatusInternalServerError, Error: err.Error()}
		var rerr *relay.Error
		if errors.As(err, &rerr) {
			ev.Status, ev.Error = rerr.Status, rerr.Message
		}
		return ev
	}
	return Event{Type: TypeTranscript, ID: hdr.ID, Text: text}
}

// readSegment reads one header frame and the binary frame that follows it.
func readSegment(conn *websocket.Conn) (SegmentHeader, []byte, error) {
	var hdr SegmentHeader
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		return hdr, nil, err
	}
	if msgType != websocket.TextMessage {
		return hdr, nil, fmt.Errorf("expected segment header, got frame type %d", msgType)
	}
	if err = json.Unmarshal(raw, &hdr); err != nil {
		return hdr, nil, fmt.Errorf("decode segment header: %w", err)
	}
	if hdr.Type != TypeSegment {
		return hdr, nil, fmt.Errorf("unexpected message type %q", hdr.Type)
	}

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return hdr, nil, err
	}
	if msgType != websocket.BinaryMessage {
		return hdr, nil, fmt.Errorf("expected binary segment, got frame type %d", msgType)
	}
	return hdr, data, nil
}

func newEventSender(conn *websocket.Conn, log *slog.Logger) func(Event) {
	var mu sync.Mutex
	return func(ev Event) {
		mu.Lock()
		defer mu.Unlock()

		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			log.Warn("write event", "id", ev.ID, "error", err)
		}
	}
}
