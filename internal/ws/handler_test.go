package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/voice-journal/internal/relay"
)

type echoUpstream struct {
	mu     sync.Mutex
	delays map[string]time.Duration
}

// Transcribe returns the segment bytes as text after an optional per-payload delay.
func (u *echoUpstream) Transcribe(ctx context.Context, a relay.Audio) (string, error) {
	u.mu.Lock()
	d := u.delays[string(a.Data)]
	u.mu.Unlock()
	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return string(a.Data), nil
}

func startServer(t *testing.T, up relay.Upstream, maxConc int) string {
	t.Helper()
	_, url := startHandler(t, HandlerConfig{MaxConcurrent: maxConc}, up)
	return url
}

func startHandler(t *testing.T, cfg HandlerConfig, up relay.Upstream) (*Handler, string) {
	t.Helper()
	cfg.Relay = relay.New(relay.Config{Upstream: up, Timeout: 5 * time.Second})
	h := NewHandler(cfg)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// gatedUpstream holds every call until release is closed and tracks how many
// calls were outstanding at once.
type gatedUpstream struct {
	release chan struct{}

	mu     sync.Mutex
	active int
	peak   int
}

func newGatedUpstream() *gatedUpstream {
	return &gatedUpstream{release: make(chan struct{})}
}

func (u *gatedUpstream) Transcribe(ctx context.Context, a relay.Audio) (string, error) {
	u.mu.Lock()
	u.active++
	u.peak = max(u.peak, u.active)
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		u.active--
		u.mu.Unlock()
	}()

	select {
	case <-u.release:
		return string(a.Data), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (u *gatedUpstream) counts() (active, peak int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.active, u.peak
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

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendSegment(t *testing.T, conn *websocket.Conn, id, name, mime string, data []byte) {
	t.Helper()
	if err := conn.WriteJSON(SegmentHeader{Type: TypeSegment, ID: id, Name: name, MIME: mime}); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatal(err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestStreamTranscribesSegment(t *testing.T) {
	conn := dial(t, startServer(t, &echoUpstream{}, 2))

	sendSegment(t, conn, "a", "audio.webm", "audio/webm", []byte("hello there"))
	ev := readEvent(t, conn)
	if ev.Type != TypeTranscript || ev.ID != "a" || ev.Text != "hello there" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestStreamDeliversInCompletionOrder(t *testing.T) {
	up := &echoUpstream{delays: map[string]time.Duration{"slow": 200 * time.Millisecond}}
	conn := dial(t, startServer(t, up, 2))

	sendSegment(t, conn, "1", "audio.webm", "audio/webm", []byte("slow"))
	sendSegment(t, conn, "2", "audio.webm", "audio/webm", []byte("fast"))

	first := readEvent(t, conn)
	second := readEvent(t, conn)
	if first.ID != "2" || second.ID != "1" {
		t.Fatalf("order = %s, %s, want 2, 1", first.ID, second.ID)
	}
}

func TestStreamReportsValidationError(t *testing.T) {
	conn := dial(t, startServer(t, &echoUpstream{}, 2))

	sendSegment(t, conn, "x", "notes.txt", "text/plain", []byte("nope"))
	ev := readEvent(t, conn)
	if ev.Type != TypeError || ev.Status != http.StatusBadRequest {
		t.Fatalf("event = %+v", ev)
	}
	if !strings.HasPrefix(ev.Error, "Invalid audio format") {
		t.Fatalf("error = %q", ev.Error)
	}

	// the stream survives a rejected segment
	sendSegment(t, conn, "y", "audio.webm", "audio/webm", []byte("still here"))
	if ev = readEvent(t, conn); ev.Type != TypeTranscript || ev.Text != "still here" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestAdmissionControl(t *testing.T) {
	url := startServer(t, &echoUpstream{}, 1)
	conn := dial(t, url)

	// make sure the first stream is admitted before dialing again
	sendSegment(t, conn, "a", "audio.webm", "audio/webm", []byte("hi"))
	readEvent(t, conn)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("second stream admitted past capacity")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("resp = %v, want 503", resp)
	}
}

func TestStreamBoundsSegmentsInFlight(t *testing.T) {
	up := newGatedUpstream()
	_, url := startHandler(t, HandlerConfig{MaxConcurrent: 1, MaxInFlight: 2}, up)
	conn := dial(t, url)

	for _, id := range []string{"1", "2", "3", "4"} {
		sendSegment(t, conn, id, "audio.webm", "audio/webm", []byte("seg"+id))
	}
	waitFor(t, "two calls in flight", func() bool {
		active, _ := up.counts()
		return active == 2
	})
	time.Sleep(50 * time.Millisecond)
	if _, peak := up.counts(); peak != 2 {
		t.Fatalf("peak in flight = %d, want 2", peak)
	}

	close(up.release)
	seen := map[string]bool{}
	for range 4 {
		ev := readEvent(t, conn)
		if ev.Type != TypeTranscript {
			t.Fatalf("event = %+v", ev)
		}
		seen[ev.ID] = true
	}
	if len(seen) != 4 {
		t.Fatalf("got events for %v, want 4 segments", seen)
	}
	if _, peak := up.counts(); peak != 2 {
		t.Fatalf("peak in flight = %d, want 2", peak)
	}
}

func TestCloseDrainsInFlightSegments(t *testing.T) {
	up := newGatedUpstream()
	h, url := startHandler(t, HandlerConfig{MaxConcurrent: 2}, up)
	conn := dial(t, url)

	sendSegment(t, conn, "a", "audio.webm", "audio/webm", []byte("last words"))
	waitFor(t, "call in flight", func() bool {
		active, _ := up.counts()
		return active == 1
	})

	closed := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		closed <- h.Close(ctx)
	}()

	select {
	case err := <-closed:
		t.Fatalf("Close returned %v before the segment finished", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(up.release)
	if ev := readEvent(t, conn); ev.Type != TypeTranscript || ev.Text != "last words" {
		t.Fatalf("event = %+v", ev)
	}
	if err := <-closed; err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestClosedHandlerTurnsAwayStreams(t *testing.T) {
	h, url := startHandler(t, HandlerConfig{MaxConcurrent: 2}, &echoUpstream{})
	if err := h.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	conn := dial(t, url)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("read err = %v, want going away close", err)
	}
}
