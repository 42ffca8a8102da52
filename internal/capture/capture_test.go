package capture

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hubenschmidt/voice-journal/internal/audio"
	"github.com/hubenschmidt/voice-journal/internal/recorder"
)

func writeTone(t *testing.T, seconds float64, rate int) string {
	t.Helper()
	n := int(seconds * float64(rate))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.5 * float32(math.Sin(2*math.Pi*220*float64(i)/float64(rate)))
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := os.WriteFile(path, audio.SamplesToWAV(samples, rate), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type collectRelay struct {
	mu    sync.Mutex
	files []recorder.File
}

func (r *collectRelay) Transcribe(_ context.Context, f recorder.File) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, f)
	return "words", nil
}

func TestStreamEndsWhenSamplesRunOut(t *testing.T) {
	dev := &FileDevice{Path: writeTone(t, 0.05, 8000), Frame: 5 * time.Millisecond}
	s, err := dev.GetUserMedia(context.Background(), recorder.Constraints{})
	if err != nil {
		t.Fatal(err)
	}
	track := s.Tracks()[0]
	if !track.Live() {
		t.Fatal("track should be live right after open")
	}
	deadline := time.Now().Add(2 * time.Second)
	for track.Live() {
		if time.Now().After(deadline) {
			t.Fatal("track never ended")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTrackStop(t *testing.T) {
	dev := &FileDevice{Path: writeTone(t, 5, 8000)}
	s, err := dev.GetUserMedia(context.Background(), recorder.Constraints{})
	if err != nil {
		t.Fatal(err)
	}
	tr := s.Tracks()[0]
	tr.Stop()
	tr.Stop()
	if tr.Live() {
		t.Fatal("track live after Stop")
	}
}

func TestMissingSource(t *testing.T) {
	dev := &FileDevice{Path: filepath.Join(t.TempDir(), "nope.wav")}
	_, err := dev.GetUserMedia(context.Background(), recorder.Constraints{})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, recorder.ErrPermissionDenied) {
		t.Fatal("missing file reported as permission denial")
	}
}

func TestWAVPlatformSupport(t *testing.T) {
	p := WAVPlatform{}
	got, err := recorder.Negotiate(p)
	if err != nil || got != "audio/wav" {
		t.Fatalf("Negotiate = %q, %v", got, err)
	}
	if p.IsTypeSupported("audio/webm") {
		t.Fatal("webm should not be supported")
	}
}

func TestEncoderEmitsStandaloneWAV(t *testing.T) {
	dev := &FileDevice{Path: writeTone(t, 1, 8000), Frame: 5 * time.Millisecond}
	s, err := dev.GetUserMedia(context.Background(), recorder.Constraints{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Tracks()[0].Stop()

	enc, err := WAVPlatform{}.NewEncoder(s, "audio/wav")
	if err != nil {
		t.Fatal(err)
	}
	var data []byte
	stopped := make(chan struct{})
	if err = enc.Start(func(b []byte) { data = append(data, b...) }, func() { close(stopped) }); err != nil {
		t.Fatal(err)
	}
	if !enc.Recording() {
		t.Fatal("encoder not recording after Start")
	}
	time.Sleep(60 * time.Millisecond)
	enc.Stop()
	<-stopped

	samples, rate, err := audio.ReadWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("segment does not decode: %v", err)
	}
	if rate != 8000 || len(samples) == 0 {
		t.Fatalf("decoded %d samples at %d Hz", len(samples), rate)
	}
}

func TestPipelineOverFile(t *testing.T) {
	relay := &collectRelay{}
	doc := recorder.NewDocument("")
	c := recorder.New(recorder.Options{
		Devices:         &FileDevice{Path: writeTone(t, 0.4, 8000), Frame: 5 * time.Millisecond},
		Platform:        WAVPlatform{},
		Relay:           relay,
		Transcript:      doc,
		SegmentDuration: 100 * time.Millisecond,
		SegmentGap:      5 * time.Millisecond,
	})

	c.Start(context.Background())
	if st := c.Status(); st.State != recorder.StateRecording {
		t.Fatalf("status = %+v", st)
	}
	deadline := time.Now().Add(3 * time.Second)
	for c.Status().State != recorder.StateIdle {
		if time.Now().After(deadline) {
			t.Fatal("session did not end with the source")
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.Wait()

	relay.mu.Lock()
	defer relay.mu.Unlock()
	if len(relay.files) < 2 {
		t.Fatalf("relayed %d segments, want at least 2", len(relay.files))
	}
	for i, f := range relay.files {
		if f.Name != "audio.wav" || f.MIMEType != "audio/wav" {
			t.Errorf("segment %d named %q %q", i, f.Name, f.MIMEType)
		}
		if _, _, err := audio.ReadWAV(bytes.NewReader(f.Data)); err != nil {
			t.Errorf("segment %d does not decode: %v", i, err)
		}
	}
	if doc.Text() == "" {
		t.Error("no text appended")
	}
}
