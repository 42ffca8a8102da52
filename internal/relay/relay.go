// Package relay is the server-side boundary between dictation clients and the
// upstream speech-to-text provider. It validates one audio segment, normalizes
// its name and type, forwards it and maps the outcome to an HTTP status.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/hubenschmidt/voice-journal/internal/audit"
	"github.com/hubenschmidt/voice-journal/internal/metrics"
	"github.com/hubenschmidt/voice-journal/internal/store"
)

// MaxUploadBytes is the largest segment the upstream accepts.
const MaxUploadBytes = 25 << 20

const (
	msgNoFile      = "No audio file provided"
	msgTooLarge    = "Audio file too large. Maximum size is 25MB."
	msgBadFormat   = "Invalid audio format. Supported: webm, mp3, wav, m4a, mp4"
	msgConfig      = "Server configuration error"
	msgTimeout     = "Transcription timed out"
	msgUnavailable = "Failed to transcribe audio"
)

var (
	allowedTypes = []string{"audio/webm", "audio/mpeg", "audio/mp3", "audio/wav", "audio/m4a", "audio/mp4"}
	allowedName  = regexp.MustCompile(`(?i)\.(webm|mp3|wav|m4a|mp4)$`)
	readyName    = regexp.MustCompile(`(?i)\.(webm|mp3|wav|m4a|mp4|flac|mpeg|mpga|oga|ogg)$`)
	extension    = regexp.MustCompile(`\.(\w+)$`)
)

// Audio is one uploaded segment.
type Audio struct {
	Name string
	Type string
	Data []byte
}

// Error is a relay failure carrying the HTTP status and the client-facing message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("relay %d: %s", e.Status, e.Message)
}

// Upstream forwards a prepared segment to a speech-to-text provider.
type Upstream interface {
	Transcribe(ctx context.Context, a Audio) (string, error)
}

// Validate checks size and format. It returns a 400 *Error on rejection.
func Validate(a Audio) error {
	if a.Data == nil {
		return &Error{Status: http.StatusBadRequest, Message: msgNoFile}
	}
	if len(a.Data) > MaxUploadBytes {
		return &Error{Status: http.StatusBadRequest, Message: msgTooLarge}
	}
	if !slices.Contains(allowedTypes, a.Type) && !allowedName.MatchString(a.Name) {
		return &Error{Status: http.StatusBadRequest, Message: msgBadFormat}
	}
	return nil
}

// Prepare re-wraps a segment whose type is missing or whose name lacks an
// extension the provider recognizes. The bytes are never touched.
func Prepare(a Audio) Audio {
	if a.Type != "" && readyName.MatchString(a.Name) {
		return a
	}
	ext := "webm"
	if m := extension.FindStringSubmatch(a.Name); m != nil {
		ext = m[1]
	}
	mime := a.Type
	if mime == "" {
		mime = inferType(ext)
	}
	return Audio{Name: "audio." + ext, Type: mime, Data: a.Data}
}

func inferType(ext string) string {
	switch ext {
	case "webm":
		return "audio/webm"
	case "mp3":
		return "audio/mpeg"
	default:
		return "audio/" + ext
	}
}

// Config wires a Relay.
type Config struct {
	// Upstream is nil when the provider credential is not configured.
	Upstream Upstream
	Timeout  time.Duration
	Audit    *audit.Recorder
	Logger   *slog.Logger
}

// Relay validates segments and forwards them upstream.
type Relay struct {
	upstream Upstream
	timeout  time.Duration
	audit    *audit.Recorder
	log      *slog.Logger
}

// New creates a Relay. A zero Timeout means 30 seconds.
func New(cfg Config) *Relay {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Relay{
		upstream: cfg.Upstream,
		timeout:  cfg.Timeout,
		audit:    cfg.Audit,
		log:      cfg.Logger.With("component", "relay"),
	}
}

// Caller identifies who sent a segment and over which transport, for auditing.
type Caller struct {
	UserID string
	Source string
}

// Transcribe runs one segment through validation and the upstream provider.
// Every failure is an *Error.
func (r *Relay) Transcribe(ctx context.Context, caller Caller, a Audio) (string, error) {
	start := time.Now()
	text, err := r.transcribe(ctx, a)

	status := http.StatusOK
	errMsg := ""
	var rerr *Error
	if err != nil {
		if !errors.As(err, &rerr) {
			rerr = &Error{Status: http.StatusInternalServerError, Message: err.Error()}
		}
		status = rerr.Status
		errMsg = rerr.Message
	}
	metrics.RelayRequests.WithLabelValues(outcome(status)).Inc()
	r.audit.Record(store.Transcription{
		UserID:      caller.UserID,
		Source:      caller.Source,
		Filename:    a.Name,
		ContentType: a.Type,
		SizeBytes:   int64(len(a.Data)),
		Status:      status,
		DurationMs:  float64(time.Since(start).Microseconds()) / 1000,
		Error:       errMsg,
	})
	if rerr != nil {
		return "", rerr
	}
	return text, nil
}

func (r *Relay) transcribe(ctx context.Context, a Audio) (string, error) {
	if err := Validate(a); err != nil {
		return "", err
	}
	if r.upstream == nil {
		r.log.Error("OPENAI_API_KEY is not set")
		return "", &Error{Status: http.StatusInternalServerError, Message: msgConfig}
	}
	metrics.UploadBytes.Observe(float64(len(a.Data)))

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	prepared := Prepare(a)
	start := time.Now()
	text, err := r.upstream.Transcribe(ctx, prepared)
	metrics.UpstreamDuration.Observe(time.Since(start).Seconds())

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.log.Warn("upstream timed out", "name", prepared.Name, "bytes", len(a.Data))
		return "", &Error{Status: http.StatusGatewayTimeout, Message: msgTimeout}
	}
	if err != nil {
		var rerr *Error
		if errors.As(err, &rerr) {
			r.log.Warn("upstream rejected segment", "status", rerr.Status, "error", rerr.Message)
			return "", rerr
		}
		r.log.Error("transcription failed", "error", err)
		return "", &Error{Status: http.StatusInternalServerError, Message: errorMessage(err)}
	}
	return text, nil
}

func errorMessage(err error) string {
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return msgUnavailable
}

func outcome(status int) string {
	switch {
	case status == http.StatusOK:
		return "ok"
	case status == http.StatusGatewayTimeout:
		return "timeout"
	case status >= 500:
		return "server_error"
	default:
		return "rejected"
	}
}
