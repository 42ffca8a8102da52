// Command dictate is the terminal journal client. It plays a WAV file as the
// microphone, cuts it into segments and appends each transcript to the entry
// being edited.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hubenschmidt/voice-journal/internal/capture"
	"github.com/hubenschmidt/voice-journal/internal/client"
	"github.com/hubenschmidt/voice-journal/internal/env"
	"github.com/hubenschmidt/voice-journal/internal/recorder"
	"github.com/hubenschmidt/voice-journal/internal/tui"
)

func main() {
	server := flag.String("server", env.Str("JOURNAL_SERVER", "http://localhost:8000"), "journal server URL")
	token := flag.String("token", env.Str("JOURNAL_TOKEN", ""), "session token")
	input := flag.String("input", env.Str("DICTATE_INPUT", ""), "WAV file used as the microphone")
	transport := flag.String("transport", env.Str("DICTATE_TRANSPORT", "http"), "segment transport (http|ws)")
	segment := flag.Duration("segment", env.Duration("DICTATE_SEGMENT", recorder.DefaultSegmentDuration), "segment length")
	timeout := flag.Duration("timeout", env.Duration("DICTATE_TIMEOUT", 60*time.Second), "request timeout")
	logPath := flag.String("log", env.Str("DICTATE_LOG", "dictate.log"), "log file")
	flag.Parse()

	if err := run(*server, *token, *input, *transport, *segment, *timeout, *logPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(server, token, input, transport string, segment, timeout time.Duration, logPath string) error {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	api := client.New(server, token, timeout)

	relay, closeRelay, err := newRelay(api, server, token, transport)
	if err != nil {
		return err
	}
	defer closeRelay()

	sink := &tui.Sink{}
	var rec tui.Recorder
	if input != "" {
		rec = recorder.New(recorder.Options{
			Devices:         &capture.FileDevice{Path: input},
			Platform:        capture.WAVPlatform{},
			Relay:           relay,
			Transcript:      sink,
			SegmentDuration: segment,
			Logger:          logger,
			OnStatus:        sink.Status,
		})
	} else {
		logger.Warn("no input file, dictation disabled")
	}

	p := tea.NewProgram(tui.New(api, rec), tea.WithAltScreen())
	sink.Attach(p)

	logger.Info("dictate starting", "server", server, "transport", transport, "input", input)
	_, err = p.Run()
	if c, ok := rec.(*recorder.Controller); ok {
		c.Stop()
		c.Wait()
	}
	return err
}

// newRelay picks the per-segment upload or the shared dictation socket.
func newRelay(api *client.Client, server, token, transport string) (recorder.Relay, func(), error) {
	switch transport {
	case "http":
		return api, func() {}, nil
	case "ws":
		wsURL, err := dictationURL(server)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := client.DialStream(ctx, wsURL, token)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q (want http or ws)", transport)
	}
}

// dictationURL maps http(s)://host to ws(s)://host/ws/dictate.
func dictationURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/dictate"
	return u.String(), nil
}
