package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/tidwall/gjson"
)

const maxErrorBody = 64 << 10

// OpenAIUpstream calls the OpenAI-compatible /audio/transcriptions endpoint.
// Upstream errors are passed through verbatim and never retried.
type OpenAIUpstream struct {
	client   openai.Client
	model    string
	language string
}

// OpenAIConfig configures an OpenAIUpstream.
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	PoolSize int
	Timeout  time.Duration
}

// NewOpenAIUpstream creates the upstream client.
func NewOpenAIUpstream(cfg OpenAIConfig) *OpenAIUpstream {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(NewPooledHTTPClient(cfg.PoolSize, cfg.Timeout)),
		option.WithMiddleware(captureUpstreamError),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIUpstream{
		client:   openai.NewClient(opts...),
		model:    cfg.Model,
		language: cfg.Language,
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe sends the segment with the configured model and language.
func (u *OpenAIUpstream) Transcribe(ctx context.Context, a Audio) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:     openai.File(bytes.NewReader(a.Data), a.Name, a.Type),
		Model:    openai.AudioModel(u.model),
		Language: openai.String(u.language),
	}
	var out transcriptionResponse
	if err := u.client.Post(ctx, "audio/transcriptions", params, &out); err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return out.Text, nil
}

// captureUpstreamError turns a non-2xx response into an *Error carrying the
// upstream status and message before the SDK decodes it.
func captureUpstreamError(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
	resp, err := next(req)
	if err != nil || resp.StatusCode < 300 {
		return resp, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &Error{Status: resp.StatusCode, Message: upstreamMessage(body, resp.StatusCode)}
}

// upstreamMessage extracts the provider's error message from a response body.
func upstreamMessage(body []byte, status int) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error.message"); msg.Type == gjson.String && msg.Str != "" {
			return msg.Str
		}
		if msg := gjson.GetBytes(body, "error"); msg.Type == gjson.String && msg.Str != "" {
			return msg.Str
		}
	}
	return fmt.Sprintf("OpenAI API error: %d", status)
}
