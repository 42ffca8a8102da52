package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

// WhisperUpstream sends segments as multipart to a self-hosted whisper.cpp
// server's /inference endpoint.
type WhisperUpstream struct {
	url      string
	language string
	client   *http.Client
}

// NewWhisperUpstream creates a client for a whisper.cpp server.
func NewWhisperUpstream(url, language string, poolSize int, timeout time.Duration) *WhisperUpstream {
	return &WhisperUpstream{
		url:      url,
		language: language,
		client:   NewPooledHTTPClient(poolSize, timeout),
	}
}

type whisperResponse struct {
	Text string `json:"text"`
}

// Transcribe posts the segment and returns the decoded text.
func (c *WhisperUpstream) Transcribe(ctx context.Context, a Audio) (string, error) {
	body, contentType, err := buildMultipartAudio(a, map[string]string{
		"language":        c.language,
		"response_format": "json",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/inference", body)
	if err != nil {
		return "", fmt.Errorf("create whisper request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &Error{Status: resp.StatusCode, Message: upstreamMessage(respBody, resp.StatusCode)}
	}

	var result whisperResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode whisper response: %w", err)
	}
	return result.Text, nil
}

func buildMultipartAudio(a Audio, fields map[string]string) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, a.Name))
	header.Set("Content-Type", a.Type)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err = part.Write(a.Data); err != nil {
		return nil, "", fmt.Errorf("write audio data: %w", err)
	}

	for k, v := range fields {
		if v == "" {
			continue
		}
		if err = writer.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}

	if err = writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close writer: %w", err)
	}
	return &body, writer.FormDataContentType(), nil
}
