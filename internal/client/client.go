// Package client talks to the journal server: the entries API, the
// transcription relay and the streaming dictation socket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/hubenschmidt/voice-journal/internal/recorder"
	"github.com/hubenschmidt/voice-journal/internal/store"
)

// APIError is a non-2xx server response. Error returns the server's message
// unchanged so callers can match on it.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// EntryList is the GET /api/entries response.
type EntryList struct {
	Entries []store.Entry `json:"entries"`
	Total   int           `json:"total"`
}

// Client is an authenticated journal API client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the server at baseURL using a session token.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// ListEntries returns the newest entries. recent limits the list to the ten
// most recent; Total is always the full count.
func (c *Client) ListEntries(ctx context.Context, recent bool) (*EntryList, error) {
	path := "/api/entries"
	if recent {
		path += "?recent=1"
	}
	var out EntryList
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateEntry saves a new entry.
func (c *Client) CreateEntry(ctx context.Context, content string) (*store.Entry, error) {
	var out store.Entry
	if err := c.doJSON(ctx, http.MethodPost, "/api/entries", map[string]string{"content": content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateEntry replaces an entry's content.
func (c *Client) UpdateEntry(ctx context.Context, id, content string) (*store.Entry, error) {
	var out store.Entry
	path := "/api/entries/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodPut, path, map[string]string{"content": content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteEntry removes an entry.
func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/entries/"+url.PathEscape(id), nil, nil)
}

// Transcribe uploads one segment to POST /api/transcribe.
func (c *Client) Transcribe(ctx context.Context, f recorder.File) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	h.Set("Content-Type", f.MIMEType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err = part.Write(f.Data); err != nil {
		return "", fmt.Errorf("write segment: %w", err)
	}
	if err = w.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/transcribe", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out struct {
		Text string `json:"text"`
	}
	if err = c.do(req, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := fmt.Sprintf("HTTP error! status: %d", resp.StatusCode)
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
