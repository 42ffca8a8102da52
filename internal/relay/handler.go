package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	formOverhead  = 1 << 20
	formMaxMemory = 32 << 20
)

// Identify returns the id of the user behind a request.
type Identify func(*http.Request) string

// Handler serves POST /api/transcribe with a multipart "file" field. The
// relay timeout covers the whole request, upload included.
func (r *Relay) Handler(identify Identify) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		deadline := time.Now().Add(r.timeout)
		ctx, cancel := context.WithDeadline(req.Context(), deadline)
		defer cancel()
		// recorders and other non-socket writers cannot take a deadline
		_ = http.NewResponseController(w).SetReadDeadline(deadline)

		a, err := readUpload(w, req)
		if err != nil {
			var rerr *Error
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				r.log.Warn("upload timed out", "error", err)
				w.Header().Set("Connection", "close")
				writeError(w, http.StatusGatewayTimeout, msgTimeout)
				return
			}
			if errors.As(err, &rerr) {
				writeError(w, rerr.Status, rerr.Message)
				return
			}
			r.log.Error("read upload", "error", err)
			writeError(w, http.StatusInternalServerError, errorMessage(err))
			return
		}

		caller := Caller{Source: "http"}
		if identify != nil {
			caller.UserID = identify(req)
		}
		text, err := r.Transcribe(ctx, caller, a)
		if err != nil {
			var rerr *Error
			errors.As(err, &rerr)
			writeError(w, rerr.Status, rerr.Message)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"text": text})
	})
}

func readUpload(w http.ResponseWriter, req *http.Request) (Audio, error) {
	req.Body = http.MaxBytesReader(w, req.Body, MaxUploadBytes+formOverhead)
	if err := req.ParseMultipartForm(formMaxMemory); err != nil {
		var tooBig *http.MaxBytesError
		var nerr net.Error
		switch {
		case errors.As(err, &tooBig):
			return Audio{}, &Error{Status: http.StatusBadRequest, Message: msgTooLarge}
		case errors.As(err, &nerr) && nerr.Timeout():
			return Audio{}, err
		}
		return Audio{}, &Error{Status: http.StatusBadRequest, Message: msgNoFile}
	}
	defer req.MultipartForm.RemoveAll()

	file, header, err := req.FormFile("file")
	if err != nil {
		return Audio{}, &Error{Status: http.StatusBadRequest, Message: msgNoFile}
	}
	defer file.Close()

	if header.Size > MaxUploadBytes {
		return Audio{}, &Error{Status: http.StatusBadRequest, Message: msgTooLarge}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return Audio{}, err
	}

	// Go multipart writers default unknown parts to octet-stream; treat that
	// as undeclared so the name drives inference.
	mime := header.Header.Get("Content-Type")
	if mime == "application/octet-stream" {
		mime = ""
	}
	return Audio{Name: header.Filename, Type: mime, Data: data}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
