package store

import "time"

// Entry is one journal entry owned by a user.
type Entry struct {
	ID        string     `json:"id"`
	UserID    string     `json:"-"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Transcription is the audit record of one relay round-trip. Audio bytes are
// never stored, only their size.
type Transcription struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Source      string    `json:"source"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Status      int       `json:"status"`
	DurationMs  float64   `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
