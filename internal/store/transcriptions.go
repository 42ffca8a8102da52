package store

import (
	"context"
	"fmt"
)

// InsertTranscription writes one relay audit record.
func (s *Store) InsertTranscription(ctx context.Context, t Transcription) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO transcriptions
			(id, user_id, source, filename, content_type, size_bytes, status, duration_ms, error_msg, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		t.ID, t.UserID, t.Source, t.Filename, t.ContentType,
		t.SizeBytes, t.Status, t.DurationMs, t.Error, toUnix(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert transcription: %w", err)
	}
	return nil
}

// RecentTranscriptions returns the user's latest audit records, newest first.
func (s *Store) RecentTranscriptions(ctx context.Context, userID string, limit int) ([]Transcription, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, user_id, source, filename, content_type, size_bytes, status, duration_ms, error_msg, created_at
		FROM transcriptions
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transcriptions: %w", err)
	}
	defer rows.Close()

	out := []Transcription{}
	for rows.Next() {
		var t Transcription
		var createdAt int64
		if err = rows.Scan(&t.ID, &t.UserID, &t.Source, &t.Filename, &t.ContentType,
			&t.SizeBytes, &t.Status, &t.DurationMs, &t.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transcription: %w", err)
		}
		t.CreatedAt = fromUnix(createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}
