package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hubenschmidt/voice-journal/internal/metrics"
)

// ListEntries returns the user's entries newest first. A limit <= 0 returns all.
func (s *Store) ListEntries(ctx context.Context, userID string, limit int) ([]Entry, error) {
	query := `
		SELECT id, user_id, content, created_at, updated_at
		FROM journal_entries
		WHERE user_id = ?
		ORDER BY created_at DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		metrics.EntryOps.WithLabelValues("list", "error").Inc()
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, scanErr := scanEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, *e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	metrics.EntryOps.WithLabelValues("list", "ok").Inc()
	return entries, nil
}

// CountEntries returns how many entries the user has.
func (s *Store) CountEntries(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM journal_entries WHERE user_id = ?`), userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// CreateEntry inserts a new entry for the user.
func (s *Store) CreateEntry(ctx context.Context, userID, content string) (*Entry, error) {
	e := &Entry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO journal_entries (id, user_id, content, created_at) VALUES (?, ?, ?, ?)`),
		e.ID, e.UserID, e.Content, toUnix(e.CreatedAt),
	)
	if err != nil {
		metrics.EntryOps.WithLabelValues("create", "error").Inc()
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	metrics.EntryOps.WithLabelValues("create", "ok").Inc()
	return &Entry{ID: e.ID, UserID: e.UserID, Content: e.Content, CreatedAt: fromUnix(toUnix(e.CreatedAt))}, nil
}

// UpdateEntry replaces the content of one of the user's entries and stamps
// updated_at. Returns ErrNotFound when the entry does not belong to the user.
func (s *Store) UpdateEntry(ctx context.Context, userID, id, content string) (*Entry, error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE journal_entries SET content = ?, updated_at = ? WHERE id = ? AND user_id = ?`),
		content, toUnix(time.Now()), id, userID,
	)
	if err != nil {
		metrics.EntryOps.WithLabelValues("update", "error").Inc()
		return nil, fmt.Errorf("update entry: %w", err)
	}
	if err = expectOne(res); err != nil {
		metrics.EntryOps.WithLabelValues("update", "not_found").Inc()
		return nil, err
	}
	metrics.EntryOps.WithLabelValues("update", "ok").Inc()
	return s.getEntry(ctx, userID, id)
}

// DeleteEntry removes one of the user's entries. Deleting an id that does not
// exist is reported as ErrNotFound.
func (s *Store) DeleteEntry(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM journal_entries WHERE id = ? AND user_id = ?`),
		id, userID,
	)
	if err != nil {
		metrics.EntryOps.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("delete entry: %w", err)
	}
	if err = expectOne(res); err != nil {
		metrics.EntryOps.WithLabelValues("delete", "not_found").Inc()
		return err
	}
	metrics.EntryOps.WithLabelValues("delete", "ok").Inc()
	return nil
}

func (s *Store) getEntry(ctx context.Context, userID, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, user_id, content, created_at, updated_at
		FROM journal_entries
		WHERE id = ? AND user_id = ?
	`), id, userID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var e Entry
	var createdAt int64
	var updatedAt sql.NullInt64
	if err := sc.Scan(&e.ID, &e.UserID, &e.Content, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	e.CreatedAt = fromUnix(createdAt)
	if updatedAt.Valid {
		t := fromUnix(updatedAt.Int64)
		e.UpdatedAt = &t
	}
	return &e, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
