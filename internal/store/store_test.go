package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTest(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("got %d schema versions, want 2", n)
	}
}

func TestCreateAndListNewestFirst(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.CreateEntry(ctx, "u1", fmt.Sprintf("entry %d", i)); err != nil {
			t.Fatalf("create: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if _, err := s.CreateEntry(ctx, "u2", "someone else"); err != nil {
		t.Fatalf("create: %v", err)
	}

	entries, err := s.ListEntries(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Content != "entry 2" || entries[2].Content != "entry 0" {
		t.Errorf("order = %q, %q, %q", entries[0].Content, entries[1].Content, entries[2].Content)
	}

	limited, err := s.ListEntries(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("got %d entries, want 2", len(limited))
	}

	n, err := s.CountEntries(ctx, "u1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
}

func TestListEmptyIsNotNil(t *testing.T) {
	s := openTest(t)
	entries, err := s.ListEntries(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Fatalf("got %v, want empty slice", entries)
	}
}

func TestUpdateEntry(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	e, err := s.CreateEntry(ctx, "u1", "draft")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.UpdatedAt != nil {
		t.Fatal("new entry should have no updated_at")
	}

	got, err := s.UpdateEntry(ctx, "u1", e.ID, "final")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Content != "final" {
		t.Errorf("content = %q, want final", got.Content)
	}
	if got.UpdatedAt == nil {
		t.Error("updated_at not set")
	}
	if !got.CreatedAt.Equal(e.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", e.CreatedAt, got.CreatedAt)
	}

	if _, err = s.UpdateEntry(ctx, "u2", e.ID, "hijack"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-user update err = %v, want ErrNotFound", err)
	}
}

func TestDeleteEntry(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	e, err := s.CreateEntry(ctx, "u1", "to remove")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err = s.DeleteEntry(ctx, "u2", e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-user delete err = %v, want ErrNotFound", err)
	}
	if err = s.DeleteEntry(ctx, "u1", e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err = s.DeleteEntry(ctx, "u1", e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
	if err = s.DeleteEntry(ctx, "u1", "does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing delete err = %v, want ErrNotFound", err)
	}
}

func TestInsertTranscription(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	rec := Transcription{
		ID:          "t1",
		UserID:      "u1",
		Source:      "http",
		Filename:    "audio.webm",
		ContentType: "audio/webm",
		SizeBytes:   4096,
		Status:      200,
		DurationMs:  812.5,
		CreatedAt:   time.Now(),
	}
	if err := s.InsertTranscription(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.RecentTranscriptions(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].SizeBytes != 4096 || got[0].Status != 200 || got[0].Filename != "audio.webm" {
		t.Errorf("record = %+v", got[0])
	}
}

func TestRebind(t *testing.T) {
	s := &Store{driver: "pgx"}
	got := s.rebind(`UPDATE t SET a = ? WHERE b = ? AND c = ?`)
	want := `UPDATE t SET a = $1 WHERE b = $2 AND c = $3`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	s.driver = "sqlite"
	if got = s.rebind(`a = ?`); got != `a = ?` {
		t.Fatalf("sqlite rebind changed query: %q", got)
	}
}
