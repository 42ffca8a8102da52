package env

import (
	"testing"
	"time"
)

func TestStr(t *testing.T) {
	t.Setenv("JOURNAL_TEST_STR", "")
	if got := Str("JOURNAL_TEST_STR", "fallback"); got != "fallback" {
		t.Errorf("Str(empty) = %q, want %q", got, "fallback")
	}
	t.Setenv("JOURNAL_TEST_STR", "set")
	if got := Str("JOURNAL_TEST_STR", "fallback"); got != "set" {
		t.Errorf("Str(set) = %q, want %q", got, "set")
	}
}

func TestIntMalformedFallsBack(t *testing.T) {
	t.Setenv("JOURNAL_TEST_INT", "twelve")
	if got := Int("JOURNAL_TEST_INT", 7); got != 7 {
		t.Errorf("Int(malformed) = %d, want 7", got)
	}
	t.Setenv("JOURNAL_TEST_INT", "12")
	if got := Int("JOURNAL_TEST_INT", 7); got != 12 {
		t.Errorf("Int = %d, want 12", got)
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("JOURNAL_TEST_DUR", "250ms")
	if got := Duration("JOURNAL_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Errorf("Duration = %v, want 250ms", got)
	}
	t.Setenv("JOURNAL_TEST_DUR", "soon")
	if got := Duration("JOURNAL_TEST_DUR", time.Second); got != time.Second {
		t.Errorf("Duration(malformed) = %v, want 1s", got)
	}
}
