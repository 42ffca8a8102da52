// Package journal holds presentation helpers shared by the journal clients.
package journal

import "time"

const (
	// PreviewLength is how many characters of an entry a list shows.
	PreviewLength = 150
	// RecentLimit is how many entries the recent view shows.
	RecentLimit = 10
)

// FormatDate renders t relative to now: "Today", "Yesterday", "Jan 2" within
// the current year, otherwise "Jan 2, 2006".
func FormatDate(t, now time.Time) string {
	t = t.In(now.Location())
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	day := time.Date(y1, m1, d1, 0, 0, 0, 0, now.Location())
	today := time.Date(y2, m2, d2, 0, 0, 0, 0, now.Location())

	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	case y1 == y2:
		return t.Format("Jan 2")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// FormatTime renders the clock time as "3:04 PM".
func FormatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("3:04 PM")
}

// Truncate shortens s to n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
