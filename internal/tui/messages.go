package tui

import (
	"github.com/hubenschmidt/voice-journal/internal/client"
	"github.com/hubenschmidt/voice-journal/internal/recorder"
	"github.com/hubenschmidt/voice-journal/internal/store"
)

// EntriesLoadedMsg carries a fresh entry listing.
type EntriesLoadedMsg struct {
	List    *client.EntryList
	ShowAll bool
}

// EntrySavedMsg is sent after a create or update succeeds.
type EntrySavedMsg struct {
	Entry   *store.Entry
	Created bool
}

// EntryDeletedMsg is sent after an entry is removed.
type EntryDeletedMsg struct {
	ID string
}

// APIErrorMsg is sent when a server call fails.
type APIErrorMsg struct {
	Err error
}

// RecorderStatusMsg forwards a recorder status change.
type RecorderStatusMsg struct {
	Status recorder.Status
}

// TranscriptMsg carries one transcribed segment.
type TranscriptMsg struct {
	Append recorder.TranscriptAppend
}

// ClearErrorMsg clears a transient error.
type ClearErrorMsg struct{}
