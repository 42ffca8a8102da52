// Package tui is the terminal journal: an entry list and an editor that
// dictation appends to.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hubenschmidt/voice-journal/internal/client"
	"github.com/hubenschmidt/voice-journal/internal/journal"
	"github.com/hubenschmidt/voice-journal/internal/recorder"
	"github.com/hubenschmidt/voice-journal/internal/store"
)

const requestTimeout = 15 * time.Second

const msgEmptyEntry = "Entry cannot be empty"

// API is the subset of the journal client the UI needs.
type API interface {
	ListEntries(ctx context.Context, recent bool) (*client.EntryList, error)
	CreateEntry(ctx context.Context, content string) (*store.Entry, error)
	UpdateEntry(ctx context.Context, id, content string) (*store.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
}

// Recorder is the subset of recorder.Controller the UI drives.
type Recorder interface {
	Start(ctx context.Context)
	Stop()
	Status() recorder.Status
}

// Mode is which screen has focus.
type Mode int

const (
	ModeList Mode = iota
	ModeEdit
)

// Model is the root bubbletea model.
type Model struct {
	api API
	rec Recorder

	mode     Mode
	entries  []store.Entry
	total    int
	showAll  bool
	selected int

	// Editor
	editor    []rune
	editingID string

	status       recorder.Status
	errorMessage string
	statusText   string

	width  int
	height int
	now    func() time.Time
}

// New creates a model in list mode.
func New(api API, rec Recorder) Model {
	return Model{
		api:        api,
		rec:        rec,
		statusText: "Loading entries...",
		now:        time.Now,
	}
}

// Init loads the recent entries.
func (m Model) Init() tea.Cmd {
	return loadEntriesCmd(m.api, false)
}

func loadEntriesCmd(api API, showAll bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		list, err := api.ListEntries(ctx, !showAll)
		if err != nil {
			return APIErrorMsg{Err: fmt.Errorf("load entries: %w", err)}
		}
		return EntriesLoadedMsg{List: list, ShowAll: showAll}
	}
}

func saveEntryCmd(api API, id, content string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if id == "" {
			e, err := api.CreateEntry(ctx, content)
			if err != nil {
				return APIErrorMsg{Err: fmt.Errorf("save entry: %w", err)}
			}
			return EntrySavedMsg{Entry: e, Created: true}
		}
		e, err := api.UpdateEntry(ctx, id, content)
		if err != nil {
			return APIErrorMsg{Err: fmt.Errorf("update entry: %w", err)}
		}
		return EntrySavedMsg{Entry: e}
	}
}

func deleteEntryCmd(api API, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := api.DeleteEntry(ctx, id); err != nil {
			return APIErrorMsg{Err: fmt.Errorf("delete entry: %w", err)}
		}
		return EntryDeletedMsg{ID: id}
	}
}

// startRecordingCmd runs Start off the update loop; status arrives through
// the Sink.
func startRecordingCmd(rec Recorder) tea.Cmd {
	return func() tea.Msg {
		rec.Start(context.Background())
		return nil
	}
}

func stopRecordingCmd(rec Recorder) tea.Cmd {
	return func() tea.Msg {
		rec.Stop()
		return nil
	}
}

func clearErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearErrorMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		if m.mode == ModeEdit {
			return m.handleEditKey(msg)
		}
		return m.handleListKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case EntriesLoadedMsg:
		m.entries = msg.List.Entries
		m.total = msg.List.Total
		m.showAll = msg.ShowAll
		m.selected = min(m.selected, max(0, len(m.entries)-1))
		m.statusText = fmt.Sprintf("%d entries", m.total)
		return m, nil

	case EntrySavedMsg:
		m.mode = ModeList
		m.editor = nil
		m.editingID = ""
		m.selected = 0
		m.statusText = "Entry saved"
		return m, loadEntriesCmd(m.api, m.showAll)

	case EntryDeletedMsg:
		m.statusText = "Entry deleted"
		return m, loadEntriesCmd(m.api, m.showAll)

	case APIErrorMsg:
		m.errorMessage = msg.Err.Error()
		return m, clearErrorCmd()

	case RecorderStatusMsg:
		m.status = msg.Status
		if msg.Status.Error != "" {
			m.errorMessage = msg.Status.Error
		}
		return m, nil

	case TranscriptMsg:
		// Segments finishing after the editor closed are dropped.
		if m.mode == ModeEdit {
			m.editor = append(m.editor, []rune(msg.Append.String())...)
		}
		return m, nil

	case ClearErrorMsg:
		m.errorMessage = ""
		return m, nil
	}

	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyCtrlC:
		return m, tea.Quit

	case KeyUp, KeyK:
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case KeyDown, KeyJ:
		if m.selected < len(m.entries)-1 {
			m.selected++
		}
		return m, nil

	case KeyNew:
		m.openEditor("", "")
		return m, nil

	case KeyEnter:
		if m.selected < len(m.entries) {
			e := m.entries[m.selected]
			m.openEditor(e.ID, e.Content)
		}
		return m, nil

	case KeyDelete:
		if m.selected < len(m.entries) {
			return m, deleteEntryCmd(m.api, m.entries[m.selected].ID)
		}
		return m, nil

	case KeyReload:
		return m, loadEntriesCmd(m.api, m.showAll)

	case KeyToggleAll:
		return m, loadEntriesCmd(m.api, !m.showAll)
	}
	return m, nil
}

func (m Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyCtrlC:
		return m, m.afterStop(tea.Quit)

	case KeyRecord:
		if m.rec == nil {
			return m, nil
		}
		if m.status.Recording {
			return m, stopRecordingCmd(m.rec)
		}
		m.errorMessage = ""
		return m, startRecordingCmd(m.rec)

	case KeySave:
		content := strings.TrimSpace(string(m.editor))
		if content == "" {
			m.errorMessage = msgEmptyEntry
			return m, clearErrorCmd()
		}
		return m, m.afterStop(saveEntryCmd(m.api, m.editingID, content))

	case KeyCancel:
		stop := m.stopIfRecording()
		m.mode = ModeList
		m.editor = nil
		m.editingID = ""
		return m, stop

	case KeyBackspace:
		if n := len(m.editor); n > 0 {
			m.editor = m.editor[:n-1]
		}
		return m, nil

	case KeyEnter:
		m.editor = append(m.editor, '\n')
		return m, nil
	}

	switch msg.Type {
	case tea.KeyRunes:
		m.editor = append(m.editor, msg.Runes...)
	case tea.KeySpace:
		m.editor = append(m.editor, ' ')
	case tea.KeyTab:
		m.editor = append(m.editor, '\t')
	}
	return m, nil
}

func (m *Model) openEditor(id, content string) {
	m.mode = ModeEdit
	m.editingID = id
	m.editor = []rune(content)
	m.errorMessage = ""
}

func (m Model) stopIfRecording() tea.Cmd {
	if m.rec == nil || !m.status.Recording {
		return nil
	}
	return stopRecordingCmd(m.rec)
}

// afterStop runs next after stopping an active recording.
func (m Model) afterStop(next tea.Cmd) tea.Cmd {
	if stop := m.stopIfRecording(); stop != nil {
		return tea.Sequence(stop, next)
	}
	return next
}

// Editor returns the editor buffer.
func (m Model) Editor() string { return string(m.editor) }

// View renders the current screen.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	if m.mode == ModeEdit {
		b.WriteString(m.renderEditor())
	} else {
		b.WriteString(m.renderList())
	}
	b.WriteString("\n")
	if m.errorMessage != "" {
		b.WriteString(errorStyle.Render(m.errorMessage))
		b.WriteString("\n")
	}
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("Journal")
	var state string
	switch {
	case m.status.Recording:
		state = recordingDotStyle.Render("● REC")
	case m.status.State == recorder.StateStopping:
		state = statusStyle.Render("stopping")
	default:
		state = statusStyle.Render(m.statusText)
	}
	if m.status.Processing {
		state += " " + processingStyle.Render("transcribing...")
	}
	return title + "  " + state
}

func (m Model) renderList() string {
	if len(m.entries) == 0 {
		return dimStyle.Render("No entries yet. Press n to write one.") + "\n"
	}
	now := m.now()
	var b strings.Builder
	for i, e := range m.entries {
		stamp := journal.FormatDate(e.CreatedAt, now) + " " + journal.FormatTime(e.CreatedAt, now.Location())
		preview := journal.Truncate(strings.ReplaceAll(e.Content, "\n", " "), journal.PreviewLength)
		line := fmt.Sprintf("%-18s %s", stamp, preview)
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	if !m.showAll && m.total > len(m.entries) {
		b.WriteString(dimStyle.Render(fmt.Sprintf("Showing %d most recent entries", journal.RecentLimit)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderEditor() string {
	label := "New entry"
	if m.editingID != "" {
		label = "Edit entry"
	}
	style := editorStyle
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return savedStyle.Render(label) + "\n" + style.Render(string(m.editor)+"█") + "\n"
}

func (m Model) renderFooter() string {
	type binding struct{ key, desc string }
	bindings := []binding{
		{"↑/↓", "select"}, {"enter", "edit"}, {"n", "new"}, {"d", "delete"},
		{"a", "all/recent"}, {"q", "quit"},
	}
	if m.mode == ModeEdit {
		bindings = []binding{
			{"ctrl+r", "record"}, {"ctrl+s", "save"}, {"esc", "cancel"},
		}
	}
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		parts = append(parts, footerKeyStyle.Render(kb.key)+" "+footerDescStyle.Render(kb.desc))
	}
	return strings.Join(parts, "  ")
}
