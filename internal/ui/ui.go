package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/recordkit/internal/models"
	"github.com/desertthunder/recordkit/internal/store"
	"github.com/desertthunder/recordkit/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	NoteListView ViewState = iota
	NoteDetailView
	ConfirmDeleteView
	ConfirmPurgeView
	PurgeView
	ResultView
)

// NoteStore is the part of the note controller the TUI uses.
type NoteStore interface {
	FetchAll(ctx context.Context, predicate *store.Predicate, sorts ...store.SortDescriptor) []models.Note
	Fetch(ctx context.Context, id store.ObjectID) (models.Note, bool)
	DeleteObject(ctx context.Context, id store.ObjectID)
	Replace(ctx context.Context, id store.ObjectID, newObject models.Note)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	notes        NoteStore
	engine       *tasks.NoteEngine
	policy       tasks.RetentionPolicy
	width        int
	height       int
	noteList     list.Model
	selected     *models.Note
	status       string
	progressChan chan tasks.ProgressUpdate
	purgeDone    chan Msg
	progress     tasks.ProgressUpdate
	result       *tasks.RetentionResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, notes NoteStore, engine *tasks.NoteEngine, policy tasks.RetentionPolicy) *Model {
	noteList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	noteList.Title = "Notes"

	return &Model{
		ctx:      ctx,
		view:     NoteListView,
		notes:    notes,
		engine:   engine,
		policy:   policy,
		noteList: noteList,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init initializes the TUI by fetching notes.
func (m *Model) Init() tea.Cmd {
	return m.fetchNotes("")
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.noteList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case NoteListView:
			return m.handleListKeys(msg)
		case NoteDetailView:
			return m.handleDetailKeys(msg)
		case ConfirmDeleteView:
			return m.handleConfirmDeleteKeys(msg)
		case ConfirmPurgeView:
			return m.handleConfirmPurgeKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.noteList, cmd = m.noteList.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgNotesFetched:
		data := msg.data.(notesFetched)
		m.err = data.err
		m.status = data.status
		cmd := m.noteList.SetItems(noteItems(data.notes))
		if data.err != nil || m.view == ConfirmDeleteView {
			m.view = NoteListView
		}
		return m, cmd

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgPurgeComplete:
		data := msg.data.(purgeComplete)
		m.result = data.result
		m.err = data.err
		m.progressChan = nil
		m.purgeDone = nil
		m.view = ResultView
		return m, m.fetchNotes("")
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress r to refresh, q to quit", m.err))
	}

	switch m.view {
	case NoteListView:
		return m.renderList()
	case NoteDetailView:
		return m.renderDetail()
	case ConfirmDeleteView:
		return m.renderConfirmDelete()
	case ConfirmPurgeView:
		return m.renderConfirmPurge()
	case PurgeView:
		return m.renderPurge()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.noteList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.noteList, cmd = m.noteList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		m.err = nil
		return m, m.fetchNotes("")
	case key.Matches(msg, m.keys.purge):
		if m.engine != nil {
			m.view = ConfirmPurgeView
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if m.selectCurrent() {
			m.view = NoteDetailView
		}
		return m, nil
	case key.Matches(msg, m.keys.pin):
		if m.selectCurrent() {
			return m, m.togglePin(*m.selected)
		}
		return m, nil
	case key.Matches(msg, m.keys.delete):
		if m.selectCurrent() {
			m.view = ConfirmDeleteView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.noteList, cmd = m.noteList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = NoteListView
	case key.Matches(msg, m.keys.pin):
		return m, m.togglePin(*m.selected)
	case key.Matches(msg, m.keys.delete):
		m.view = ConfirmDeleteView
	}
	return m, nil
}

func (m *Model) handleConfirmDeleteKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		return m, m.deleteNote(*m.selected)
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = NoteListView
	}
	return m, nil
}

func (m *Model) handleConfirmPurgeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = PurgeView
		return m, m.startPurge()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = NoteListView
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.enter):
		m.view = NoteListView
		m.result = nil
		m.err = nil
	}
	return m, nil
}

// selectCurrent records the highlighted note and reports whether there is one.
func (m *Model) selectCurrent() bool {
	item, ok := m.noteList.SelectedItem().(noteItem)
	if !ok {
		return false
	}
	note := item.note
	m.selected = &note
	return true
}

// loadNotes returns every note, pinned first then most recently updated.
func (m *Model) loadNotes() []models.Note {
	return m.notes.FetchAll(m.ctx, nil, store.Desc("pinned"), store.Desc("updated_at"))
}

func (m *Model) fetchNotes(status string) tea.Cmd {
	return func() tea.Msg {
		return notesFetchedMsg(m.loadNotes(), status, nil)
	}
}

func (m *Model) togglePin(note models.Note) tea.Cmd {
	pinned := !note.Pinned
	m.selected.Pinned = pinned
	return func() tea.Msg {
		m.notes.Replace(m.ctx, note.ObjectID(), note.WithPinned(pinned))

		saved, ok := m.notes.Fetch(m.ctx, note.ObjectID())
		if !ok || saved.Pinned != pinned {
			return notesFetchedMsg(m.loadNotes(), "", fmt.Errorf("failed to update %q", note.Title))
		}

		verb := "Unpinned"
		if pinned {
			verb = "Pinned"
		}
		return m.fetchNotes(fmt.Sprintf("%s %q", verb, note.Title))()
	}
}

func (m *Model) deleteNote(note models.Note) tea.Cmd {
	return func() tea.Msg {
		m.notes.DeleteObject(m.ctx, note.ObjectID())

		if _, ok := m.notes.Fetch(m.ctx, note.ObjectID()); ok {
			return notesFetchedMsg(m.loadNotes(), "", fmt.Errorf("failed to delete %q", note.Title))
		}
		return m.fetchNotes(fmt.Sprintf("Deleted %q", note.Title))()
	}
}

func (m *Model) startPurge() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 10)
	done := make(chan Msg, 1)
	m.progressChan = progress
	m.purgeDone = done

	go func() {
		result, err := m.engine.Purge(m.ctx, m.policy, progress)
		close(progress)
		done <- purgeCompleteMsg(result, err)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.purgeDone
	if progress == nil {
		return nil
	}
	return func() tea.Msg {
		if update, ok := <-progress; ok {
			return progressUpdateMsg(update)
		}
		return <-done
	}
}

func (m *Model) renderList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.pin, m.keys.delete, m.keys.purge, m.keys.refresh, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	var status string
	if m.status != "" {
		status = styles.ok.Render(m.status) + "\n"
	}
	return fmt.Sprintf("%s%s\n\n%s", status, m.noteList.View(), helpView)
}

func (m *Model) renderDetail() string {
	n := m.selected
	title := n.Title
	if n.Pinned {
		title = "★ " + title
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(title))
	b.WriteString("\n")
	if len(n.Tags) > 0 {
		b.WriteString(styles.tag.Render(hashTags(n.Tags)))
		b.WriteString("\n\n")
	}
	if n.Body != "" {
		b.WriteString(n.Body)
		b.WriteString("\n\n")
	}
	b.WriteString(styles.help.Render(fmt.Sprintf("created %s • updated %s • id %s",
		n.CreatedAt.Local().Format("2006-01-02 15:04"),
		n.UpdatedAt.Local().Format("2006-01-02 15:04"),
		n.ID,
	)))

	helpKeys := []key.Binding{m.keys.pin, m.keys.delete, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", b.String(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirmDelete() string {
	title := styles.warn.Render(fmt.Sprintf("Delete '%s'?", m.selected.Title))
	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n\n%s", title, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirmPurge() string {
	title := styles.warn.Render("Purge old notes?")

	info := fmt.Sprintf("\nNotes created more than %s ago will be deleted.", m.policy.MaxAge)
	if m.policy.KeepPinned {
		info += "\nPinned notes are kept."
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderPurge() string {
	title := styles.title.Render("Purging Notes")

	var phase string
	switch m.progress.Phase {
	case tasks.CountNotes:
		phase = "Counting old notes..."
	case tasks.PurgeNotes:
		phase = "Deleting..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Purge failed: %v\n\nPress esc to go back, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress esc to go back, q to quit")
	}

	title := styles.ok.Render("✓ Purge Complete!")
	info := fmt.Sprintf(
		"\nCutoff: %s\nDeleted: %d\nRemaining: %d",
		m.result.Cutoff.Local().Format("2006-01-02 15:04"),
		m.result.Deleted,
		m.result.Remaining,
	)

	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, m.help.ShortHelpView(helpKeys))
}
