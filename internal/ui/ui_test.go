package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/recordkit/internal/models"
	"github.com/desertthunder/recordkit/internal/tasks"
	th "github.com/desertthunder/recordkit/internal/testing"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// newTestModel returns a model over two notes, "Old" created 90 days ago and "Fresh" created now and pinned.
func newTestModel(t *testing.T) (*Model, *th.NoteController) {
	t.Helper()
	ctx := context.Background()
	ctrl := th.NewNoteController(t)

	old := models.NewNote("Old", "from last season", "archive")
	old.CreatedAt = old.CreatedAt.Add(-90 * 24 * time.Hour)
	old.UpdatedAt = old.CreatedAt
	fresh := models.NewNote("Fresh", "written today", "todo", "home").WithPinned(true)
	ctrl.SaveAll(ctx, []models.Note{old, fresh})

	engine := tasks.NewNoteEngine(ctrl, nil)
	m := NewModel(ctx, ctrl, engine, tasks.RetentionPolicy{MaxAge: 30 * 24 * time.Hour, KeepPinned: true})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	update(t, m, m.Init())
	return m, ctrl
}

// update runs cmd and feeds its message back into the model, following returned commands until quiet.
func update(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for range 20 {
		if cmd == nil {
			return
		}
		msg := cmd()
		if _, ok := msg.(Msg); !ok {
			return
		}
		_, cmd = m.Update(msg)
	}
	t.Fatal("model did not settle")
}

func press(t *testing.T, m *Model, msg tea.KeyMsg) {
	t.Helper()
	_, cmd := m.Update(msg)
	update(t, m, cmd)
}

func titles(m *Model) []string {
	var out []string
	for _, item := range m.noteList.Items() {
		out = append(out, item.(noteItem).note.Title)
	}
	return out
}

func TestModel(t *testing.T) {
	t.Run("Init loads pinned notes first", func(t *testing.T) {
		m, _ := newTestModel(t)

		got := titles(m)
		if len(got) != 2 || got[0] != "Fresh" || got[1] != "Old" {
			t.Errorf("expected [Fresh Old], got %v", got)
		}
		if m.view != NoteListView {
			t.Errorf("expected list view, got %d", m.view)
		}
		if !strings.Contains(m.View(), "Notes") {
			t.Error("expected list title in view")
		}
	})

	t.Run("detail view", func(t *testing.T) {
		m, _ := newTestModel(t)

		press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != NoteDetailView {
			t.Fatalf("expected detail view, got %d", m.view)
		}

		view := m.View()
		for _, want := range []string{"Fresh", "written today", "#home #todo"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected detail view to contain %q", want)
			}
		}

		press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != NoteListView {
			t.Errorf("expected list view after esc, got %d", m.view)
		}
	})

	t.Run("toggle pin", func(t *testing.T) {
		m, ctrl := newTestModel(t)
		id := m.noteList.Items()[0].(noteItem).note.ObjectID()

		press(t, m, runes("p"))

		note, ok := ctrl.Fetch(context.Background(), id)
		if !ok {
			t.Fatal("expected note to survive the replace")
		}
		if note.Pinned {
			t.Error("expected note to be unpinned")
		}
		if !strings.Contains(m.status, "Unpinned") {
			t.Errorf("expected unpinned status, got %q", m.status)
		}
		if len(m.noteList.Items()) != 2 {
			t.Errorf("expected 2 notes, got %d", len(m.noteList.Items()))
		}
	})

	t.Run("delete requires confirmation", func(t *testing.T) {
		m, ctrl := newTestModel(t)
		ctx := context.Background()

		press(t, m, runes("d"))
		if m.view != ConfirmDeleteView {
			t.Fatalf("expected confirm view, got %d", m.view)
		}
		if !strings.Contains(m.View(), "Delete 'Fresh'?") {
			t.Error("expected confirmation prompt")
		}

		press(t, m, runes("n"))
		if m.view != NoteListView || ctrl.CountAll(ctx, nil) != 2 {
			t.Fatal("expected cancel to keep both notes")
		}

		press(t, m, runes("d"))
		press(t, m, runes("y"))

		if n := ctrl.CountAll(ctx, nil); n != 1 {
			t.Errorf("expected 1 note after delete, got %d", n)
		}
		if m.view != NoteListView {
			t.Errorf("expected list view after delete, got %d", m.view)
		}
		if got := titles(m); len(got) != 1 || got[0] != "Old" {
			t.Errorf("expected [Old], got %v", got)
		}
	})

	t.Run("purge", func(t *testing.T) {
		m, ctrl := newTestModel(t)

		press(t, m, runes("x"))
		if m.view != ConfirmPurgeView {
			t.Fatalf("expected purge confirmation, got %d", m.view)
		}
		if !strings.Contains(m.View(), "Pinned notes are kept") {
			t.Error("expected keep pinned notice")
		}

		press(t, m, runes("y"))
		if m.view != ResultView {
			t.Fatalf("expected result view, got %d", m.view)
		}
		if m.result == nil || m.result.Deleted != 1 || m.result.Remaining != 1 {
			t.Fatalf("expected 1 deleted and 1 remaining, got %+v", m.result)
		}
		if !strings.Contains(m.View(), "Purge Complete") {
			t.Error("expected completion message")
		}
		if n := ctrl.CountAll(context.Background(), nil); n != 1 {
			t.Errorf("expected 1 note in store, got %d", n)
		}

		press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != NoteListView || m.result != nil {
			t.Error("expected esc to return to the list")
		}
		if got := titles(m); len(got) != 1 || got[0] != "Fresh" {
			t.Errorf("expected [Fresh], got %v", got)
		}
	})

	t.Run("purge needs an engine", func(t *testing.T) {
		ctrl := th.NewNoteController(t)
		m := NewModel(context.Background(), ctrl, nil, tasks.RetentionPolicy{})

		press(t, m, runes("x"))
		if m.view != NoteListView {
			t.Errorf("expected purge to be ignored, got view %d", m.view)
		}
	})

	t.Run("quit", func(t *testing.T) {
		m, _ := newTestModel(t)

		_, cmd := m.Update(runes("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})
}

func TestNoteItem(t *testing.T) {
	note := models.NewNote("Groceries", "", "home", "todo").WithPinned(true)
	item := noteItem{note: note}

	if item.Title() != "★ Groceries" {
		t.Errorf("unexpected title %q", item.Title())
	}
	if !strings.HasPrefix(item.Description(), "#home #todo • updated ") {
		t.Errorf("unexpected description %q", item.Description())
	}
	if item.FilterValue() != "Groceries home todo" {
		t.Errorf("unexpected filter value %q", item.FilterValue())
	}
}
