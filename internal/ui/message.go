package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/recordkit/internal/models"
	"github.com/desertthunder/recordkit/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgNotesFetched MsgKind = iota
	MsgProgressUpdate
	MsgPurgeComplete
)

type notesFetched struct {
	notes  []models.Note
	status string
	err    error
}

type purgeComplete struct {
	result *tasks.RetentionResult
	err    error
}

// notesFetchedMsg is the constructor for [MsgNotesFetched]. status is shown above the list.
func notesFetchedMsg(notes []models.Note, status string, err error) Msg {
	return Msg{kind: MsgNotesFetched, data: notesFetched{notes, status, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// purgeCompleteMsg is the constructor for [MsgPurgeComplete]
func purgeCompleteMsg(result *tasks.RetentionResult, err error) Msg {
	return Msg{kind: MsgPurgeComplete, data: purgeComplete{result, err}}
}
