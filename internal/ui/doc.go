// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI browses the note store through the note controller:
//  1. [NoteListView] : Browse, filter and pin notes
//  2. [NoteDetailView] : Read one note
//  3. [ConfirmDeleteView] : Confirm deleting the selected note
//  4. [ConfirmPurgeView] : Confirm a retention purge
//  5. [PurgeView] : Monitor real-time purge progress
//  6. [ResultView] : Display how many notes the purge removed
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Purge progress flows through a channel from the NoteEngine, providing non-blocking status reporting.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
