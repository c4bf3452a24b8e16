package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/recordkit/internal/models"
)

var _ list.Item = noteItem{}

// noteItem wraps [models.Note] to implement [list.Item].
type noteItem struct {
	note models.Note
}

func (i noteItem) FilterValue() string {
	return i.note.Title + " " + strings.Join(i.note.Tags, " ")
}

func (i noteItem) Title() string {
	if i.note.Pinned {
		return "★ " + i.note.Title
	}
	return i.note.Title
}

func (i noteItem) Description() string {
	desc := "updated " + i.note.UpdatedAt.Local().Format("2006-01-02 15:04")
	if len(i.note.Tags) > 0 {
		desc = fmt.Sprintf("%s • %s", hashTags(i.note.Tags), desc)
	}
	return desc
}

func hashTags(tags []string) string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = "#" + tag
	}
	return strings.Join(out, " ")
}

func noteItems(notes []models.Note) []list.Item {
	items := make([]list.Item, len(notes))
	for i, note := range notes {
		items[i] = noteItem{note: note}
	}
	return items
}
