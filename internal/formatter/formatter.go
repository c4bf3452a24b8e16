// package formatter provides functions to export notes to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/recordkit/internal/models"
	"github.com/desertthunder/recordkit/internal/shared"
)

// Format names an export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "plain", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidFlag, s)
	}
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatMarkdown:
		return "md"
	case FormatJSON:
		return "json"
	default:
		return "txt"
	}
}

// NoteExport is a titled set of notes captured at one point in time.
type NoteExport struct {
	Title      string        `json:"title"`
	Filter     string        `json:"filter,omitempty"` // Filter describes the predicate the notes were fetched with
	ExportedAt time.Time     `json:"exported_at"`
	Notes      []models.Note `json:"notes"`
}

// NewNoteExport wraps notes for export, stamped with the current time.
func NewNoteExport(title, filter string, notes []models.Note) *NoteExport {
	if title == "" {
		title = "Notes"
	}
	return &NoteExport{Title: title, Filter: filter, ExportedAt: time.Now().UTC(), Notes: notes}
}

// Export renders export in format.
func Export(export *NoteExport, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatJSON:
		return ExportToJSON(export)
	default:
		return ExportToText(export)
	}
}

// ExportToCSV converts a NoteExport to CSV format with columns: ID, Title, Body, Tags, Pinned, Created, Updated
func ExportToCSV(export *NoteExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Body", "Tags", "Pinned", "Created", "Updated"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, note := range export.Notes {
		record := []string{
			note.ID,
			note.Title,
			note.Body,
			strings.Join(note.Tags, ";"),
			strconv.FormatBool(note.Pinned),
			note.CreatedAt.UTC().Format(time.RFC3339),
			note.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a NoteExport to Markdown with one section per note
func ExportToMarkdown(export *NoteExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", export.Title))

	if export.Filter != "" {
		buf.WriteString(fmt.Sprintf("**Filter**: `%s`\n", export.Filter))
	}
	buf.WriteString(fmt.Sprintf("**Notes**: %d\n", len(export.Notes)))
	buf.WriteString(fmt.Sprintf("**Exported**: %s\n\n", export.ExportedAt.UTC().Format(time.RFC3339)))

	for _, note := range export.Notes {
		marker := ""
		if note.Pinned {
			marker = " (pinned)"
		}
		buf.WriteString(fmt.Sprintf("## %s%s\n\n", note.Title, marker))

		if len(note.Tags) > 0 {
			tags := make([]string, len(note.Tags))
			for i, tag := range note.Tags {
				tags[i] = "`#" + tag + "`"
			}
			buf.WriteString(strings.Join(tags, " ") + "\n\n")
		}

		if body := strings.TrimSpace(note.Body); body != "" {
			buf.WriteString(body + "\n\n")
		}

		buf.WriteString(fmt.Sprintf("_Created %s, updated %s_\n\n",
			note.CreatedAt.UTC().Format(time.DateOnly), note.UpdatedAt.UTC().Format(time.DateOnly)))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a NoteExport to plain text format
func ExportToText(export *NoteExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%s\n", export.Title))
	if export.Filter != "" {
		buf.WriteString(fmt.Sprintf("Filter: %s\n", export.Filter))
	}
	buf.WriteString(fmt.Sprintf("Notes: %d\n\n", len(export.Notes)))

	for i, note := range export.Notes {
		pin := ""
		if note.Pinned {
			pin = " *"
		}
		buf.WriteString(fmt.Sprintf("%d. %s%s\n", i+1, note.Title, pin))
		if len(note.Tags) > 0 {
			buf.WriteString(fmt.Sprintf("   tags: %s\n", strings.Join(note.Tags, ", ")))
		}
		buf.WriteString(fmt.Sprintf("   id: %s\n", note.ID))
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders the export as indented JSON
func ExportToJSON(export *NoteExport) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteExport renders export in format and writes it to path.
//
// Defaults to notes.{ext} in the working directory and creates missing parent directories.
func WriteExport(export *NoteExport, format Format, path string) (string, error) {
	if path == "" {
		path = "notes." + format.Extension()
	}

	data, err := Export(export, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s export: %w", format, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}
