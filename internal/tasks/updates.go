package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	CountNotes Phase = iota
	PurgeNotes
	CollectTags
	ExportTag
	WriteManifest
)

func (p Phase) String() string {
	switch p {
	case CountNotes:
		return "count_notes"
	case PurgeNotes:
		return "purge_notes"
	case CollectTags:
		return "collect_tags"
	case ExportTag:
		return "export_tag"
	case WriteManifest:
		return "write_manifest"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func countNotesUpdate(matched int, cutoff string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CountNotes,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d notes created before %s", matched, cutoff),
		Data:    matched,
	}
}

func purgeNotesUpdate(deleted int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PurgeNotes,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Purged %d notes", deleted),
		Data:    deleted,
	}
}

func collectTagsUpdate(tags []string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CollectTags,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Exporting %d tags...", len(tags)),
		Data:    tags,
	}
}

func exportCompletedUpdate(step, total int, tag string, notes int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportTag,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d notes)", step, total, tag, notes),
	}
}

func exportFailedUpdate(step, total int, tag string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportTag,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, tag, err),
	}
}

func manifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Wrote manifest to %s", path),
		Data:    path,
	}
}
