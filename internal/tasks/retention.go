package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/recordkit/internal/models"
	"github.com/desertthunder/recordkit/internal/shared"
	"github.com/desertthunder/recordkit/internal/store"
)

// NoteStore is the part of the note controller the jobs use.
type NoteStore interface {
	FetchAll(ctx context.Context, predicate *store.Predicate, sorts ...store.SortDescriptor) []models.Note
	CountAll(ctx context.Context, predicate *store.Predicate) int
	DeleteAll(ctx context.Context, predicate *store.Predicate) int
}

// RetentionPolicy decides which notes a purge removes.
type RetentionPolicy struct {
	MaxAge     time.Duration // Notes created more than MaxAge ago are purged
	KeepPinned bool          // Pinned notes survive regardless of age
	DryRun     bool          // Count matches without deleting them
}

// NewRetentionPolicy builds a policy from the retention config section.
func NewRetentionPolicy(config shared.RetentionConfig) RetentionPolicy {
	return RetentionPolicy{MaxAge: config.MaxAge, KeepPinned: config.KeepPinned}
}

// Filter returns the note filter matching notes the policy purges at now.
func (p RetentionPolicy) Filter(now time.Time) models.NoteFilter {
	filter := models.NoteFilter{CreatedBefore: now.Add(-p.MaxAge).UTC()}
	if p.KeepPinned {
		unpinned := false
		filter.Pinned = &unpinned
	}
	return filter
}

// RetentionResult reports the outcome of a purge.
type RetentionResult struct {
	Cutoff    time.Time `json:"cutoff"`
	Matched   int       `json:"matched"`
	Deleted   int       `json:"deleted"`
	Remaining int       `json:"remaining"`
	DryRun    bool      `json:"dry_run"`
}

// NoteEngine runs maintenance jobs against a note store.
type NoteEngine struct {
	notes  NoteStore
	logger *log.Logger
	now    func() time.Time
}

// NewNoteEngine creates a [NoteEngine]. A nil logger discards output.
func NewNoteEngine(notes NoteStore, logger *log.Logger) *NoteEngine {
	if logger == nil {
		logger = log.New(nil)
	}
	return &NoteEngine{notes: notes, logger: logger.WithPrefix("tasks"), now: time.Now}
}

// Purge deletes the notes the policy matches and reports how many went.
func (e *NoteEngine) Purge(ctx context.Context, policy RetentionPolicy, progress chan<- ProgressUpdate) (*RetentionResult, error) {
	if e.notes == nil {
		return nil, fmt.Errorf("%w: note store not initialized", shared.ErrDatabaseUnavailable)
	}
	if policy.MaxAge <= 0 {
		return nil, fmt.Errorf("%w: retention max age must be positive", shared.ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filter := policy.Filter(e.now())
	predicate := filter.Predicate()
	result := &RetentionResult{Cutoff: filter.CreatedBefore, DryRun: policy.DryRun}

	result.Matched = e.notes.CountAll(ctx, predicate)
	sendProgress(progress, countNotesUpdate(result.Matched, result.Cutoff.Format(time.RFC3339)))

	if !policy.DryRun && result.Matched > 0 {
		result.Deleted = e.notes.DeleteAll(ctx, predicate)
		sendProgress(progress, purgeNotesUpdate(result.Deleted))
	}

	result.Remaining = e.notes.CountAll(ctx, nil)
	e.logger.Info("retention purge finished",
		"cutoff", result.Cutoff.Format(time.RFC3339),
		"matched", result.Matched,
		"deleted", result.Deleted,
		"remaining", result.Remaining,
		"dry_run", result.DryRun,
	)
	return result, nil
}
