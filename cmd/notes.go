package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/recordkit/internal/formatter"
	"github.com/desertthunder/recordkit/internal/models"
	"github.com/desertthunder/recordkit/internal/shared"
	"github.com/desertthunder/recordkit/internal/store"
	"github.com/desertthunder/recordkit/internal/tasks"
)

// NotesAdd saves a new note.
func (r *Runner) NotesAdd(ctx context.Context, cmd *cli.Command) error {
	title := strings.TrimSpace(cmd.StringArg("title"))
	if title == "" {
		return fmt.Errorf("%w: title is required", shared.ErrMissingArgument)
	}

	note := models.NewNote(title, cmd.String("body"), cmd.StringSlice("tag")...)
	note.Pinned = cmd.Bool("pinned")
	if err := note.Validate(); err != nil {
		return err
	}

	if err := r.open(); err != nil {
		return err
	}

	r.notes.Save(ctx, note)
	saved, ok := r.notes.Fetch(ctx, note.ObjectID())
	if !ok {
		return fmt.Errorf("failed to save note %q", title)
	}

	if cmd.Bool("json") {
		return r.writeJSON(saved, cmd.Bool("pretty"))
	}
	return r.writePlain("✓ Added note %s\n", saved.ID)
}

// NotesList prints notes matching the filters.
func (r *Runner) NotesList(ctx context.Context, cmd *cli.Command) error {
	sort, err := models.ParseNoteSort(cmd.String("sort"), !cmd.Bool("asc"))
	if err != nil {
		return err
	}

	limit, offset := cmd.Int("limit"), cmd.Int("offset")
	if limit < 0 || offset < 0 {
		return fmt.Errorf("%w: --limit and --offset cannot be negative", shared.ErrInvalidFlag)
	}

	if err := r.open(); err != nil {
		return err
	}

	predicate := filterFromCommand(cmd, time.Now()).Predicate()
	notes := r.notes.FetchPage(ctx, predicate, limit, offset, sort)
	total := r.notes.CountAll(ctx, predicate)

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"notes": notes, "total": total}, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Notes (%d of %d)", len(notes), total))
	for _, note := range notes {
		r.writeNoteLine(note)
	}
	return nil
}

// NotesShow prints one note.
func (r *Runner) NotesShow(ctx context.Context, cmd *cli.Command) error {
	id, err := noteIDArg(cmd)
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	note, ok := r.notes.Fetch(ctx, id)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrNoteNotFound, id.Key)
	}

	if cmd.Bool("json") {
		return r.writeJSON(note, cmd.Bool("pretty"))
	}

	title := note.Title
	if note.Pinned {
		title += " ★"
	}
	r.writePlainHeader(title)
	r.writePlain("ID:      %s\n", note.ID)
	if len(note.Tags) > 0 {
		r.writePlain("Tags:    %s\n", strings.Join(note.Tags, ", "))
	}
	r.writePlain("Created: %s\n", note.CreatedAt.Local().Format(time.RFC3339))
	r.writePlain("Updated: %s\n", note.UpdatedAt.Local().Format(time.RFC3339))
	if note.Body != "" {
		r.writePlainln("%s", note.Body)
	}
	return nil
}

// NotesCount prints how many notes match the filters.
func (r *Runner) NotesCount(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	n := r.notes.CountAll(ctx, filterFromCommand(cmd, time.Now()).Predicate())
	return r.writePlain("%d\n", n)
}

// NotesDelete removes one note.
func (r *Runner) NotesDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := noteIDArg(cmd)
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	if _, ok := r.notes.Fetch(ctx, id); !ok {
		return fmt.Errorf("%w: %s", shared.ErrNoteNotFound, id.Key)
	}

	r.notes.DeleteObject(ctx, id)
	if _, ok := r.notes.Fetch(ctx, id); ok {
		return fmt.Errorf("failed to delete note %s", id.Key)
	}
	return r.writePlain("✓ Deleted note %s\n", id.Key)
}

// NotesPurge batch deletes every note matching the filters.
func (r *Runner) NotesPurge(ctx context.Context, cmd *cli.Command) error {
	filter := filterFromCommand(cmd, time.Now())
	if filter.IsEmpty() && !cmd.Bool("all") {
		return fmt.Errorf("%w: pass a filter or --all", shared.ErrUnfilteredDelete)
	}
	if err := r.open(); err != nil {
		return err
	}

	n := r.notes.DeleteAll(ctx, filter.Predicate())
	r.logger.Info("purged notes", "count", n, "filter", filter.Predicate().String())
	return r.writePlain("✓ Deleted %d notes\n", n)
}

// NotesReplace swaps a note for an edited copy, keeping its id and creation time.
func (r *Runner) NotesReplace(ctx context.Context, cmd *cli.Command) error {
	id, err := noteIDArg(cmd)
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	existing, ok := r.notes.Fetch(ctx, id)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrNoteNotFound, id.Key)
	}

	replacement := existing
	if cmd.IsSet("title") {
		replacement.Title = strings.TrimSpace(cmd.String("title"))
	}
	if cmd.IsSet("body") {
		replacement.Body = cmd.String("body")
	}
	if cmd.IsSet("tag") {
		replacement.Tags = models.NormalizeTags(cmd.StringSlice("tag"))
	}
	if cmd.IsSet("pinned") {
		replacement.Pinned = cmd.Bool("pinned")
	}
	replacement.UpdatedAt = time.Now().UTC()

	if err := replacement.Validate(); err != nil {
		return err
	}

	r.notes.Replace(ctx, id, replacement)
	saved, ok := r.notes.Fetch(ctx, id)
	if !ok || saved.Title != replacement.Title {
		return fmt.Errorf("failed to replace note %s", id.Key)
	}

	if cmd.Bool("json") {
		return r.writeJSON(saved, cmd.Bool("pretty"))
	}
	return r.writePlain("✓ Replaced note %s\n", saved.ID)
}

// NotesExport writes matching notes to a file, or one file per tag with --by-tag.
func (r *Runner) NotesExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	if cmd.Bool("by-tag") {
		return r.bulkExport(ctx, cmd, format)
	}

	filter := filterFromCommand(cmd, time.Now())
	predicate := filter.Predicate()
	notes := r.notes.FetchAll(ctx, predicate, store.Desc("created_at"))

	var described string
	if !filter.IsEmpty() {
		described = predicate.String()
	}

	export := formatter.NewNoteExport("Notes", described, notes)
	path, err := formatter.WriteExport(export, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("exported notes", "count", len(notes), "path", path)
	return r.writePlain("✓ Exported %d notes to %s\n", len(notes), path)
}

func (r *Runner) bulkExport(ctx context.Context, cmd *cli.Command, format formatter.Format) error {
	var tags []string
	if tag := cmd.String("tag"); tag != "" {
		tags = []string{tag}
	}

	progress := make(chan tasks.ProgressUpdate, 20)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase)
		}
	}()

	result, err := r.engine.BulkExport(ctx, progress, tasks.BulkExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		Tags:       tags,
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	})
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlainHeader("Export Summary")
	r.writePlain("Directory: %s\n", result.OutputDir)
	r.writePlain("Tags:      %d (%d failed)\n", result.TotalTags, result.FailedExports)
	for _, res := range result.Results {
		if res.Error != nil {
			r.writePlain("  ✗ #%s: %v\n", res.Tag, res.Error)
			continue
		}
		r.writePlain("  ✓ #%s → %s (%d notes)\n", res.Tag, res.File, res.Notes)
	}
	r.writePlain("Manifest:  %s\n", result.ManifestPath)
	return nil
}

func (r *Runner) writeNoteLine(note models.Note) {
	marker := " "
	if note.Pinned {
		marker = "★"
	}
	r.writePlain("%s %s  [%s]\n", marker, note.Title, note.ID)

	details := "updated " + note.UpdatedAt.Local().Format("2006-01-02 15:04")
	if len(note.Tags) > 0 {
		details = "#" + strings.Join(note.Tags, " #") + " • " + details
	}
	r.writePlain("  %s\n", details)
}

// filterFromCommand reads the shared filter flags.
func filterFromCommand(cmd *cli.Command, now time.Time) models.NoteFilter {
	filter := models.NoteFilter{
		Search: cmd.String("search"),
		Tag:    cmd.String("tag"),
	}
	if cmd.IsSet("pinned") {
		pinned := cmd.Bool("pinned")
		filter.Pinned = &pinned
	}
	if age := cmd.Duration("older-than"); age > 0 {
		filter.CreatedBefore = now.Add(-age).UTC()
	}
	return filter
}

// noteIDArg reads the id argument as a bare key or a full object id.
func noteIDArg(cmd *cli.Command) (store.ObjectID, error) {
	raw := strings.TrimSpace(cmd.StringArg("id"))
	if raw == "" {
		return store.ObjectID{}, fmt.Errorf("%w: note id is required", shared.ErrMissingArgument)
	}

	if id, err := store.ParseObjectID(raw); err == nil {
		if id.Entity != models.NoteEntityName {
			return store.ObjectID{}, fmt.Errorf("%w: %s is not a note id", shared.ErrInvalidArgument, raw)
		}
		return id, nil
	}
	return store.NewObjectID(models.NoteEntityName, raw), nil
}
