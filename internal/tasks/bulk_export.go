package tasks

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/recordkit/internal/formatter"
	"github.com/desertthunder/recordkit/internal/models"
	"github.com/desertthunder/recordkit/internal/shared"
	"github.com/desertthunder/recordkit/internal/store"
)

const manifestName = "export_manifest.json"

// BulkExportOpts contains configuration for per-tag exports.
type BulkExportOpts struct {
	Format     formatter.Format // Export format: csv, markdown, text, json
	OutputDir  string           // Base output directory (default: notes_export_{epoch})
	Tags       []string         // Tags to export (default: every tag in use)
	NumWorkers int              // Concurrent workers (default: 4)
	RateLimit  float64          // Exports started per second, 0 for unlimited
}

// TagExportJob is one unit of work for the export pool.
type TagExportJob struct {
	Tag string
}

// TagExportResult is the outcome of exporting one tag.
type TagExportResult struct {
	Tag   string `json:"tag"`
	Notes int    `json:"notes"`
	File  string `json:"file,omitempty"`
	Error error  `json:"-"`
	Msg   string `json:"error,omitempty"`
}

// BulkExportResult summarizes a bulk export and doubles as its manifest.
type BulkExportResult struct {
	OutputDir         string            `json:"output_dir"`
	Format            formatter.Format  `json:"format"`
	ExportedAt        time.Time         `json:"exported_at"`
	TotalTags         int               `json:"total_tags"`
	SuccessfulExports int               `json:"successful_exports"`
	FailedExports     int               `json:"failed_exports"`
	Results           []TagExportResult `json:"results"`
	ManifestPath      string            `json:"-"`
}

// BulkExport writes one export file per tag on a rate limited worker pool.
//
// A failed tag does not stop the others. The manifest is written once every tag has finished.
func (e *NoteEngine) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, opts BulkExportOpts) (*BulkExportResult, error) {
	if e.notes == nil {
		return nil, fmt.Errorf("%w: note store not initialized", shared.ErrDatabaseUnavailable)
	}
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("notes_export_%d", e.now().Unix())
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	tags := models.NormalizeTags(opts.Tags)
	if len(tags) == 0 {
		tags = e.collectTags(ctx)
	}
	sendProgress(prog, collectTagsUpdate(tags))

	result := &BulkExportResult{
		OutputDir:  opts.OutputDir,
		Format:     opts.Format,
		ExportedAt: e.now().UTC(),
		TotalTags:  len(tags),
		Results:    make([]TagExportResult, 0, len(tags)),
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	limiter := rate.NewLimiter(limit, 1)

	jobs := make(chan TagExportJob, len(tags))
	results := make(chan TagExportResult, len(tags))

	var wg sync.WaitGroup
	for range min(opts.NumWorkers, max(len(tags), 1)) {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, limiter, jobs, results, opts)
	}

	for _, tag := range tags {
		jobs <- TagExportJob{Tag: tag}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Error == nil {
			result.SuccessfulExports++
			sendProgress(prog, exportCompletedUpdate(completed, len(tags), res.Tag, res.Notes))
		} else {
			result.FailedExports++
			sendProgress(prog, exportFailedUpdate(completed, len(tags), res.Tag, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	slices.SortFunc(result.Results, func(a, b TagExportResult) int {
		return cmp.Compare(a.Tag, b.Tag)
	})

	manifestPath := filepath.Join(opts.OutputDir, manifestName)
	if err := writeManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	sendProgress(prog, manifestUpdate(manifestPath))

	e.logger.Info("bulk export finished",
		"dir", opts.OutputDir,
		"tags", result.TotalTags,
		"failed", result.FailedExports,
	)
	return result, nil
}

// collectTags returns every tag carried by a stored note.
func (e *NoteEngine) collectTags(ctx context.Context) []string {
	var tags []string
	for _, note := range e.notes.FetchAll(ctx, nil) {
		tags = append(tags, note.Tags...)
	}
	return models.NormalizeTags(tags)
}

// exportWorker is a worker goroutine that exports tags from the jobs channel.
func (e *NoteEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan TagExportJob,
	results chan<- TagExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- TagExportResult{Tag: job.Tag, Error: err, Msg: err.Error()}
			continue
		}
		results <- e.exportTag(ctx, job, opts)
	}
}

// exportTag writes the notes carrying one tag to <dir>/<tag>.<ext>.
func (e *NoteEngine) exportTag(ctx context.Context, job TagExportJob, opts BulkExportOpts) TagExportResult {
	result := TagExportResult{Tag: job.Tag}

	filter := models.NoteFilter{Tag: job.Tag}
	notes := e.notes.FetchAll(ctx, filter.Predicate(), store.Desc("created_at"))
	result.Notes = len(notes)

	export := formatter.NewNoteExport("Notes tagged #"+job.Tag, "tag:"+job.Tag, notes)
	path := filepath.Join(opts.OutputDir, job.Tag+"."+opts.Format.Extension())

	file, err := formatter.WriteExport(export, opts.Format, path)
	if err != nil {
		result.Error = fmt.Errorf("%s export failed: %w", opts.Format, err)
		result.Msg = result.Error.Error()
		return result
	}
	result.File = file
	return result
}

func writeManifest(result *BulkExportResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
