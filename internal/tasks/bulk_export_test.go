package tasks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/recordkit/internal/formatter"
	"github.com/desertthunder/recordkit/internal/models"
	th "github.com/desertthunder/recordkit/internal/testing"
)

func seedTagged(t *testing.T, ctrl *th.NoteController) {
	t.Helper()
	ctrl.SaveAll(context.Background(), []models.Note{
		agedNote("Groceries", time.Hour, false, "home", "todo"),
		agedNote("Sprint plan", 2*time.Hour, true, "work"),
		agedNote("Fix sink", 3*time.Hour, false, "home"),
		agedNote("Untagged", 4*time.Hour, false),
	})
}

func TestBulkExport(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		format    formatter.Format
		tags      []string
		wantTags  []string
		checkFile func(t *testing.T, content string)
	}{
		{
			name:     "every tag as json",
			format:   formatter.FormatJSON,
			wantTags: []string{"home", "todo", "work"},
		},
		{
			name:     "selected tags as csv",
			format:   formatter.FormatCSV,
			tags:     []string{"HOME "},
			wantTags: []string{"home"},
			checkFile: func(t *testing.T, content string) {
				if !strings.Contains(content, "Groceries") || !strings.Contains(content, "Fix sink") {
					t.Errorf("expected both home notes in CSV, got:\n%s", content)
				}
				if strings.Contains(content, "Sprint plan") {
					t.Error("expected work note to be excluded")
				}
			},
		},
		{
			name:     "markdown",
			format:   formatter.FormatMarkdown,
			tags:     []string{"work"},
			wantTags: []string{"work"},
			checkFile: func(t *testing.T, content string) {
				if !strings.Contains(content, "Notes tagged #work") {
					t.Errorf("expected export title, got:\n%s", content)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, ctrl := newTestEngine(t)
			seedTagged(t, ctrl)
			dir := t.TempDir()

			result, err := engine.BulkExport(ctx, nil, BulkExportOpts{
				Format:     tt.format,
				OutputDir:  dir,
				Tags:       tt.tags,
				NumWorkers: 2,
			})
			if err != nil {
				t.Fatalf("BulkExport failed: %v", err)
			}

			if result.TotalTags != len(tt.wantTags) || result.SuccessfulExports != len(tt.wantTags) {
				t.Errorf("expected %d successful exports, got %d of %d",
					len(tt.wantTags), result.SuccessfulExports, result.TotalTags)
			}
			if result.FailedExports != 0 {
				t.Errorf("expected no failures, got %d", result.FailedExports)
			}

			for i, tag := range tt.wantTags {
				res := result.Results[i]
				if res.Tag != tag {
					t.Errorf("expected result %d to be %s, got %s", i, tag, res.Tag)
				}
				want := filepath.Join(dir, tag+"."+tt.format.Extension())
				if res.File != want {
					t.Errorf("expected file %s, got %s", want, res.File)
				}
				th.AssertFileExists(t, want)
				if tt.checkFile != nil {
					tt.checkFile(t, th.MustReadFile(t, want))
				}
			}

			th.AssertFileExists(t, result.ManifestPath)
		})
	}

	t.Run("manifest", func(t *testing.T) {
		engine, ctrl := newTestEngine(t)
		seedTagged(t, ctrl)
		dir := t.TempDir()

		result, err := engine.BulkExport(ctx, nil, BulkExportOpts{Format: formatter.FormatText, OutputDir: dir})
		if err != nil {
			t.Fatalf("BulkExport failed: %v", err)
		}

		var manifest BulkExportResult
		if err := json.Unmarshal([]byte(th.MustReadFile(t, result.ManifestPath)), &manifest); err != nil {
			t.Fatalf("failed to parse manifest: %v", err)
		}
		if manifest.TotalTags != 3 || len(manifest.Results) != 3 {
			t.Errorf("expected 3 tags in manifest, got %d", manifest.TotalTags)
		}
		if manifest.Results[0].Tag != "home" || manifest.Results[0].Notes != 2 {
			t.Errorf("expected home with 2 notes first, got %+v", manifest.Results[0])
		}
	})

	t.Run("reports progress", func(t *testing.T) {
		engine, ctrl := newTestEngine(t)
		seedTagged(t, ctrl)

		progress := make(chan ProgressUpdate, 20)
		if _, err := engine.BulkExport(ctx, progress, BulkExportOpts{OutputDir: t.TempDir()}); err != nil {
			t.Fatalf("BulkExport failed: %v", err)
		}
		close(progress)

		counts := map[Phase]int{}
		for u := range progress {
			counts[u.Phase]++
		}
		if counts[CollectTags] != 1 || counts[ExportTag] != 3 || counts[WriteManifest] != 1 {
			t.Errorf("unexpected progress phases: %v", counts)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		engine, ctrl := newTestEngine(t)
		seedTagged(t, ctrl)

		start := time.Now()
		result, err := engine.BulkExport(ctx, nil, BulkExportOpts{OutputDir: t.TempDir(), RateLimit: 10})
		if err != nil {
			t.Fatalf("BulkExport failed: %v", err)
		}
		if result.SuccessfulExports != 3 {
			t.Errorf("expected 3 exports, got %d", result.SuccessfulExports)
		}
		if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
			t.Errorf("expected the limiter to space exports, took %v", elapsed)
		}
	})

	t.Run("failed tag does not stop others", func(t *testing.T) {
		engine, ctrl := newTestEngine(t)
		seedTagged(t, ctrl)
		dir := t.TempDir()

		if err := os.Mkdir(filepath.Join(dir, "home.json"), 0755); err != nil {
			t.Fatalf("failed to create blocking dir: %v", err)
		}

		result, err := engine.BulkExport(ctx, nil, BulkExportOpts{OutputDir: dir})
		if err != nil {
			t.Fatalf("BulkExport failed: %v", err)
		}
		if result.FailedExports != 1 || result.SuccessfulExports != 2 {
			t.Errorf("expected 1 failure and 2 successes, got %d/%d", result.FailedExports, result.SuccessfulExports)
		}
		if result.Results[0].Msg == "" {
			t.Error("expected failure message for home")
		}
	})

	t.Run("default output dir", func(t *testing.T) {
		engine, ctrl := newTestEngine(t)
		seedTagged(t, ctrl)

		dir := t.TempDir()
		orig := th.MustGetwd(t)
		th.MustChdir(t, dir)
		defer th.MustChdir(t, orig)

		result, err := engine.BulkExport(ctx, nil, BulkExportOpts{Tags: []string{"work"}})
		if err != nil {
			t.Fatalf("BulkExport failed: %v", err)
		}
		if result.OutputDir != "notes_export_1748779200" {
			t.Errorf("unexpected output dir %s", result.OutputDir)
		}
		th.AssertFileExists(t, filepath.Join(dir, result.OutputDir, "work.json"))
	})
}
