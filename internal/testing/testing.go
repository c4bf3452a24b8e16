// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/recordkit/internal/controller"
	"github.com/desertthunder/recordkit/internal/models"
	"github.com/desertthunder/recordkit/internal/shared"
	"github.com/desertthunder/recordkit/internal/store"
)

// NoteController is the controller type used for notes throughout the app.
type NoteController = controller.Controller[models.Note, *models.NoteRecord]

// NewTestDB opens a migrated in-memory SQLite database closed at the end of the test.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := shared.NewDatabase("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	if _, err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// NewTestContainer returns a container over [NewTestDB] with [models.NoteEntity] registered.
func NewTestContainer(t *testing.T, logger *log.Logger) *store.Container {
	t.Helper()

	if logger == nil {
		logger = log.New(io.Discard)
	}

	c, err := store.NewContainer(NewTestDB(t), store.NewSQLiteDialect(),
		store.WithLogger(logger), store.WithEntities(models.NoteEntity))
	if err != nil {
		t.Fatalf("failed to create container: %v", err)
	}

	t.Cleanup(func() { c.Close() })
	return c
}

// NewNoteController returns a note controller on a fresh test container.
func NewNoteController(t *testing.T, opts ...controller.Option) *NoteController {
	t.Helper()
	return NewNoteControllerOn(t, NewTestContainer(t, nil), opts...)
}

// NewNoteControllerOn returns a note controller on c, closed at the end of the test.
func NewNoteControllerOn(t *testing.T, c *store.Container, opts ...controller.Option) *NoteController {
	t.Helper()

	ctrl, err := controller.New[models.Note, *models.NoteRecord](c, opts...)
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}

	t.Cleanup(func() { ctrl.Close() })
	return ctrl
}

// ErrorRecorder collects errors passed to a controller error handler.
type ErrorRecorder struct {
	mu   sync.Mutex
	errs []error
}

// Handle records err; pass it to [controller.WithErrorHandler].
func (r *ErrorRecorder) Handle(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

// Errors returns a copy of the recorded errors.
func (r *ErrorRecorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// SyncBuffer is a [bytes.Buffer] safe for concurrent writers, for capturing log output.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
