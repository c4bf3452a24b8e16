package controller_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/recordkit/internal/controller"
	"github.com/desertthunder/recordkit/internal/models"
	"github.com/desertthunder/recordkit/internal/shared"
	"github.com/desertthunder/recordkit/internal/store"
	th "github.com/desertthunder/recordkit/internal/testing"
)

// archivedNote scans the notes table but is not a *models.NoteRecord.
type archivedNote struct {
	models.NoteRecord
}

func seedNotes(t *testing.T, ctrl *th.NoteController, notes ...models.Note) {
	t.Helper()
	ctrl.SaveAll(context.Background(), notes)
}

func noteIDs(notes []models.Note) []string {
	ids := make([]string, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}
	return ids
}

func TestOperatingQueue(t *testing.T) {
	q, err := controller.ParseOperatingQueue("")
	require.NoError(t, err)
	assert.Equal(t, controller.Background, q)

	q, err = controller.ParseOperatingQueue("Main")
	require.NoError(t, err)
	assert.Equal(t, controller.Main, q)
	assert.Equal(t, "main", q.String())

	_, err = controller.ParseOperatingQueue("sideways")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	t.Run("requires container", func(t *testing.T) {
		_, err := controller.New[models.Note, *models.NoteRecord](nil)
		assert.Error(t, err)
	})

	t.Run("background owns its context", func(t *testing.T) {
		c := th.NewTestContainer(t, nil)
		ctrl := th.NewNoteControllerOn(t, c)

		assert.Equal(t, controller.Background, ctrl.Queue())
		assert.NotSame(t, c.ViewContext(), ctrl.Context())
		assert.Equal(t, "background", ctrl.Context().Name())

		require.NoError(t, ctrl.Close())
		err := ctrl.Context().Perform(func(context.Context) {})
		assert.ErrorIs(t, err, store.ErrContextClosed)
	})

	t.Run("main shares the view context", func(t *testing.T) {
		c := th.NewTestContainer(t, nil)
		a := th.NewNoteControllerOn(t, c, controller.WithOperatingQueue(controller.Main))
		b := th.NewNoteControllerOn(t, c, controller.WithOperatingQueue(controller.Main))

		assert.Same(t, c.ViewContext(), a.Context())
		assert.Same(t, a.Context(), b.Context())

		require.NoError(t, a.Close())
		assert.NoError(t, c.ViewContext().Perform(func(context.Context) {}))
	})

	t.Run("closed container", func(t *testing.T) {
		c := th.NewTestContainer(t, nil)
		require.NoError(t, c.Close())

		_, err := controller.New[models.Note, *models.NoteRecord](c)
		assert.ErrorIs(t, err, store.ErrContainerClosed)
	})
}

func TestController(t *testing.T) {
	ctx := context.Background()

	t.Run("Save and Fetch", func(t *testing.T) {
		ctrl := th.NewNoteController(t)
		note := models.NewNote("Groceries", "milk", "home")

		ctrl.Save(ctx, note)

		got, ok := ctrl.Fetch(ctx, note.ObjectID())
		require.True(t, ok)
		assert.Equal(t, note.ID, got.ID)
		assert.Equal(t, "Groceries", got.Title)
		assert.Equal(t, []string{"home"}, got.Tags)
		assert.False(t, ctrl.Context().HasChanges())
	})

	t.Run("FetchAll with predicate and sort", func(t *testing.T) {
		ctrl := th.NewNoteController(t)
		a := models.NewNote("Alpha", "")
		b := models.NewNote("Bravo", "")
		b.Pinned = true
		c := models.NewNote("Charlie", "")
		c.Pinned = true
		seedNotes(t, ctrl, a, b, c)

		all := ctrl.FetchAll(ctx, nil, store.Asc("title"))
		assert.Equal(t, []string{a.ID, b.ID, c.ID}, noteIDs(all))

		pinned := ctrl.FetchAll(ctx, store.Eq("pinned", true), store.Desc("title"))
		assert.Equal(t, []string{c.ID, b.ID}, noteIDs(pinned))

		none := ctrl.FetchAll(ctx, store.Eq("title", "Delta"))
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("FetchPage", func(t *testing.T) {
		ctrl := th.NewNoteController(t)
		notes := []models.Note{models.NewNote("a", ""), models.NewNote("b", ""), models.NewNote("c", "")}
		seedNotes(t, ctrl, notes...)

		page := ctrl.FetchPage(ctx, nil, 2, 1, store.Asc("title"))
		assert.Equal(t, []string{notes[1].ID, notes[2].ID}, noteIDs(page))
	})

	t.Run("CountAll", func(t *testing.T) {
		ctrl := th.NewNoteController(t)
		a := models.NewNote("a", "")
		a.Pinned = true
		seedNotes(t, ctrl, a, models.NewNote("b", ""), models.NewNote("c", ""))

		assert.Equal(t, 3, ctrl.CountAll(ctx, nil))
		assert.Equal(t, 1, ctrl.CountAll(ctx, store.Eq("pinned", true)))
		assert.Equal(t, 0, ctrl.CountAll(ctx, store.Eq("title", "z")))
	})

	t.Run("DeleteObject", func(t *testing.T) {
		ctrl := th.NewNoteController(t)
		keep, drop := models.NewNote("keep", ""), models.NewNote("drop", "")
		seedNotes(t, ctrl, keep, drop)

		ctrl.DeleteObject(ctx, drop.ObjectID())

		_, ok := ctrl.Fetch(ctx, drop.ObjectID())
		assert.False(t, ok)
		assert.Equal(t, []string{keep.ID}, noteIDs(ctrl.FetchAll(ctx, nil)))
	})

	t.Run("DeleteAll", func(t *testing.T) {
		ctrl := th.NewNoteController(t)
		old := models.NewNote("old", "")
		old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
		fresh := models.NewNote("fresh", "")
		seedNotes(t, ctrl, old, fresh)

		n := ctrl.DeleteAll(ctx, store.Lt("created_at", time.Now().UTC().Add(-24*time.Hour)))
		assert.Equal(t, 1, n)
		assert.False(t, ctrl.Context().IsRegistered(old.ObjectID()))

		_, ok := ctrl.Fetch(ctx, old.ObjectID())
		assert.False(t, ok)
		assert.Equal(t, 1, ctrl.CountAll(ctx, nil))
	})

	t.Run("Replace", func(t *testing.T) {
		ctrl := th.NewNoteController(t)
		original := models.NewNote("draft", "v1")
		seedNotes(t, ctrl, original)

		replacement := models.NewNote("final", "v2")
		ctrl.Replace(ctx, original.ObjectID(), replacement)

		_, ok := ctrl.Fetch(ctx, original.ObjectID())
		assert.False(t, ok)

		got, ok := ctrl.Fetch(ctx, replacement.ObjectID())
		require.True(t, ok)
		assert.Equal(t, "v2", got.Body)
		assert.Equal(t, 1, ctrl.CountAll(ctx, nil))
	})

	t.Run("Replace keeping the key", func(t *testing.T) {
		ctrl := th.NewNoteController(t)
		original := models.NewNote("note", "")
		seedNotes(t, ctrl, original)

		ctrl.Replace(ctx, original.ObjectID(), original.WithPinned(true))

		got, ok := ctrl.Fetch(ctx, original.ObjectID())
		require.True(t, ok)
		assert.True(t, got.Pinned)
		assert.Equal(t, 1, ctrl.CountAll(ctx, nil))
	})

	t.Run("SaveAll is all or nothing", func(t *testing.T) {
		errs := &th.ErrorRecorder{}
		ctrl := th.NewNoteController(t, controller.WithErrorHandler(errs.Handle))

		ctrl.SaveAll(ctx, []models.Note{models.NewNote("valid", ""), {ID: "bad"}})

		assert.Equal(t, 0, ctrl.CountAll(ctx, nil))
		assert.False(t, ctrl.Context().HasChanges())
		require.Len(t, errs.Errors(), 1)
		assert.ErrorIs(t, errs.Errors()[0], shared.ErrInvalidInput)
	})

	t.Run("failed save is rolled back", func(t *testing.T) {
		errs := &th.ErrorRecorder{}
		c := th.NewTestContainer(t, nil)
		ctrl := th.NewNoteControllerOn(t, c, controller.WithErrorHandler(errs.Handle))

		_, err := c.DB().Exec("DROP TABLE notes")
		require.NoError(t, err)

		ctrl.Save(ctx, models.NewNote("lost", ""))

		assert.False(t, ctrl.Context().HasChanges())
		assert.Len(t, errs.Errors(), 1)
	})

	t.Run("views of one container stay consistent", func(t *testing.T) {
		c := th.NewTestContainer(t, nil)
		writer := th.NewNoteControllerOn(t, c)
		reader := th.NewNoteControllerOn(t, c, controller.WithOperatingQueue(controller.Main))

		note := models.NewNote("shared", "v1")
		writer.Save(ctx, note)

		got, ok := reader.Fetch(ctx, note.ObjectID())
		require.True(t, ok)
		assert.Equal(t, "v1", got.Body)

		updated := note
		updated.Body = "v2"
		writer.Replace(ctx, note.ObjectID(), updated)

		assert.Eventually(t, func() bool {
			got, ok := reader.Fetch(ctx, note.ObjectID())
			return ok && got.Body == "v2"
		}, time.Second, 10*time.Millisecond)
	})
}

func TestControllerSharedDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes.db")

	open := func() *store.Container {
		db, err := shared.NewDatabase("sqlite3", path)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		_, err = shared.RunMigrations(db)
		require.NoError(t, err)

		c, err := store.NewContainer(db, store.NewSQLiteDialect(),
			store.WithLogger(log.New(io.Discard)), store.WithEntities(models.NoteEntity))
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() })
		return c
	}

	server := th.NewNoteControllerOn(t, open(), controller.WithOperatingQueue(controller.Main))
	cli := th.NewNoteControllerOn(t, open())

	note := models.NewNote("v1", "")
	server.Save(ctx, note)
	require.Len(t, server.FetchAll(ctx, nil), 1)
	_, ok := server.Fetch(ctx, note.ObjectID())
	require.True(t, ok)

	edited := note
	edited.Title = "v2"
	cli.Replace(ctx, note.ObjectID(), edited)

	notes := server.FetchAll(ctx, nil)
	require.Len(t, notes, 1)
	assert.Equal(t, "v2", notes[0].Title)
	got, ok := server.Fetch(ctx, note.ObjectID())
	require.True(t, ok)
	assert.Equal(t, "v2", got.Title)

	cli.DeleteObject(ctx, note.ObjectID())

	_, ok = server.Fetch(ctx, note.ObjectID())
	assert.False(t, ok)
	assert.Empty(t, server.FetchAll(ctx, nil))
	assert.Equal(t, 0, server.CountAll(ctx, nil))
}

func TestControllerFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unregistered entity", func(t *testing.T) {
		var buf th.SyncBuffer
		errs := &th.ErrorRecorder{}
		logger := log.New(&buf)

		c, err := store.NewContainer(th.NewTestDB(t), store.NewSQLiteDialect(), store.WithLogger(log.New(io.Discard)))
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() })

		ctrl := th.NewNoteControllerOn(t, c, controller.WithLogger(logger), controller.WithErrorHandler(errs.Handle))

		assert.Empty(t, ctrl.FetchAll(ctx, nil))
		assert.Equal(t, 0, ctrl.CountAll(ctx, nil))
		assert.Equal(t, 0, ctrl.DeleteAll(ctx, nil))

		require.Len(t, errs.Errors(), 3)
		output := buf.String()
		assert.Contains(t, output, "recordkit error")
		assert.Contains(t, output, "could not build fetch request for *models.NoteRecord")
	})

	t.Run("missing object", func(t *testing.T) {
		errs := &th.ErrorRecorder{}
		ctrl := th.NewNoteController(t, controller.WithErrorHandler(errs.Handle))
		id := store.NewObjectID(models.NoteEntityName, "missing")

		_, ok := ctrl.Fetch(ctx, id)
		assert.False(t, ok)

		ctrl.DeleteObject(ctx, id)

		require.Len(t, errs.Errors(), 2)
		for _, err := range errs.Errors() {
			assert.ErrorIs(t, err, store.ErrObjectNotFound)
		}
	})

	t.Run("invalid predicate key", func(t *testing.T) {
		errs := &th.ErrorRecorder{}
		ctrl := th.NewNoteController(t, controller.WithErrorHandler(errs.Handle))

		assert.Empty(t, ctrl.FetchAll(ctx, store.Eq("colour", "red")))
		assert.Empty(t, ctrl.FetchAll(ctx, nil, store.Asc("colour")))

		require.Len(t, errs.Errors(), 2)
		assert.ErrorIs(t, errs.Errors()[0], store.ErrUnknownKey)
	})

	t.Run("cancelled context", func(t *testing.T) {
		errs := &th.ErrorRecorder{}
		ctrl := th.NewNoteController(t, controller.WithErrorHandler(errs.Handle))
		seedNotes(t, ctrl, models.NewNote("a", ""))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		assert.Equal(t, 0, ctrl.CountAll(cancelled, nil))
		require.NotEmpty(t, errs.Errors())
		assert.True(t, errors.Is(errs.Errors()[0], context.Canceled))
	})

	t.Run("closed controller", func(t *testing.T) {
		var reported atomic.Int32
		ctrl := th.NewNoteController(t, controller.WithErrorHandler(func(err error) {
			if errors.Is(err, store.ErrContextClosed) {
				reported.Add(1)
			}
		}))
		require.NoError(t, ctrl.Close())

		ctrl.Save(ctx, models.NewNote("late", ""))
		assert.Empty(t, ctrl.FetchAll(ctx, nil))
		assert.Equal(t, int32(2), reported.Load())
	})

	t.Run("foreign record types are dropped", func(t *testing.T) {
		c := th.NewTestContainer(t, nil)
		writer := th.NewNoteControllerOn(t, c, controller.WithOperatingQueue(controller.Main))
		seedNotes(t, writer, models.NewNote("a", ""), models.NewNote("b", ""))

		// validation and the type lookup see note records; scanned rows become archived notes
		var calls atomic.Int32
		foreign := *models.NoteEntity
		foreign.New = func() store.Record {
			if calls.Add(1) <= 2 {
				return &models.NoteRecord{}
			}
			return &archivedNote{}
		}
		require.NoError(t, c.Register(&foreign))

		ctrl := th.NewNoteControllerOn(t, c)
		assert.Empty(t, ctrl.FetchAll(ctx, nil))

		var records []store.Record
		err := ctrl.Context().PerformAndWait(ctx, func(ctx context.Context) {
			var err error
			records, err = ctrl.Context().Fetch(ctx, store.NewFetchRequest(models.NoteEntityName))
			require.NoError(t, err)
		})
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("Fetch of a foreign record type", func(t *testing.T) {
		var buf th.SyncBuffer
		errs := &th.ErrorRecorder{}
		c := th.NewTestContainer(t, nil)
		notes := th.NewNoteControllerOn(t, c)
		note := models.NewNote("plain", "")
		notes.Save(ctx, note)

		archived, err := controller.New[models.Note, *archivedNote](c,
			controller.WithLogger(log.New(&buf)), controller.WithErrorHandler(errs.Handle))
		require.NoError(t, err)
		t.Cleanup(func() { archived.Close() })

		_, ok := archived.Fetch(ctx, note.ObjectID())
		assert.False(t, ok)
		require.Len(t, errs.Errors(), 1)
		assert.Contains(t, errs.Errors()[0].Error(), "fetched *models.NoteRecord is not *controller_test.archivedNote")
		assert.Contains(t, buf.String(), "recordkit error")
	})

	t.Run("errors never reach callers", func(t *testing.T) {
		var buf th.SyncBuffer
		ctrl := th.NewNoteController(t, controller.WithLogger(log.New(&buf)))

		ctrl.Replace(ctx, store.NewObjectID(models.NoteEntityName, "missing"), models.Note{})

		assert.Equal(t, 2, strings.Count(buf.String(), "recordkit error"))
		assert.Equal(t, 0, ctrl.CountAll(ctx, nil))
	})
}
