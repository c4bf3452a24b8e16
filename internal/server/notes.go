package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/desertthunder/recordkit/internal/models"
	"github.com/desertthunder/recordkit/internal/shared"
	"github.com/desertthunder/recordkit/internal/store"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// NoteController is the part of the note controller the handlers use.
type NoteController interface {
	FetchPage(ctx context.Context, predicate *store.Predicate, limit, offset int, sorts ...store.SortDescriptor) []models.Note
	Fetch(ctx context.Context, id store.ObjectID) (models.Note, bool)
	CountAll(ctx context.Context, predicate *store.Predicate) int
	DeleteAll(ctx context.Context, predicate *store.Predicate) int
	DeleteObject(ctx context.Context, id store.ObjectID)
	Save(ctx context.Context, object models.Note)
	Replace(ctx context.Context, id store.ObjectID, newObject models.Note)
}

// NotesHandler serves the /notes routes.
type NotesHandler struct {
	notes NoteController
}

// NewNotesHandler creates a [NotesHandler] over notes.
func NewNotesHandler(notes NoteController) *NotesHandler {
	return &NotesHandler{notes: notes}
}

// Register mounts the handler's routes on g.
func (h *NotesHandler) Register(g *gin.RouterGroup) {
	notes := g.Group("/notes")
	notes.GET("", h.List)
	notes.GET("/count", h.Count)
	notes.GET("/:id", h.Get)
	notes.POST("", h.Create)
	notes.PUT("/:id", h.Replace)
	notes.DELETE("/:id", h.Delete)
	notes.DELETE("", h.DeleteAll)
}

// List returns notes matching the query filters.
// GET /notes
func (h *NotesHandler) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	sort, err := models.ParseNoteSort(c.Query("sort"), !strings.EqualFold(c.DefaultQuery("order", "desc"), "asc"))
	if err != nil {
		badRequest(c, err)
		return
	}

	limit, err := queryInt(c, "limit", defaultLimit)
	if err != nil {
		badRequest(c, err)
		return
	}
	if limit == 0 {
		badRequest(c, fmt.Errorf("%w: limit must be at least 1", shared.ErrInvalidArgument))
		return
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	predicate := filter.Predicate()
	notes := h.notes.FetchPage(ctx, predicate, limit, offset, sort)

	c.JSON(http.StatusOK, NewSuccessResponse(NoteList{
		Notes: notes,
		Total: h.notes.CountAll(ctx, predicate),
	}))
}

// Count returns how many notes match the query filters.
// GET /notes/count
func (h *NotesHandler) Count(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	n := h.notes.CountAll(c.Request.Context(), filter.Predicate())
	c.JSON(http.StatusOK, NewSuccessResponse(CountResult{Count: n}))
}

// Get returns one note.
// GET /notes/:id
func (h *NotesHandler) Get(c *gin.Context) {
	note, ok := h.notes.Fetch(c.Request.Context(), noteID(c))
	if !ok {
		abort(c, http.StatusNotFound, shared.ErrNoteNotFound.Error())
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(note))
}

// Create saves a new note with a generated key.
// POST /notes
func (h *NotesHandler) Create(c *gin.Context) {
	var input NoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	note := models.NewNote(input.Title, input.Body, input.Tags...)
	note.Pinned = input.Pinned
	if err := note.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	h.notes.Save(ctx, note)

	saved, ok := h.notes.Fetch(ctx, note.ObjectID())
	if !ok {
		abort(c, http.StatusInternalServerError, "failed to save note")
		return
	}
	c.JSON(http.StatusCreated, NewSuccessResponse(saved))
}

// Replace swaps a note for the request body, keeping its key and creation time.
// PUT /notes/:id
func (h *NotesHandler) Replace(c *gin.Context) {
	var input NoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	id := noteID(c)

	existing, ok := h.notes.Fetch(ctx, id)
	if !ok {
		abort(c, http.StatusNotFound, shared.ErrNoteNotFound.Error())
		return
	}

	replacement := models.Note{
		ID:        existing.ID,
		Title:     strings.TrimSpace(input.Title),
		Body:      input.Body,
		Tags:      models.NormalizeTags(input.Tags),
		Pinned:    input.Pinned,
		CreatedAt: existing.CreatedAt,
		UpdatedAt: time.Now().UTC(),
	}
	if err := replacement.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	h.notes.Replace(ctx, id, replacement)

	saved, ok := h.notes.Fetch(ctx, id)
	if !ok {
		abort(c, http.StatusInternalServerError, "failed to replace note")
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(saved))
}

// Delete removes one note.
// DELETE /notes/:id
func (h *NotesHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	id := noteID(c)

	if _, ok := h.notes.Fetch(ctx, id); !ok {
		abort(c, http.StatusNotFound, shared.ErrNoteNotFound.Error())
		return
	}

	h.notes.DeleteObject(ctx, id)

	if _, ok := h.notes.Fetch(ctx, id); ok {
		abort(c, http.StatusInternalServerError, "failed to delete note")
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteAll removes every note matching the query filters. An empty filter is rejected.
// DELETE /notes
func (h *NotesHandler) DeleteAll(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	if filter.IsEmpty() {
		badRequest(c, shared.ErrUnfilteredDelete)
		return
	}

	n := h.notes.DeleteAll(c.Request.Context(), filter.Predicate())
	c.JSON(http.StatusOK, NewSuccessResponse(DeleteResult{Deleted: n}))
}

func noteID(c *gin.Context) store.ObjectID {
	return store.NewObjectID(models.NoteEntityName, c.Param("id"))
}

// parseFilter reads pinned, q, tag and before from the query string.
func parseFilter(c *gin.Context) (models.NoteFilter, error) {
	filter := models.NoteFilter{
		Search: c.Query("q"),
		Tag:    c.Query("tag"),
	}

	if raw, ok := c.GetQuery("pinned"); ok {
		pinned, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("%w: pinned must be a boolean", shared.ErrInvalidArgument)
		}
		filter.Pinned = &pinned
	}

	if raw := c.Query("before"); raw != "" {
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("%w: before must be an RFC 3339 time", shared.ErrInvalidArgument)
		}
		filter.CreatedBefore = before
	}

	return filter, nil
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", shared.ErrInvalidArgument, key)
	}
	return n, nil
}
