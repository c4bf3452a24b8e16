package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/recordkit/internal/shared"
	"github.com/desertthunder/recordkit/internal/store"
)

const (
	NoteEntityName = "note"
	maxTitleLength = 255
)

// NoteEntity maps [NoteRecord] onto the notes table.
var NoteEntity = &store.Entity{
	Name:    NoteEntityName,
	Table:   "notes",
	Key:     "id",
	Columns: []string{"id", "title", "body", "tags", "pinned", "created_at", "updated_at"},
	New:     func() store.Record { return &NoteRecord{} },
}

// NoteSortKeys lists the columns notes can be ordered by.
var NoteSortKeys = []string{"title", "created_at", "updated_at", "pinned"}

// Note is a titled note with free-form body text and tags.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var _ Model = Note{}

// NewNote creates a [Note] with a generated key and creation time.
func NewNote(title, body string, tags ...string) Note {
	now := time.Now().UTC()
	return Note{
		ID:        shared.GenerateID(),
		Title:     strings.TrimSpace(title),
		Body:      body,
		Tags:      NormalizeTags(tags),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ObjectID returns the store id of the note, zero when it has no key.
func (n Note) ObjectID() store.ObjectID {
	if n.ID == "" {
		return store.ObjectID{}
	}
	return store.NewObjectID(NoteEntityName, n.ID)
}

// Validate checks that the note has a title within [maxTitleLength].
func (n Note) Validate() error {
	title := strings.TrimSpace(n.Title)
	if title == "" {
		return fmt.Errorf("%w: note title is required", shared.ErrInvalidInput)
	}
	if len(title) > maxTitleLength {
		return fmt.Errorf("%w: note title exceeds %d characters", shared.ErrInvalidInput, maxTitleLength)
	}
	return nil
}

// Put validates the note and inserts its record into c.
func (n Note) Put(c *store.Context) error {
	if err := n.Validate(); err != nil {
		return err
	}
	rec, err := n.Record()
	if err != nil {
		return err
	}
	if _, err := c.Insert(rec); err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// Record converts the note to its persisted form. Missing timestamps are set to now.
func (n Note) Record() (*NoteRecord, error) {
	tags, err := json.Marshal(NormalizeTags(n.Tags))
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	now := time.Now().UTC()
	createdAt, updatedAt := n.CreatedAt.UTC(), n.UpdatedAt.UTC()
	if n.CreatedAt.IsZero() {
		createdAt = now
	}
	if n.UpdatedAt.IsZero() {
		updatedAt = now
	}

	return &NoteRecord{
		ID:        n.ID,
		Title:     strings.TrimSpace(n.Title),
		Body:      n.Body,
		Tags:      string(tags),
		Pinned:    n.Pinned,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// WithPinned returns a copy of the note with pinned set and the update time bumped.
func (n Note) WithPinned(pinned bool) Note {
	n.Pinned = pinned
	n.UpdatedAt = time.Now().UTC()
	return n
}

// NoteRecord is the managed record for a [Note].
type NoteRecord struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Body      string    `db:"body"`
	Tags      string    `db:"tags"`
	Pinned    bool      `db:"pinned"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

var _ store.Record = (*NoteRecord)(nil)

func (r *NoteRecord) EntityName() string       { return NoteEntityName }
func (r *NoteRecord) PrimaryKey() string       { return r.ID }
func (r *NoteRecord) SetPrimaryKey(key string) { r.ID = key }

// ToObject converts the record back to a [Note]. Undecodable tags are dropped.
func (r *NoteRecord) ToObject() Note {
	var tags []string
	if r.Tags != "" {
		if err := json.Unmarshal([]byte(r.Tags), &tags); err != nil {
			tags = nil
		}
	}
	return Note{
		ID:        r.ID,
		Title:     r.Title,
		Body:      r.Body,
		Tags:      tags,
		Pinned:    r.Pinned,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// NormalizeTags lowercases, trims, dedupes and sorts tags, dropping empty ones.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

// NoteFilter narrows note queries. The zero value matches every note.
type NoteFilter struct {
	Pinned        *bool
	Search        string    // Search matches a substring of the title or body
	Tag           string    // Tag matches notes carrying this tag
	CreatedBefore time.Time // CreatedBefore matches notes created strictly before this time
}

// IsEmpty reports whether the filter matches every note.
func (f NoteFilter) IsEmpty() bool {
	return f.Pinned == nil && strings.TrimSpace(f.Search) == "" && strings.TrimSpace(f.Tag) == "" && f.CreatedBefore.IsZero()
}

// Predicate builds the store predicate for the filter, nil when empty.
func (f NoteFilter) Predicate() *store.Predicate {
	var preds []*store.Predicate

	if f.Pinned != nil {
		preds = append(preds, store.Eq("pinned", *f.Pinned))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		preds = append(preds, store.Or(store.Contains("title", search), store.Contains("body", search)))
	}
	if tags := NormalizeTags([]string{f.Tag}); len(tags) == 1 {
		preds = append(preds, store.Contains("tags", `"`+tags[0]+`"`))
	}
	if !f.CreatedBefore.IsZero() {
		preds = append(preds, store.Lt("created_at", f.CreatedBefore.UTC()))
	}

	return store.And(preds...)
}

// ParseNoteSort returns the sort descriptor for key, defaulting to newest first.
func ParseNoteSort(key string, descending bool) (store.SortDescriptor, error) {
	if key == "" {
		return store.Desc("created_at"), nil
	}
	if !slices.Contains(NoteSortKeys, key) {
		return store.SortDescriptor{}, fmt.Errorf("%w: cannot sort notes by %q", shared.ErrInvalidArgument, key)
	}
	if descending {
		return store.Desc(key), nil
	}
	return store.Asc(key), nil
}
