package store

import (
	"fmt"
	"slices"
)

// Record is a managed record. Implementations are pointers to structs whose `db` tags
// name every column of the record's [Entity].
type Record interface {
	EntityName() string       // EntityName returns the registered entity this record belongs to
	PrimaryKey() string       // PrimaryKey returns the value of the entity's key column
	SetPrimaryKey(key string) // SetPrimaryKey assigns the key column, used when inserting without one
}

// Entity describes how a [Record] type maps onto a table.
type Entity struct {
	Name    string        // Name is the value records return from EntityName
	Table   string        // Table is the backing table
	Key     string        // Key is the primary key column
	Columns []string      // Columns lists every persisted column, Key included
	New     func() Record // New returns an empty record to scan rows into
}

func (e *Entity) validate() error {
	switch {
	case e == nil:
		return fmt.Errorf("%w: nil", ErrInvalidEntity)
	case e.Name == "":
		return fmt.Errorf("%w: missing name", ErrInvalidEntity)
	case e.Table == "":
		return fmt.Errorf("%w: %s has no table", ErrInvalidEntity, e.Name)
	case e.Key == "":
		return fmt.Errorf("%w: %s has no key column", ErrInvalidEntity, e.Name)
	case !slices.Contains(e.Columns, e.Key):
		return fmt.Errorf("%w: %s columns do not include key %s", ErrInvalidEntity, e.Name, e.Key)
	case e.New == nil:
		return fmt.Errorf("%w: %s has no constructor", ErrInvalidEntity, e.Name)
	}

	if got := e.New().EntityName(); got != e.Name {
		return fmt.Errorf("%w: %s constructor builds %s records", ErrInvalidEntity, e.Name, got)
	}
	return nil
}

// HasColumn reports whether col is one of the entity's persisted columns.
func (e *Entity) HasColumn(col string) bool {
	return slices.Contains(e.Columns, col)
}

// ObjectID returns the id of r within this entity.
func (e *Entity) ObjectID(r Record) ObjectID {
	return ObjectID{Entity: e.Name, Key: r.PrimaryKey()}
}

// updateColumns returns every column except the key.
func (e *Entity) updateColumns() []string {
	cols := make([]string, 0, len(e.Columns))
	for _, c := range e.Columns {
		if c != e.Key {
			cols = append(cols, c)
		}
	}
	return cols
}
