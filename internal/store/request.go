package store

import (
	"fmt"
	"strings"
)

// FetchRequest describes which records of one entity to read and in what order.
type FetchRequest struct {
	EntityName      string
	Predicate       *Predicate
	SortDescriptors []SortDescriptor
	FetchLimit      int // FetchLimit caps the result size when positive
	FetchOffset     int // FetchOffset skips rows, only applied with a positive FetchLimit
}

// NewFetchRequest returns a request for every record of entity.
func NewFetchRequest(entity string) *FetchRequest {
	return &FetchRequest{EntityName: entity}
}

// BatchDeleteRequest deletes every row matched by its fetch request directly in the store,
// without loading records into a context.
type BatchDeleteRequest struct {
	FetchRequest *FetchRequest
}

// NewBatchDeleteRequest wraps req.
func NewBatchDeleteRequest(req *FetchRequest) *BatchDeleteRequest {
	return &BatchDeleteRequest{FetchRequest: req}
}

// BatchDeleteResult reports what a [BatchDeleteRequest] removed.
type BatchDeleteResult struct {
	Count     int
	ObjectIDs []ObjectID
}

func (r *FetchRequest) validate(e *Entity) error {
	if err := r.Predicate.validate(e); err != nil {
		return err
	}
	for _, s := range r.SortDescriptors {
		if !e.HasColumn(s.Key) {
			return fmt.Errorf("%w: %s has no sort key %q", ErrUnknownKey, e.Name, s.Key)
		}
	}
	return nil
}

// where returns the WHERE clause (with leading space) and its args.
func (r *FetchRequest) where() (string, []any) {
	clause, args := r.Predicate.SQL()
	if clause == "" {
		return "", nil
	}
	return " WHERE " + clause, args
}

// selectSQL builds the SELECT for cols of e.
func (r *FetchRequest) selectSQL(e *Entity, cols []string) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), e.Table)

	where, args := r.where()
	b.WriteString(where)

	if len(r.SortDescriptors) > 0 {
		order := make([]string, len(r.SortDescriptors))
		for i, s := range r.SortDescriptors {
			order[i] = s.String()
		}
		b.WriteString(" ORDER BY " + strings.Join(order, ", "))
	}

	if r.FetchLimit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", r.FetchLimit)
		if r.FetchOffset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", r.FetchOffset)
		}
	}

	return b.String(), args
}

func (r *FetchRequest) countSQL(e *Entity) (string, []any) {
	where, args := r.where()
	return "SELECT COUNT(*) FROM " + e.Table + where, args
}

func (r *FetchRequest) deleteSQL(e *Entity) (string, []any) {
	where, args := r.where()
	return "DELETE FROM " + e.Table + where, args
}
