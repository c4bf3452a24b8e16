package store

import (
	"fmt"
	"strings"
)

// Predicate is a composable SQL condition over an entity's columns.
//
// Clauses use ? placeholders; contexts rebind them for the active driver.
// A nil *Predicate matches every row.
type Predicate struct {
	clause string
	args   []any
	keys   []string
}

// Where builds a predicate from a raw clause. Column names inside the clause are not
// validated against the entity.
func Where(clause string, args ...any) *Predicate {
	return &Predicate{clause: clause, args: args}
}

func compare(key, op string, value any) *Predicate {
	return &Predicate{
		clause: fmt.Sprintf("%s %s ?", key, op),
		args:   []any{value},
		keys:   []string{key},
	}
}

func Eq(key string, value any) *Predicate { return compare(key, "=", value) }
func Ne(key string, value any) *Predicate { return compare(key, "<>", value) }
func Lt(key string, value any) *Predicate { return compare(key, "<", value) }
func Le(key string, value any) *Predicate { return compare(key, "<=", value) }
func Gt(key string, value any) *Predicate { return compare(key, ">", value) }
func Ge(key string, value any) *Predicate { return compare(key, ">=", value) }

// Like matches key against a SQL LIKE pattern.
func Like(key, pattern string) *Predicate { return compare(key, "LIKE", pattern) }

// likeEscape escapes LIKE wildcards in [Contains]. MySQL reads a backslash inside a string
// literal as an escape, so a plain character is used.
const likeEscape = '!'

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Contains matches rows where key contains substr. Wildcards in substr match literally.
func Contains(key, substr string) *Predicate {
	return &Predicate{
		clause: fmt.Sprintf("%s LIKE ? ESCAPE '%c'", key, likeEscape),
		args:   []any{"%" + likeEscaper.Replace(substr) + "%"},
		keys:   []string{key},
	}
}

// IsNull matches rows where key is NULL.
func IsNull(key string) *Predicate {
	return &Predicate{clause: key + " IS NULL", keys: []string{key}}
}

// In matches rows whose key equals one of values. An empty list matches nothing.
func In(key string, values ...any) *Predicate {
	if len(values) == 0 {
		return &Predicate{clause: "1 = 0", keys: []string{key}}
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	return &Predicate{
		clause: fmt.Sprintf("%s IN (%s)", key, marks),
		args:   values,
		keys:   []string{key},
	}
}

// And joins predicates with AND, skipping nil entries.
func And(preds ...*Predicate) *Predicate { return join("AND", preds) }

// Or joins predicates with OR, skipping nil entries.
func Or(preds ...*Predicate) *Predicate { return join("OR", preds) }

// Not negates p. Not(nil) is nil.
func Not(p *Predicate) *Predicate {
	if p == nil {
		return nil
	}
	return &Predicate{clause: "NOT (" + p.clause + ")", args: p.args, keys: p.keys}
}

func join(op string, preds []*Predicate) *Predicate {
	var parts []*Predicate
	for _, p := range preds {
		if p != nil {
			parts = append(parts, p)
		}
	}

	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}

	out := &Predicate{}
	clauses := make([]string, len(parts))
	for i, p := range parts {
		clauses[i] = "(" + p.clause + ")"
		out.args = append(out.args, p.args...)
		out.keys = append(out.keys, p.keys...)
	}
	out.clause = strings.Join(clauses, " "+op+" ")
	return out
}

// SQL returns the clause and its arguments in placeholder order.
func (p *Predicate) SQL() (string, []any) {
	if p == nil {
		return "", nil
	}
	return p.clause, p.args
}

func (p *Predicate) String() string {
	if p == nil {
		return "TRUEPREDICATE"
	}
	return p.clause
}

// validate checks every key the predicate compares against e's columns.
func (p *Predicate) validate(e *Entity) error {
	if p == nil {
		return nil
	}
	for _, k := range p.keys {
		if !e.HasColumn(k) {
			return fmt.Errorf("%w: %s has no column %q", ErrUnknownKey, e.Name, k)
		}
	}
	return nil
}

// SortDescriptor orders fetched records by one column.
type SortDescriptor struct {
	Key       string
	Ascending bool
}

func Asc(key string) SortDescriptor  { return SortDescriptor{Key: key, Ascending: true} }
func Desc(key string) SortDescriptor { return SortDescriptor{Key: key} }

func (s SortDescriptor) String() string {
	if s.Ascending {
		return s.Key + " ASC"
	}
	return s.Key + " DESC"
}
