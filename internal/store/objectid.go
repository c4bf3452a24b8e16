package store

import (
	"fmt"
	"strings"
)

const objectIDScheme = "recordkit://"

// ObjectID identifies a persisted record by entity name and primary key.
//
// Its text form is recordkit://<entity>/<key>.
type ObjectID struct {
	Entity string
	Key    string
}

// NewObjectID returns the [ObjectID] for key within entity.
func NewObjectID(entity, key string) ObjectID {
	return ObjectID{Entity: entity, Key: key}
}

// IsZero reports whether either part of the id is missing.
func (id ObjectID) IsZero() bool {
	return id.Entity == "" || id.Key == ""
}

func (id ObjectID) String() string {
	if id.IsZero() {
		return ""
	}
	return objectIDScheme + id.Entity + "/" + id.Key
}

// ParseObjectID parses the text form produced by [ObjectID.String].
func ParseObjectID(s string) (ObjectID, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), objectIDScheme)
	if !ok {
		return ObjectID{}, fmt.Errorf("%w: missing scheme in %q", ErrInvalidObjectID, s)
	}

	entity, key, ok := strings.Cut(rest, "/")
	if !ok || entity == "" || key == "" {
		return ObjectID{}, fmt.Errorf("%w: %q", ErrInvalidObjectID, s)
	}

	return ObjectID{Entity: entity, Key: key}, nil
}

// MarshalText implements [encoding.TextMarshaler].
func (id ObjectID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler]. Empty input yields the zero id.
func (id *ObjectID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*id = ObjectID{}
		return nil
	}
	parsed, err := ParseObjectID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
