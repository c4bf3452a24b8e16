package store

import "errors"

var (
	ErrUnknownEntity   = errors.New("unknown entity")
	ErrUnknownKey      = errors.New("unknown key")
	ErrObjectNotFound  = errors.New("object not found")
	ErrInvalidObjectID = errors.New("invalid object id")
	ErrInvalidEntity   = errors.New("invalid entity description")

	// Lifecycle errors
	ErrContextClosed   = errors.New("context closed")
	ErrContainerClosed = errors.New("container closed")
)
