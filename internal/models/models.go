// package models defines the data model persisted through recordkit controllers
package models

import "github.com/desertthunder/recordkit/internal/store"

// Model defines the base interface for domain objects persisted through a controller.
type Model interface {
	ObjectID() store.ObjectID // ObjectID returns the store id, zero until the model has a key
	Validate() error          // Validate checks if the model's data is valid and returns an error if not
}
