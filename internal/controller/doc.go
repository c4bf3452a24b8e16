// Package controller provides a generic CRUD facade over a [store.Container].
//
// A [Controller] is parameterized by a domain object type O and the managed record type R
// it is persisted as:
//
//	notes, err := controller.New[models.Note, *models.NoteRecord](container)
//	notes.Save(ctx, models.NewNote("Groceries", "milk"))
//	pinned := notes.FetchAll(ctx, store.Eq("pinned", true), store.Desc("created_at"))
//
// Every operation runs on the queue of the controller's store context: the container's
// view context for [Main], or a context owned by the controller for [Background].
//
// Operations do not return errors. Failures are logged as "recordkit error" and passed to
// the handler set with [WithErrorHandler]; callers receive an empty result.
package controller
