// Package store implements the object-persistence engine that recordkit's controllers wrap.
//
// A [Container] owns the database connection, the SQL [Dialect], a registry of [Entity]
// descriptions and a shared view [Context]. Contexts confine their work to a serial queue
// and track registered records alongside pending inserts and deletes until [Context.Save]
// commits them in one transaction.
//
// Reads are described by a [FetchRequest] (entity, [Predicate], [SortDescriptor] list,
// limit, offset). A [BatchDeleteRequest] removes every matching row directly in the store.
//
// Every save and batch delete publishes a [ChangeSet] on the container's bus; other live
// contexts evict the affected objects so the next access reloads them.
//
// Records are plain structs carrying `db` tags for their entity's columns:
//
//	type NoteRecord struct {
//		ID    string `db:"id"`
//		Title string `db:"title"`
//	}
//
//	func (r *NoteRecord) EntityName() string        { return "note" }
//	func (r *NoteRecord) PrimaryKey() string        { return r.ID }
//	func (r *NoteRecord) SetPrimaryKey(key string)  { r.ID = key }
package store
