// Package models defines the domain objects recordkit persists and their managed records.
//
// Each entity comes in two halves:
//
// 1. Domain objects: plain values callers create and read
//   - [Note] : a titled note with tags and a pinned flag
//
// 2. Managed records: [store.Record] implementations carrying `db` tags
//   - [NoteRecord] : the persisted form of a [Note], tags encoded as a JSON array
//
// Domain objects implement Put to insert themselves into a store context; records implement ToObject to convert back.
// [NoteEntity] registers the mapping with a container, and [NoteFilter] builds predicates for common queries.
package models
