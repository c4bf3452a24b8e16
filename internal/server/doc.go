// Package server exposes notes over an HTTP JSON API built on gin.
//
// # Routes
//
// Every route except the health check lives under /api/v1:
//
//	GET    /health            liveness, version and uptime
//	GET    /api/v1/notes       list notes (filters: pinned, q, tag, before; sort, order, limit, offset)
//	GET    /api/v1/notes/count count notes matching the same filters
//	GET    /api/v1/notes/:id   fetch one note by key
//	POST   /api/v1/notes       create a note
//	PUT    /api/v1/notes/:id   replace a note, keeping its key and creation time
//	DELETE /api/v1/notes/:id   delete one note
//	DELETE /api/v1/notes       delete every note matching the filters; at least one filter is required
//
// Responses use the [Response] envelope. Errors carry the HTTP status as code and no data.
//
// # Middleware
//
// [Recovery] turns panics into 500 responses, [RequestLogger] logs each request through charmbracelet/log and
// [RateLimit] rejects requests beyond a token bucket from golang.org/x/time/rate with 429.
//
// # Notes
//
// Handlers depend on the [NoteController] interface, satisfied by the generic note controller. Because the
// controller reports failures through its logger instead of returning them, handlers confirm writes by fetching
// the note afterwards and answer 500 when it is missing.
package server
