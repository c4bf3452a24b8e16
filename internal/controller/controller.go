package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/recordkit/internal/store"
)

// OperatingQueue selects which store context a [Controller] works on.
type OperatingQueue int

const (
	// Background gives the controller its own background context.
	Background OperatingQueue = iota
	// Main shares the container's view context.
	Main
)

func (q OperatingQueue) String() string {
	switch q {
	case Main:
		return "main"
	default:
		return "background"
	}
}

// ParseOperatingQueue parses "main" or "background" (the default for an empty string).
func ParseOperatingQueue(s string) (OperatingQueue, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "background":
		return Background, nil
	case "main", "view":
		return Main, nil
	default:
		return Background, fmt.Errorf("unknown operating queue %q", s)
	}
}

// ManagedObjectConvertible is a domain object that can insert itself into a store context.
type ManagedObjectConvertible interface {
	Put(c *store.Context) error
}

// ObjectConvertible is a managed record that converts back to its domain object.
type ObjectConvertible[O any] interface {
	store.Record
	ToObject() O
}

// ErrorHandler receives every error a controller reports.
type ErrorHandler func(error)

type options struct {
	queue   OperatingQueue
	logger  *log.Logger
	onError ErrorHandler
}

// Option configures a [Controller].
type Option func(*options)

// WithOperatingQueue sets the queue the controller works on. Defaults to [Background].
func WithOperatingQueue(q OperatingQueue) Option {
	return func(o *options) { o.queue = q }
}

// WithLogger sets the logger errors are reported to. Defaults to the container's logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithErrorHandler registers fn to receive reported errors in addition to the log.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(o *options) { o.onError = fn }
}

// Controller is a CRUD facade over a [store.Container] for domain objects O persisted as
// records R. Operations never return errors: failures are logged and yield empty results.
type Controller[O ManagedObjectConvertible, R ObjectConvertible[O]] struct {
	container *store.Container
	context   *store.Context
	queue     OperatingQueue
	owned     bool
	logger    *log.Logger
	onError   ErrorHandler
}

// New creates a controller on container. A [Background] controller owns a new background
// context, released by [Controller.Close].
func New[O ManagedObjectConvertible, R ObjectConvertible[O]](container *store.Container, opts ...Option) (*Controller[O, R], error) {
	if container == nil {
		return nil, fmt.Errorf("container is required")
	}

	o := options{queue: Background, logger: container.Logger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = container.Logger()
	}

	c := &Controller[O, R]{
		container: container,
		queue:     o.queue,
		logger:    o.logger,
		onError:   o.onError,
	}

	switch o.queue {
	case Main:
		c.context = container.ViewContext()
	default:
		ctx, err := container.NewBackgroundContext()
		if err != nil {
			return nil, fmt.Errorf("failed to create background context: %w", err)
		}
		c.context = ctx
		c.owned = true
	}

	return c, nil
}

// Queue returns the queue the controller operates on.
func (c *Controller[O, R]) Queue() OperatingQueue { return c.queue }

// Context returns the store context the controller operates on.
func (c *Controller[O, R]) Context() *store.Context { return c.context }

// Close releases the controller's background context. Main controllers leave the view
// context to the container.
func (c *Controller[O, R]) Close() error {
	if c.owned {
		c.context.Close()
	}
	return nil
}

// report logs err and hands it to the error handler.
func (c *Controller[O, R]) report(err error) {
	c.logger.Error("recordkit error", "message", err.Error())
	if c.onError != nil {
		c.onError(err)
	}
}

// perform runs fn on the controller's queue, reporting queue failures.
func (c *Controller[O, R]) perform(ctx context.Context, fn func(ctx context.Context)) {
	if err := c.context.PerformAndWait(ctx, fn); err != nil {
		c.report(err)
	}
}

func (c *Controller[O, R]) entity() (*store.Entity, bool) {
	e, ok := store.EntityFor[R](c.container)
	if !ok {
		var zero R
		c.report(fmt.Errorf("could not build fetch request for %T", zero))
	}
	return e, ok
}

func (c *Controller[O, R]) fetchRequest(predicate *store.Predicate, sorts []store.SortDescriptor) (*store.FetchRequest, bool) {
	e, ok := c.entity()
	if !ok {
		return nil, false
	}
	req := store.NewFetchRequest(e.Name)
	req.Predicate = predicate
	req.SortDescriptors = sorts
	return req, true
}

// FetchAll returns every object matching predicate (nil matches all), ordered by sorts.
func (c *Controller[O, R]) FetchAll(ctx context.Context, predicate *store.Predicate, sorts ...store.SortDescriptor) []O {
	return c.FetchPage(ctx, predicate, 0, 0, sorts...)
}

// FetchPage is [Controller.FetchAll] capped at limit objects after skipping offset.
// A limit of zero or less returns every match.
func (c *Controller[O, R]) FetchPage(ctx context.Context, predicate *store.Predicate, limit, offset int, sorts ...store.SortDescriptor) []O {
	objects := []O{}

	req, ok := c.fetchRequest(predicate, sorts)
	if !ok {
		return objects
	}
	req.FetchLimit = limit
	req.FetchOffset = offset

	c.perform(ctx, func(ctx context.Context) {
		records, err := c.context.Fetch(ctx, req)
		if err != nil {
			c.report(err)
			return
		}
		for _, rec := range records {
			if r, ok := rec.(R); ok {
				objects = append(objects, r.ToObject())
			}
		}
	})
	return objects
}

// Fetch returns the object with id. It reports false, and logs, when id does not name an R.
func (c *Controller[O, R]) Fetch(ctx context.Context, id store.ObjectID) (O, bool) {
	var (
		object O
		found  bool
	)

	c.perform(ctx, func(ctx context.Context) {
		rec, err := c.context.ExistingObject(ctx, id)
		if err != nil {
			c.report(err)
			return
		}
		r, ok := rec.(R)
		if !ok {
			var zero R
			c.report(fmt.Errorf("fetched %T is not %T", rec, zero))
			return
		}
		object, found = r.ToObject(), true
	})
	return object, found
}

// CountAll returns how many objects match predicate.
func (c *Controller[O, R]) CountAll(ctx context.Context, predicate *store.Predicate) int {
	req, ok := c.fetchRequest(predicate, nil)
	if !ok {
		return 0
	}

	var n int
	c.perform(ctx, func(ctx context.Context) {
		count, err := c.context.Count(ctx, req)
		if err != nil {
			c.report(err)
			return
		}
		n = count
	})
	return n
}

// DeleteAll deletes every object matching predicate directly in the store and returns how
// many were removed. Pending changes in the controller's context are untouched.
func (c *Controller[O, R]) DeleteAll(ctx context.Context, predicate *store.Predicate) int {
	req, ok := c.fetchRequest(predicate, nil)
	if !ok {
		return 0
	}

	var n int
	c.perform(ctx, func(ctx context.Context) {
		res, err := c.context.Execute(ctx, store.NewBatchDeleteRequest(req))
		if err != nil {
			c.report(err)
			return
		}
		n = res.Count
	})
	return n
}

// DeleteObject deletes the object with id and saves the context.
func (c *Controller[O, R]) DeleteObject(ctx context.Context, id store.ObjectID) {
	c.perform(ctx, func(ctx context.Context) {
		rec, err := c.context.ExistingObject(ctx, id)
		if err != nil {
			c.report(err)
			return
		}
		if err := c.context.Delete(rec); err != nil {
			c.report(err)
			return
		}
		c.save(ctx)
	})
}

// Save inserts object and saves the context.
func (c *Controller[O, R]) Save(ctx context.Context, object O) {
	c.SaveAll(ctx, []O{object})
}

// SaveAll inserts every object and saves them together. If any object fails to insert,
// nothing is saved.
func (c *Controller[O, R]) SaveAll(ctx context.Context, objects []O) {
	c.perform(ctx, func(ctx context.Context) {
		for _, object := range objects {
			if err := object.Put(c.context); err != nil {
				c.report(err)
				c.context.Rollback()
				return
			}
		}
		c.save(ctx)
	})
}

// Replace deletes the object with id and saves newObject in its place.
// The delete and the save commit separately; a failed save leaves the object deleted.
func (c *Controller[O, R]) Replace(ctx context.Context, id store.ObjectID, newObject O) {
	c.perform(ctx, func(ctx context.Context) {
		c.DeleteObject(ctx, id)
		c.Save(ctx, newObject)
	})
}

// save commits pending changes, rolling them back when the commit fails.
func (c *Controller[O, R]) save(ctx context.Context) {
	if !c.context.HasChanges() {
		return
	}
	if err := c.context.Save(ctx); err != nil {
		c.report(err)
		c.context.Rollback()
	}
}
