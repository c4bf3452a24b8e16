package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
)

// Container owns the database handle, the entity registry and the shared view context.
type Container struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *log.Logger
	bus     *bus

	mu       sync.RWMutex
	entities map[string]*Entity
	view     *Context
	contexts map[string]*Context
	closed   bool
}

// Option configures a [Container].
type Option func(*Container)

// WithLogger sets the logger used by the container and its contexts.
func WithLogger(l *log.Logger) Option {
	return func(c *Container) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEntities registers entities while the container is built.
func WithEntities(entities ...*Entity) Option {
	return func(c *Container) {
		for _, e := range entities {
			c.entities[e.Name] = e
		}
	}
}

// NewContainer builds a container over db, applies the dialect's connection settings and
// creates the view context.
func NewContainer(db *sqlx.DB, dialect Dialect, opts ...Option) (*Container, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if dialect == nil {
		d, err := DialectFor(db.DriverName())
		if err != nil {
			return nil, err
		}
		dialect = d
	}

	c := &Container{
		db:       db,
		dialect:  dialect,
		logger:   log.New(io.Discard),
		entities: make(map[string]*Entity),
		contexts: make(map[string]*Context),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, e := range c.entities {
		if err := e.validate(); err != nil {
			return nil, err
		}
	}

	for _, stmt := range dialect.ConfigureDB() {
		if _, err := db.Exec(stmt); err != nil {
			c.logger.Warn("failed to configure database", "dialect", dialect.Name(), "statement", stmt, "error", err)
		}
	}

	c.bus = newBus(c.logger)

	view, err := c.newContext("view")
	if err != nil {
		c.bus.close()
		return nil, fmt.Errorf("failed to create view context: %w", err)
	}
	c.view = view

	return c, nil
}

// Register adds entities to the registry. Re-registering a name replaces it.
func (c *Container) Register(entities ...*Entity) error {
	for _, e := range entities {
		if err := e.validate(); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entities {
		c.entities[e.Name] = e
	}
	return nil
}

// Entity returns the registered entity called name.
func (c *Container) Entity(name string) (*Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entities[name]
	return e, ok
}

// Entities returns every registered entity sorted by name.
func (c *Container) Entities() []*Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Entity, 0, len(c.entities))
	for _, e := range c.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EntityFor returns the registered entity whose constructor builds records of type R.
func EntityFor[R Record](c *Container) (*Entity, bool) {
	for _, e := range c.Entities() {
		if _, ok := e.New().(R); ok {
			return e, true
		}
	}
	return nil, false
}

// DB returns the underlying database handle.
func (c *Container) DB() *sqlx.DB { return c.db }

// Dialect returns the container's SQL dialect.
func (c *Container) Dialect() Dialect { return c.dialect }

// Logger returns the container's logger.
func (c *Container) Logger() *log.Logger { return c.logger }

// ViewContext returns the shared main context.
func (c *Container) ViewContext() *Context { return c.view }

// NewBackgroundContext returns a new context with its own queue. Callers close it.
func (c *Container) NewBackgroundContext() (*Context, error) {
	return c.newContext("background")
}

// Observe streams every change set committed by any context until ctx is done.
func (c *Container) Observe(ctx context.Context) (<-chan ChangeSet, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrContainerClosed
	}
	return c.bus.subscribe(ctx)
}

func (c *Container) newContext(name string) (*Context, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrContainerClosed
	}
	c.mu.Unlock()

	ctx, err := newContext(c, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.contexts[ctx.ID()] = ctx
	c.mu.Unlock()
	return ctx, nil
}

func (c *Container) forget(ctx *Context) {
	c.mu.Lock()
	delete(c.contexts, ctx.ID())
	c.mu.Unlock()
}

func (c *Container) publish(cs ChangeSet) {
	if err := c.bus.publish(cs); err != nil {
		c.logger.Warn("failed to publish change set", "origin", cs.Origin, "error", err)
	}
}

// Close closes every live context and the notification bus. The database handle is left
// open for its owner.
func (c *Container) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	live := make([]*Context, 0, len(c.contexts))
	for _, ctx := range c.contexts {
		live = append(live, ctx)
	}
	c.mu.Unlock()

	for _, ctx := range live {
		ctx.Close()
	}
	return c.bus.close()
}
