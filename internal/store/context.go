package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queueSize = 64

type queueKey struct{}

// job states for PerformAndWait
const (
	jobPending int32 = iota
	jobStarted
	jobAbandoned
)

// Context is a unit of work over a [Container]. Work submitted with [Context.Perform] or
// [Context.PerformAndWait] runs one block at a time on the context's own goroutine.
//
// A context tracks registered records (fetched or inserted) and pending inserts and
// deletes. Nothing reaches the database until [Context.Save].
type Context struct {
	id        string
	name      string
	container *Container
	logger    *log.Logger

	queue  chan func()
	done   chan struct{}
	once   sync.Once
	cancel context.CancelFunc

	mu         sync.Mutex
	registered map[ObjectID]Record
	inserted   map[ObjectID]Record
	deleted    map[ObjectID]Record
}

func newContext(container *Container, name string) (*Context, error) {
	subCtx, cancel := context.WithCancel(context.Background())

	c := &Context{
		id:         name + "-" + uuid.NewString(),
		name:       name,
		container:  container,
		queue:      make(chan func(), queueSize),
		done:       make(chan struct{}),
		cancel:     cancel,
		registered: make(map[ObjectID]Record),
		inserted:   make(map[ObjectID]Record),
		deleted:    make(map[ObjectID]Record),
	}
	c.logger = container.logger.With("context", c.id)

	changes, err := container.bus.subscribe(subCtx)
	if err != nil {
		cancel()
		return nil, err
	}

	go c.run()
	go c.merge(changes)

	return c, nil
}

// ID returns the unique id of the context, used as the origin of its change sets.
func (c *Context) ID() string { return c.id }

// Name returns "view" or "background".
func (c *Context) Name() string { return c.name }

// Container returns the owning container.
func (c *Context) Container() *Container { return c.container }

func (c *Context) run() {
	for {
		select {
		case fn := <-c.queue:
			fn()
		case <-c.done:
			return
		}
	}
}

// merge evicts objects committed by other contexts.
func (c *Context) merge(changes <-chan ChangeSet) {
	for cs := range changes {
		if cs.Origin == c.id {
			continue
		}
		ids := cs.objects()
		if err := c.Perform(func(context.Context) { c.evict(ids...) }); err != nil {
			return
		}
	}
}

func (c *Context) onQueue(ctx context.Context) context.Context {
	return context.WithValue(ctx, queueKey{}, c)
}

func (c *Context) isOnQueue(ctx context.Context) bool {
	owner, _ := ctx.Value(queueKey{}).(*Context)
	return owner == c
}

func (c *Context) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Perform enqueues fn and returns without waiting for it.
func (c *Context) Perform(fn func(ctx context.Context)) error {
	if c.isClosed() {
		return ErrContextClosed
	}

	job := func() { fn(c.onQueue(context.Background())) }
	select {
	case c.queue <- job:
		return nil
	case <-c.done:
		return ErrContextClosed
	}
}

// PerformAndWait runs fn on the context's queue and blocks until it returns. Registrations
// without pending changes are released when a top-level block finishes.
//
// If ctx is done or the context closes before fn starts, fn is skipped and the
// corresponding error is returned. Once fn has started the call waits for it.
// Calls made with the ctx handed to a running block execute inline.
func (c *Context) PerformAndWait(ctx context.Context, fn func(ctx context.Context)) error {
	if c.isOnQueue(ctx) {
		fn(ctx)
		return nil
	}
	if c.isClosed() {
		return ErrContextClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var state atomic.Int32
	finished := make(chan struct{})
	job := func() {
		defer close(finished)
		if !state.CompareAndSwap(jobPending, jobStarted) {
			return
		}
		defer c.releaseUnchanged()
		fn(c.onQueue(ctx))
	}

	select {
	case c.queue <- job:
	case <-c.done:
		return ErrContextClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-c.done:
		if state.CompareAndSwap(jobPending, jobAbandoned) {
			return ErrContextClosed
		}
	case <-ctx.Done():
		if state.CompareAndSwap(jobPending, jobAbandoned) {
			return ctx.Err()
		}
	}

	<-finished
	return nil
}

// Close stops the queue and the change subscription. Pending changes are discarded.
func (c *Context) Close() {
	c.once.Do(func() {
		close(c.done)
		c.cancel()
		c.container.forget(c)
	})
}

func (c *Context) db() *sqlx.DB { return c.container.db }

func (c *Context) entity(name string) (*Entity, error) {
	e, ok := c.container.Entity(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	return e, nil
}

// ObjectID returns the id of r. Records without a key have no id yet.
func (c *Context) ObjectID(r Record) (ObjectID, error) {
	e, err := c.entity(r.EntityName())
	if err != nil {
		return ObjectID{}, err
	}
	id := e.ObjectID(r)
	if id.IsZero() {
		return ObjectID{}, fmt.Errorf("%w: %s record has no key", ErrInvalidObjectID, e.Name)
	}
	return id, nil
}

// Insert registers r as a pending upsert, assigning a uuid key when r has none.
func (c *Context) Insert(r Record) (ObjectID, error) {
	e, err := c.entity(r.EntityName())
	if err != nil {
		return ObjectID{}, err
	}
	if r.PrimaryKey() == "" {
		r.SetPrimaryKey(uuid.NewString())
	}

	id := e.ObjectID(r)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.deleted, id)
	c.inserted[id] = r
	c.registered[id] = r
	return id, nil
}

// Delete marks r for deletion on the next save and unregisters it.
func (c *Context) Delete(r Record) error {
	id, err := c.ObjectID(r)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inserted, id)
	delete(c.registered, id)
	c.deleted[id] = r
	return nil
}

// ExistingObject returns the record for id. Pending inserts are served from the context;
// everything else is read from the database. Records pending deletion are reported as not
// found.
func (c *Context) ExistingObject(ctx context.Context, id ObjectID) (Record, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidObjectID, id.String())
	}
	e, err := c.entity(id.Entity)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	_, gone := c.deleted[id]
	r, ok := c.inserted[id]
	c.mu.Unlock()
	if gone {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	if ok {
		return r, nil
	}

	rec := e.New()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", strings.Join(e.Columns, ", "), e.Table, e.Key)
	if err := c.db().GetContext(ctx, rec, c.db().Rebind(query), id.Key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
		}
		return nil, fmt.Errorf("failed to load %s: %w", id, err)
	}

	return c.register(id, rec), nil
}

// register records rec as the current state of id and returns it. A pending insert for
// id wins over the stored row.
func (c *Context) register(id ObjectID, rec Record) Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pending, ok := c.inserted[id]; ok {
		return pending
	}
	c.registered[id] = rec
	return rec
}

// releaseUnchanged drops registrations without pending changes so the registry holds only
// what the next save needs.
func (c *Context) releaseUnchanged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.registered {
		if _, pending := c.inserted[id]; !pending {
			delete(c.registered, id)
		}
	}
}

func (c *Context) evict(ids ...ObjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if _, pending := c.inserted[id]; pending {
			continue
		}
		delete(c.registered, id)
	}
}

// IsRegistered reports whether id is currently registered in the context.
func (c *Context) IsRegistered(id ObjectID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.registered[id]
	return ok
}

// Fetch runs req against the persistent store. Rows with a pending insert are returned as
// the pending instance; records pending deletion are skipped. Unsaved inserts that match no
// stored row are not included.
func (c *Context) Fetch(ctx context.Context, req *FetchRequest) ([]Record, error) {
	if req == nil {
		return nil, errors.New("fetch request is required")
	}
	e, err := c.entity(req.EntityName)
	if err != nil {
		return nil, err
	}
	if err := req.validate(e); err != nil {
		return nil, err
	}

	query, args := req.selectSQL(e, e.Columns)
	rows, err := c.db().QueryxContext(ctx, c.db().Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", e.Name, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec := e.New()
		if err := rows.StructScan(rec); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", e.Name, err)
		}

		id := e.ObjectID(rec)
		c.mu.Lock()
		_, gone := c.deleted[id]
		c.mu.Unlock()
		if gone {
			continue
		}
		records = append(records, c.register(id, rec))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// Count returns how many persisted rows match req. Sorting and limits are ignored.
func (c *Context) Count(ctx context.Context, req *FetchRequest) (int, error) {
	if req == nil {
		return 0, errors.New("fetch request is required")
	}
	e, err := c.entity(req.EntityName)
	if err != nil {
		return 0, err
	}
	if err := req.validate(e); err != nil {
		return 0, err
	}

	query, args := req.countSQL(e)
	var n int
	if err := c.db().GetContext(ctx, &n, c.db().Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", e.Name, err)
	}
	return n, nil
}

// Execute runs a batch delete in one transaction. Pending changes are untouched; the
// deleted objects are evicted from the registry and announced to other contexts.
func (c *Context) Execute(ctx context.Context, req *BatchDeleteRequest) (*BatchDeleteResult, error) {
	if req == nil || req.FetchRequest == nil {
		return nil, errors.New("batch delete request is required")
	}
	e, err := c.entity(req.FetchRequest.EntityName)
	if err != nil {
		return nil, err
	}
	if err := req.FetchRequest.validate(e); err != nil {
		return nil, err
	}

	probe := &FetchRequest{EntityName: e.Name, Predicate: req.FetchRequest.Predicate}

	tx, err := c.db().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var keys []string
	keyQuery, args := probe.selectSQL(e, []string{e.Key})
	if err := tx.SelectContext(ctx, &keys, tx.Rebind(keyQuery), args...); err != nil {
		return nil, fmt.Errorf("failed to select %s rows to delete: %w", e.Name, err)
	}

	delQuery, args := probe.deleteSQL(e)
	if _, err := tx.ExecContext(ctx, tx.Rebind(delQuery), args...); err != nil {
		return nil, fmt.Errorf("failed to delete %s rows: %w", e.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch delete: %w", err)
	}

	ids := make([]ObjectID, len(keys))
	for i, k := range keys {
		ids[i] = ObjectID{Entity: e.Name, Key: k}
	}
	c.evict(ids...)
	c.container.publish(ChangeSet{Origin: c.id, Deleted: ids})

	return &BatchDeleteResult{Count: len(ids), ObjectIDs: ids}, nil
}

// HasChanges reports whether the context has pending inserts or deletes.
func (c *Context) HasChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inserted)+len(c.deleted) > 0
}

// Save commits pending changes in one transaction: upserts first, then deletes.
// On failure nothing is committed and the pending changes are kept.
func (c *Context) Save(ctx context.Context) error {
	c.mu.Lock()
	inserted := make(map[ObjectID]Record, len(c.inserted))
	for id, r := range c.inserted {
		inserted[id] = r
	}
	deleted := make(map[ObjectID]Record, len(c.deleted))
	for id, r := range c.deleted {
		deleted[id] = r
	}
	c.mu.Unlock()

	if len(inserted)+len(deleted) == 0 {
		return nil
	}

	tx, err := c.db().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	dialect := c.container.dialect
	cs := ChangeSet{Origin: c.id}

	for id, r := range inserted {
		e, err := c.entity(id.Entity)
		if err != nil {
			return err
		}
		query := dialect.UpsertSQL(e.Table, e.Columns, e.Key, e.updateColumns())
		if _, err := tx.NamedExecContext(ctx, query, r); err != nil {
			return fmt.Errorf("failed to save %s: %w", id, err)
		}
		cs.Saved = append(cs.Saved, id)
	}

	for id := range deleted {
		e, err := c.entity(id.Entity)
		if err != nil {
			return err
		}
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", e.Table, e.Key)
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), id.Key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
		cs.Deleted = append(cs.Deleted, id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit save: %w", err)
	}

	c.mu.Lock()
	for id, r := range inserted {
		if c.inserted[id] == r {
			delete(c.inserted, id)
		}
	}
	for id, r := range deleted {
		if c.deleted[id] == r {
			delete(c.deleted, id)
		}
	}
	c.mu.Unlock()

	c.logger.Debug("saved context", "saved", len(cs.Saved), "deleted", len(cs.Deleted))
	c.container.publish(cs)
	return nil
}

// Rollback discards pending changes. Pending inserts are unregistered.
func (c *Context) Rollback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.inserted {
		delete(c.registered, id)
	}
	clear(c.inserted)
	clear(c.deleted)
}

// Reset discards pending changes and every registered record.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.registered)
	clear(c.inserted)
	clear(c.deleted)
}
