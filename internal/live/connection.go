package live

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/roach88/livecoll/internal/config"
	"github.com/roach88/livecoll/internal/dispatch"
	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/logging"
	"github.com/roach88/livecoll/internal/metrics"
	"github.com/roach88/livecoll/internal/objectstore"
)

// Connection is a thread-affine handle on a logical database. It may only
// be used from the goroutine that opened it.
type Connection struct {
	id    string
	cfg   config.Config
	db    *objectstore.DB
	inner *objectstore.Conn

	owner int64
	queue *dispatch.Queue // nil unless opened on a queue worker

	reg        *registry
	stopListen func()
	closed     bool
}

// Open opens a connection bound to the calling goroutine. Connections with
// the same config identity share one database. Opened on a dispatch queue
// worker, the connection refreshes itself on that queue after every commit.
func Open(ctx context.Context, cfg config.Config) (*Connection, error) {
	db, err := objectstore.Open(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "open connection")
	}

	c := &Connection{
		id:    uuid.Must(uuid.NewV7()).String(),
		cfg:   db.Config(),
		db:    db,
		inner: db.Connect(),
		owner: dispatch.GoroutineID(),
		queue: dispatch.Current(),
		reg:   newRegistry(),
	}
	if q := c.queue; q != nil {
		c.stopListen = db.Listen(func(*objectstore.Version) {
			q.Async(c.autoRefresh)
		})
	}

	metrics.OpenConnections.Inc()
	logging.Logger.Debugw("connection opened",
		"conn", c.id,
		"identity", db.Identity(),
		"version", c.inner.Version(),
		"queue", c.queueLabel(),
	)
	return c, nil
}

// ID identifies the connection in logs.
func (c *Connection) ID() string {
	return c.id
}

// Config returns the configuration of the underlying database.
func (c *Connection) Config() config.Config {
	return c.cfg
}

// Queue returns the dispatch queue the connection is bound to, or nil.
func (c *Connection) Queue() *dispatch.Queue {
	return c.queue
}

// Version returns the database version the connection reads.
func (c *Connection) Version() int64 {
	return c.inner.Version()
}

// Schema returns the object schema of the database.
func (c *Connection) Schema() *ir.Schema {
	return c.db.Schema()
}

// IsClosed reports whether Close was called.
func (c *Connection) IsClosed() bool {
	return c.closed
}

// InWrite reports whether a write transaction is open.
func (c *Connection) InWrite() bool {
	return c.inner.InWrite()
}

func (c *Connection) queueLabel() string {
	if c.queue == nil {
		return ""
	}
	return c.queue.Label()
}

// verifyThread fails unless called from the owning goroutine.
func (c *Connection) verifyThread() error {
	if g := dispatch.GoroutineID(); g != c.owner {
		return newError(CodeThreadAffinity, "connection %s used from goroutine %d, owned by goroutine %d", c.id, g, c.owner)
	}
	return nil
}

func (c *Connection) verifyOpen() error {
	if err := c.verifyThread(); err != nil {
		return err
	}
	if c.closed {
		return errors.Wrapf(objectstore.ErrClosed, "connection %s", c.id)
	}
	return nil
}

// BeginWrite delivers pending notifications, then opens a write transaction
// on the latest version. Live enumeration sessions are detached first.
func (c *Connection) BeginWrite(ctx context.Context) error {
	if err := c.verifyOpen(); err != nil {
		return err
	}
	if c.inner.InWrite() {
		return newError(CodeWriteTransaction, "connection %s is already in a write transaction", c.id)
	}
	c.inner.Deliver()
	if c.closed {
		// a callback closed the connection
		return errors.Wrapf(objectstore.ErrClosed, "connection %s", c.id)
	}

	c.detachSessions("begin write")
	if err := c.inner.BeginWrite(ctx); err != nil {
		return translate(err, "begin write")
	}
	return nil
}

// CommitWrite commits the open write and delivers the resulting
// notifications on the calling goroutine.
func (c *Connection) CommitWrite(ctx context.Context) error {
	if err := c.verifyOpen(); err != nil {
		return err
	}
	if !c.inner.InWrite() {
		return newError(CodeWriteTransaction, "connection %s is not in a write transaction", c.id)
	}
	if err := c.inner.Commit(ctx); err != nil {
		return translate(err, "commit write")
	}
	c.inner.Deliver()
	return nil
}

// CancelWrite discards the open write.
func (c *Connection) CancelWrite() error {
	if err := c.verifyOpen(); err != nil {
		return err
	}
	if !c.inner.InWrite() {
		return newError(CodeWriteTransaction, "connection %s is not in a write transaction", c.id)
	}
	return translate(c.inner.Cancel(), "cancel write")
}

// Write runs fn inside a write transaction, committing when fn returns nil
// and cancelling otherwise.
func (c *Connection) Write(ctx context.Context, fn func() error) error {
	if err := c.BeginWrite(ctx); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if c.inner.InWrite() {
			_ = c.inner.Cancel()
		}
		return err
	}
	return c.CommitWrite(ctx)
}

// Put inserts or replaces an object inside the open write.
func (c *Connection) Put(objType string, row ir.IRObject) error {
	if err := c.verifyOpen(); err != nil {
		return err
	}
	return translate(c.inner.Put(objType, row), "put")
}

// Delete removes an object inside the open write.
func (c *Connection) Delete(objType string, key ir.IRValue) error {
	if err := c.verifyOpen(); err != nil {
		return err
	}
	return translate(c.inner.Delete(objType, key), "delete")
}

// Object returns an accessor for an object in the current view.
func (c *Connection) Object(objType string, key ir.IRValue) (*Object, error) {
	if err := c.verifyOpen(); err != nil {
		return nil, err
	}
	if _, ok := c.db.Schema().Object(objType); !ok {
		return nil, errors.Wrapf(objectstore.ErrUnknownType, "object %s", objType)
	}
	if _, ok := c.inner.Row(objType, key); !ok {
		return nil, errors.Wrapf(objectstore.ErrNotFound, "object %s %s", objType, ir.String(key))
	}
	return &Object{conn: c, typ: objType, key: key}, nil
}

// Refresh advances to the latest version and delivers notifications. It
// reports whether the version changed. Inside a write it does nothing.
func (c *Connection) Refresh() (bool, error) {
	if err := c.verifyOpen(); err != nil {
		return false, err
	}
	if c.inner.InWrite() {
		return false, nil
	}
	if c.db.Latest().Number() != c.inner.Version() {
		c.detachSessions("refresh")
	}
	advanced, err := c.inner.Advance()
	if err != nil {
		return false, translate(err, "refresh")
	}
	c.inner.Deliver()
	return advanced, nil
}

// autoRefresh runs on the connection's queue after a commit.
func (c *Connection) autoRefresh() {
	if c.closed || c.inner.InWrite() {
		return
	}
	if _, err := c.Refresh(); err != nil {
		logging.Logger.Warnw("auto refresh failed", "conn", c.id, "error", err)
	}
}

// deliverPending runs engine deliveries without advancing.
func (c *Connection) deliverPending() {
	if c.closed {
		return
	}
	c.inner.Deliver()
}

func (c *Connection) detachSessions(reason string) {
	if n := c.reg.detachSessions(); n > 0 {
		logging.Logger.Debugw("sessions detached", "conn", c.id, "reason", reason, "count", n)
	}
}

// Close detaches live sessions, invalidates every token registered on the
// connection, cancels an open write and releases the database.
func (c *Connection) Close() error {
	if err := c.verifyThread(); err != nil {
		return err
	}
	if c.closed {
		return nil
	}

	c.detachSessions("close")
	invalidated := c.reg.invalidateTokens()
	if c.stopListen != nil {
		c.stopListen()
	}
	c.inner.Close()
	c.closed = true

	metrics.OpenConnections.Dec()
	logging.Logger.Debugw("connection closed", "conn", c.id, "tokens_invalidated", invalidated)
	return c.db.Close()
}
