package live

import (
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/livecoll/internal/metrics"
	"github.com/roach88/livecoll/internal/objectstore"
)

// Token is the cancellation handle of a subscription. It is the only live
// type that may be used from any goroutine.
//
// A token is active until Invalidate. While active and attached it holds
// the engine subscription and the connection it was installed on; a
// deferred token is active but unattached until its queue runs the attach.
type Token struct {
	id string

	mu          sync.Mutex
	conn        *Connection
	sub         *objectstore.Subscription
	invalidated bool
	// ownsConn is set when conn was opened for a deferred attach and must
	// be closed with the token.
	ownsConn bool
}

func newToken() *Token {
	return &Token{id: uuid.Must(uuid.NewV7()).String()}
}

// ID identifies the token in logs.
func (t *Token) ID() string {
	return t.id
}

// IsValid reports whether Invalidate has not been called.
func (t *Token) IsValid() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.invalidated
}

// IsAttached reports whether the engine subscription is installed.
func (t *Token) IsAttached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sub != nil
}

// SuppressNext skips the callback for the next change. It does nothing
// before a deferred subscription attaches or after invalidation.
func (t *Token) SuppressNext() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil || t.sub == nil {
		return
	}
	t.sub.SuppressNext()
}

// Invalidate stops deliveries. It reports whether this call performed the
// transition; later calls return false.
func (t *Token) Invalidate() bool {
	t.mu.Lock()
	if t.invalidated {
		t.mu.Unlock()
		return false
	}
	t.invalidated = true
	sub, conn, owns := t.sub, t.conn, t.ownsConn
	t.sub, t.conn, t.ownsConn = nil, nil, false
	t.mu.Unlock()

	if sub != nil {
		sub.Unregister()
	}
	if owns && conn != nil {
		closeOnQueue(conn)
	}
	metrics.TokensInvalidated.Inc()
	return true
}

// attachLocked records an installed subscription. The caller holds t.mu
// and has checked t.invalidated.
func (t *Token) attachLocked(conn *Connection, sub *objectstore.Subscription, owns bool) {
	t.conn, t.sub, t.ownsConn = conn, sub, owns
}

// closeOnQueue closes a queue-bound connection from any goroutine.
func closeOnQueue(c *Connection) {
	task := func() { _ = c.Close() }
	if c.queue.IsCurrent() {
		task()
		return
	}
	c.queue.Async(task)
}
