package live

import (
	"context"
	"strings"

	"github.com/roach88/livecoll/internal/config"
	"github.com/roach88/livecoll/internal/dispatch"
	"github.com/roach88/livecoll/internal/logging"
	"github.com/roach88/livecoll/internal/metrics"
	"github.com/roach88/livecoll/internal/objectstore"
)

// Callback receives notifications for a collection. changes is nil for the
// initial notification and when a re-evaluation found nothing. err is
// reserved and currently always nil.
type Callback func(c *Collection, changes *ChangeSet, err error)

type subscribeOptions struct {
	keyPaths       []string
	queue          *dispatch.Queue
	initialChanges bool
}

// SubscribeOption configures Subscribe.
type SubscribeOption func(*subscribeOptions)

// WithKeyPaths restricts modifications to changes of the given properties.
// Keypaths may traverse links ("owner.name").
func WithKeyPaths(keyPaths ...string) SubscribeOption {
	return func(o *subscribeOptions) {
		o.keyPaths = append(o.keyPaths, keyPaths...)
	}
}

// OnQueue delivers callbacks on q. When q is not the connection's own
// queue the subscription is attached asynchronously on a connection opened
// on q.
func OnQueue(q *dispatch.Queue) SubscribeOption {
	return func(o *subscribeOptions) {
		o.queue = q
	}
}

// WithInitialChanges reports the changes between subscribing and the first
// delivery instead of a nil initial notification.
func WithInitialChanges() SubscribeOption {
	return func(o *subscribeOptions) {
		o.initialChanges = true
	}
}

// Subscribe registers cb for notifications about the collection and
// returns its token.
func (c *Collection) Subscribe(cb Callback, opts ...SubscribeOption) (*Token, error) {
	var o subscribeOptions
	for _, opt := range opts {
		opt(&o)
	}
	for _, kp := range o.keyPaths {
		if strings.Contains(kp, "@") {
			return nil, newError(CodeUnsupportedKeyPath, "collection operators are not supported in observed keypath %q", kp)
		}
	}

	if err := c.conn.verifyOpen(); err != nil {
		return nil, err
	}
	if c.conn.inner.InWrite() {
		return nil, newError(CodeUnsupportedNotificationContext, "cannot subscribe to %s inside a write transaction", c.TypeName())
	}
	if c.inner.Frozen() {
		return nil, newError(CodeUnsupportedNotificationContext, "cannot subscribe to frozen %s", c.TypeName())
	}
	if !c.inner.IsValid() {
		return nil, newError(CodeStaleCollection, "%s is no longer valid", c.TypeName())
	}

	t := newToken()
	if o.queue == nil || o.queue == c.conn.queue {
		if err := c.subscribeLocal(t, cb, o); err != nil {
			return nil, err
		}
		return t, nil
	}

	desc := c.inner.Descriptor()
	cfg := c.conn.cfg
	q := o.queue
	if !q.Async(func() { attachDeferred(t, cfg, desc, cb, o) }) {
		logging.Logger.Warnw("deferred subscription dropped: queue stopped", "token", t.id, "queue", q.Label())
		metrics.DeferredAttaches.WithLabelValues("failed").Inc()
	}
	return t, nil
}

// subscribeLocal installs the engine subscription on c's connection and
// attaches it to t.
func (c *Collection) subscribeLocal(t *Token, cb Callback, o subscribeOptions) error {
	sub, err := c.inner.Subscribe(c.wrapCallback(cb, !o.initialChanges), o.keyPaths)
	if err != nil {
		return translate(err, "subscribe")
	}
	t.mu.Lock()
	t.attachLocked(c.conn, sub, false)
	t.mu.Unlock()
	c.conn.reg.addToken(t)

	// a queue-bound connection delivers the initial notification on its
	// own; others deliver on their next commit, write or refresh
	if q := c.conn.queue; q != nil {
		q.Async(c.conn.deliverPending)
	}
	return nil
}

// wrapCallback applies the delivery policy to engine change sets.
func (c *Collection) wrapCallback(cb Callback, ignoreInitial bool) objectstore.Callback {
	return func(cs objectstore.ChangeSet) {
		switch {
		case ignoreInitial:
			ignoreInitial = false
			metrics.NotificationsDelivered.WithLabelValues("initial").Inc()
			cb(c, nil, nil)
		case cs.Empty():
			metrics.NotificationsDelivered.WithLabelValues("empty").Inc()
			cb(c, nil, nil)
		case cs.RootDeleted && len(cs.Deletions) == 0:
			metrics.NotificationsSuppressed.WithLabelValues("root_deleted").Inc()
		default:
			metrics.NotificationsDelivered.WithLabelValues("changes").Inc()
			cb(c, newChangeSet(cs), nil)
		}
	}
}

// attachDeferred runs on the target queue. It opens a connection there,
// resolves the collection and installs the subscription, unless the token
// was invalidated first. Failures are logged and dropped.
func attachDeferred(t *Token, cfg config.Config, desc objectstore.Descriptor, cb Callback, o subscribeOptions) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.invalidated {
		metrics.DeferredAttaches.WithLabelValues("abandoned").Inc()
		logging.Logger.Debugw("deferred subscription abandoned", "token", t.id)
		return
	}

	fail := func(conn *Connection, err error) {
		if conn != nil {
			_ = conn.Close()
		}
		metrics.DeferredAttaches.WithLabelValues("failed").Inc()
		logging.Logger.Warnw("deferred subscription failed", "token", t.id, "error", err)
	}

	conn, err := Open(context.Background(), cfg)
	if err != nil {
		fail(nil, err)
		return
	}
	inner, err := conn.inner.Resolve(desc)
	if err != nil {
		fail(conn, translate(err, "resolve"))
		return
	}
	coll := &Collection{conn: conn, inner: inner}
	sub, err := inner.Subscribe(coll.wrapCallback(cb, !o.initialChanges), o.keyPaths)
	if err != nil {
		fail(conn, translate(err, "subscribe"))
		return
	}
	t.attachLocked(conn, sub, true)
	conn.reg.addToken(t)
	conn.queue.Async(conn.deliverPending)

	metrics.DeferredAttaches.WithLabelValues("attached").Inc()
	logging.Logger.Debugw("deferred subscription attached", "token", t.id, "conn", conn.id, "queue", conn.queueLabel())
}
