package live

import (
	"sync/atomic"

	"github.com/roach88/livecoll/internal/objectstore"
)

// Reference carries a collection to another goroutine. It exposes no data;
// the only operation is Resolve on the destination goroutine's connection.
// A reference resolves once.
type Reference struct {
	desc     objectstore.Descriptor
	resolved atomic.Bool
}

// ThreadSafeReference captures the collection for handoff.
func (c *Collection) ThreadSafeReference() (*Reference, error) {
	if err := c.verify(); err != nil {
		return nil, err
	}
	return &Reference{desc: c.inner.Descriptor()}, nil
}

// Resolve rebuilds the collection on conn, which must be open on the same
// database. A live collection's connection advances if it is behind the
// version the reference was taken at.
func (r *Reference) Resolve(conn *Connection) (*Collection, error) {
	if err := conn.verifyOpen(); err != nil {
		return nil, err
	}
	if r.desc.Identity != conn.db.Identity() {
		return nil, newError(CodeReferenceResolved, "reference to %s cannot resolve on %s", r.desc.Identity, conn.db.Identity())
	}
	if !r.resolved.CompareAndSwap(false, true) {
		return nil, newError(CodeReferenceResolved, "reference already resolved")
	}
	if !r.desc.Frozen() && !conn.inner.InWrite() && conn.inner.Version() < r.desc.Version {
		conn.detachSessions("resolve")
	}
	inner, err := conn.inner.Resolve(r.desc)
	if err != nil {
		return nil, translate(err, "resolve reference")
	}
	return &Collection{conn: conn, inner: inner}, nil
}
