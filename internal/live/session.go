package live

import (
	"github.com/roach88/livecoll/internal/logging"
	"github.com/roach88/livecoll/internal/metrics"
	"github.com/roach88/livecoll/internal/objectstore"
)

// BatchCapacity is the lookahead buffer size of a Session. NextBatch never
// returns more elements.
const BatchCapacity = 16

// Session enumerates one pass over a collection. Exactly one of live and
// snapshot is set until the session finishes; a live session turns into a
// snapshot session at most once.
type Session struct {
	coll *Collection

	live     objectstore.Collection
	snapshot objectstore.Collection

	next     int
	buf      [BatchCapacity]Element
	finished bool
}

// Enumerate starts a session. Inside a write the session enumerates a
// snapshot of the write's state; otherwise it shares the live collection
// until its connection detaches it.
func (c *Collection) Enumerate() (*Session, error) {
	if err := c.verify(); err != nil {
		return nil, err
	}
	s := &Session{coll: c}
	switch {
	case c.inner.Frozen():
		s.snapshot = c.inner
	case c.conn.inner.InWrite():
		snap, err := c.inner.Snapshot()
		if err != nil {
			return nil, translate(err, "enumerate")
		}
		s.snapshot = snap
	default:
		s.live = c.inner
		c.conn.reg.addSession(s)
	}
	return s, nil
}

// IsDetached reports whether the session reads a snapshot.
func (s *Session) IsDetached() bool {
	return s.snapshot != nil
}

// NextBatch returns up to maxN elements, clamped to BatchCapacity. The
// returned slice is reused by the next call. An empty batch ends the
// session; later calls return empty batches.
func (s *Session) NextBatch(maxN int) ([]Element, error) {
	if err := s.coll.conn.verifyThread(); err != nil {
		return nil, err
	}
	if s.finished {
		return nil, nil
	}
	src := s.source()
	if !src.IsValid() {
		return nil, newError(CodeStaleCollection, "%s was invalidated during enumeration", s.coll.TypeName())
	}

	n := min(max(maxN, 1), BatchCapacity)
	size, err := src.Size()
	if err != nil {
		return nil, translate(err, "next batch")
	}

	count := 0
	for ; count < n && s.next < size; count++ {
		e, err := src.Get(s.next)
		if err != nil {
			return nil, translate(err, "next batch")
		}
		s.buf[count] = s.coll.materialize(src, e)
		s.next++
	}
	if count == 0 {
		s.finish()
		return nil, nil
	}
	clear(s.buf[count:])
	return s.buf[:count], nil
}

func (s *Session) source() objectstore.Collection {
	if s.snapshot != nil {
		return s.snapshot
	}
	return s.live
}

// detach converts a live session to a snapshot of the version it has been
// reading. Called by the registry before the connection moves.
func (s *Session) detach() {
	if s.live == nil {
		return
	}
	snap, err := s.live.Snapshot()
	if err != nil {
		// an invalid source stays live and fails the next batch
		logging.Logger.Debugw("session detach failed", "conn", s.coll.conn.id, "error", err)
		return
	}
	s.live, s.snapshot = nil, snap
	metrics.SessionsDetached.Inc()
}

func (s *Session) finish() {
	if s.live != nil {
		s.coll.conn.reg.removeSession(s)
	}
	s.live, s.snapshot = nil, nil
	clear(s.buf[:])
	s.finished = true
}

// Close abandons the session. Safe to call after exhaustion.
func (s *Session) Close() {
	if s.coll.conn.verifyThread() != nil || s.finished {
		return
	}
	s.finish()
}
