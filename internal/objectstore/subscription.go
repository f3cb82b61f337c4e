package objectstore

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/metrics"
)

// Callback receives the change set of one delivery. It runs on the
// goroutine that called Conn.Deliver.
type Callback func(ChangeSet)

// Subscription is an engine-level registration for change sets of one
// collection.
//
// The first delivery reports the changes between the version the
// subscription was created at and the delivered version (usually none).
// Later deliveries happen only for a newer version with a non-empty change
// set, so a version is never reported twice. After the collection's root is
// deleted the subscription reports once and goes quiet.
type Subscription struct {
	coll     *collection
	keyPaths [][]string
	cb       Callback

	mu           sync.Mutex
	active       bool
	suppressNext bool

	// owner goroutine only
	delivered   bool
	finished    bool
	lastVersion int64
	prev        image
}

// Subscribe registers cb for change sets of the collection, delivered by
// Conn.Deliver. keyPaths restrict which property changes count as
// modifications; they apply to object collections only.
func (c *collection) Subscribe(cb Callback, keyPaths []string) (*Subscription, error) {
	if c.pinned != nil {
		return nil, errors.Wrap(ErrFrozen, "subscribe")
	}
	if c.conn.draft != nil {
		return nil, errors.Wrap(ErrInWrite, "subscribe")
	}
	if _, err := c.check(); err != nil {
		return nil, err
	}
	kps, err := c.parseKeyPaths(keyPaths)
	if err != nil {
		return nil, err
	}

	s := &Subscription{
		coll:        c,
		keyPaths:    kps,
		cb:          cb,
		active:      true,
		lastVersion: c.conn.version.number,
	}
	s.prev = c.capture(kps)
	c.conn.subs = append(c.conn.subs, s)
	return s, nil
}

func (c *collection) parseKeyPaths(keyPaths []string) ([][]string, error) {
	if len(keyPaths) == 0 {
		return nil, nil
	}
	objType := c.ObjectType()
	if objType == "" {
		return nil, errors.Wrapf(ErrInvalidKeyPath, "keypaths require an object collection, %s has primitive elements", c.TypeName())
	}
	out := make([][]string, 0, len(keyPaths))
	for _, kp := range keyPaths {
		path, err := parseKeyPath(c.conn.db.schema, objType, kp)
		if err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, nil
}

// capture records element identities and fingerprints of the current view.
func (c *collection) capture(keyPaths [][]string) image {
	st := c.current()
	v, _ := c.source()
	img := image{
		ids:         make([]string, len(st.entries)),
		fps:         make([]string, len(st.entries)),
		rootDeleted: st.rootDeleted,
	}
	primitiveList := c.kind == KindList && !c.prop.IsLink()
	for i, e := range st.entries {
		img.ids[i] = e.id
		if primitiveList {
			// occurrence suffixes would defeat the sequence diff
			img.ids[i] = e.id[:strings.LastIndexByte(e.id, '#')]
		}
		img.fps[i] = c.fingerprint(v, e.elem, keyPaths)
	}
	return img
}

func (c *collection) fingerprint(v *Version, e Element, keyPaths [][]string) string {
	var (
		fp  string
		err error
	)
	switch {
	case c.kind == KindDictionary && e.IsObject():
		fp, err = ir.ValueFingerprint(ir.IRArray{e.Mapped, c.project(v, e.Row, keyPaths)})
	case c.kind == KindDictionary:
		fp, err = ir.ValueFingerprint(e.Mapped)
	case e.IsObject():
		fp, err = ir.RowFingerprint(c.project(v, e.Row, keyPaths))
	default:
		fp, err = ir.ValueFingerprint(e.Value)
	}
	if err != nil {
		// stored values always encode
		return ""
	}
	return fp
}

// project restricts row to the observed keypaths, following links.
func (c *collection) project(v *Version, row ir.IRObject, keyPaths [][]string) ir.IRObject {
	if len(keyPaths) == 0 {
		return row
	}
	out := make(ir.IRObject, len(keyPaths))
	for _, path := range keyPaths {
		out[strings.Join(path, ".")] = resolveKeyPath(v, c.conn.db.schema, c.ObjectType(), row, path)
	}
	return out
}

func (s *Subscription) deliver(v *Version) {
	if s.finished || !s.isActive() {
		return
	}
	if s.delivered && v.number <= s.lastVersion {
		return
	}

	cur := s.coll.capture(s.keyPaths)
	ordered := !(s.coll.kind == KindList && !s.coll.prop.IsLink())
	changes := diffImages(ordered, s.prev, cur)

	first := !s.delivered
	s.delivered = true
	s.lastVersion = v.number
	s.prev = cur
	if cur.rootDeleted {
		s.finished = true
	}

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	if !first {
		if changes.Empty() {
			s.mu.Unlock()
			return
		}
		if s.suppressNext {
			s.suppressNext = false
			s.mu.Unlock()
			metrics.NotificationsSuppressed.WithLabelValues("suppress_next").Inc()
			return
		}
	}
	s.mu.Unlock()

	s.cb(changes)
}

func (s *Subscription) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Unregister stops deliveries. Safe from any goroutine; idempotent.
func (s *Subscription) Unregister() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// SuppressNext absorbs the next non-empty change set without calling the
// callback. Safe from any goroutine.
func (s *Subscription) SuppressNext() {
	s.mu.Lock()
	if s.active {
		s.suppressNext = true
	}
	s.mu.Unlock()
}
