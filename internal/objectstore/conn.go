package objectstore

import (
	"context"
	"maps"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/store"
)

// Conn is an engine handle pinned to one version. A Conn is not safe for
// concurrent use; only Subscription.Unregister and SuppressNext may be
// called from other goroutines.
type Conn struct {
	db      *DB
	version *Version
	draft   *draft
	subs    []*Subscription
	closed  bool
}

// draft is an open write transaction. view.tables is owned by the draft;
// tables listed in owned may be mutated in place, others are shared with
// an earlier version or a sealed snapshot and are cloned on first write.
type draft struct {
	base      *Version
	view      *Version
	owned     map[string]bool
	mutations []store.Mutation
	gen       uint64
}

// Connect pins a new Conn to the latest version.
func (db *DB) Connect() *Conn {
	return &Conn{db: db, version: db.Latest()}
}

// DB returns the database the Conn reads.
func (c *Conn) DB() *DB {
	return c.db
}

// Version returns the pinned version number. During a write it is the
// version the write started from.
func (c *Conn) Version() int64 {
	return c.version.number
}

// InWrite reports whether a write transaction is open.
func (c *Conn) InWrite() bool {
	return c.draft != nil
}

// IsClosed reports whether Close was called.
func (c *Conn) IsClosed() bool {
	return c.closed
}

// view returns what reads currently observe and a generation that changes
// with every mutation of an open write.
func (c *Conn) view() (*Version, uint64) {
	if c.draft != nil {
		return c.draft.view, c.draft.gen
	}
	return c.version, 0
}

// Row reads an object from the current view.
func (c *Conn) Row(objType string, key ir.IRValue) (ir.IRObject, bool) {
	v, _ := c.view()
	return v.Row(objType, key)
}

// Advance moves the Conn to the latest committed version. It reports
// whether the version changed.
func (c *Conn) Advance() (bool, error) {
	if c.closed {
		return false, ErrClosed
	}
	if c.draft != nil {
		return false, errors.Wrap(ErrInWrite, "advance")
	}
	latest := c.db.Latest()
	if latest == c.version {
		return false, nil
	}
	c.version = latest
	return true, nil
}

// BeginWrite takes the database write lock and advances to the latest
// version. Blocks until the lock is free or ctx is done.
func (c *Conn) BeginWrite(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	if c.draft != nil {
		return ErrAlreadyInWrite
	}
	if err := c.db.acquireWrite(ctx); err != nil {
		return err
	}
	c.version = c.db.Latest()
	c.draft = &draft{
		base:  c.version,
		view:  c.version.sealed(),
		owned: map[string]bool{},
	}
	return nil
}

// Commit publishes the open write. A write without mutations releases the
// lock without creating a version.
func (c *Conn) Commit(ctx context.Context) error {
	if c.draft == nil {
		return ErrNotInWrite
	}
	d := c.draft
	defer c.endWrite()

	if len(d.mutations) == 0 {
		return nil
	}
	next, err := c.db.publish(ctx, d)
	if err != nil {
		return errors.Wrap(err, "commit")
	}
	c.version = next
	return nil
}

// Cancel discards the open write.
func (c *Conn) Cancel() error {
	if c.draft == nil {
		return ErrNotInWrite
	}
	c.endWrite()
	return nil
}

func (c *Conn) endWrite() {
	c.draft = nil
	c.db.releaseWrite()
}

// seal freezes the current draft state for a snapshot taken mid-write.
func (c *Conn) seal() *Version {
	d := c.draft
	sealed := d.view.sealed()
	clear(d.owned)
	return sealed
}

func (d *draft) table(objType string) *table {
	t := d.view.tables[objType]
	if !d.owned[objType] {
		t = t.clone()
		d.view.tables[objType] = t
		d.owned[objType] = true
	}
	return t
}

// Put inserts or replaces an object. Missing properties get zero values
// (empty collections, null links and optionals).
func (c *Conn) Put(objType string, row ir.IRObject) error {
	if c.closed {
		return ErrClosed
	}
	if c.draft == nil {
		return errors.Wrap(ErrNotInWrite, "put")
	}
	obj, ok := c.db.schema.Object(objType)
	if !ok {
		return errors.Wrapf(ErrUnknownType, "put %s", objType)
	}
	normalized, err := c.normalize(obj, row)
	if err != nil {
		return errors.Wrapf(err, "put %s", objType)
	}
	pk := normalized[obj.PrimaryKey]
	key, err := KeyString(pk)
	if err != nil {
		return err
	}

	c.draft.table(objType).put(key, normalized)
	c.draft.mutations = append(c.draft.mutations, store.Mutation{
		Op: store.OpPut, Type: objType, Key: pk, Data: normalized,
	})
	c.draft.gen++
	return nil
}

// Delete removes an object. Links to it are left in place and read as
// missing.
func (c *Conn) Delete(objType string, key ir.IRValue) error {
	if c.closed {
		return ErrClosed
	}
	if c.draft == nil {
		return errors.Wrap(ErrNotInWrite, "delete")
	}
	if _, ok := c.db.schema.Object(objType); !ok {
		return errors.Wrapf(ErrUnknownType, "delete %s", objType)
	}
	k, err := KeyString(key)
	if err != nil {
		return err
	}
	if _, ok := c.draft.view.row(objType, k); !ok {
		return errors.Wrapf(ErrNotFound, "delete %s %s", objType, k)
	}

	c.draft.table(objType).delete(k)
	c.draft.mutations = append(c.draft.mutations, store.Mutation{
		Op: store.OpDelete, Type: objType, Key: key,
	})
	c.draft.gen++
	return nil
}

// normalize validates row against the schema and fills defaults.
func (c *Conn) normalize(obj *ir.ObjectSchema, row ir.IRObject) (ir.IRObject, error) {
	for name := range row {
		if _, ok := obj.Property(name); !ok {
			return nil, errors.Wrapf(ErrSchemaViolation, "unknown property %q", name)
		}
	}
	if ir.IsNull(row[obj.PrimaryKey]) {
		return nil, errors.Wrapf(ErrSchemaViolation, "missing primary key %q", obj.PrimaryKey)
	}

	out := make(ir.IRObject, len(obj.Properties))
	for _, p := range obj.Properties {
		v, present := row[p.Name]
		if !present || v == nil {
			v = ir.IRNull{}
		}
		nv, err := c.normalizeValue(p, v)
		if err != nil {
			return nil, errors.Wrapf(err, "property %q", p.Name)
		}
		out[p.Name] = nv
	}
	return out.Clone(), nil
}

func (c *Conn) normalizeValue(p ir.Property, v ir.IRValue) (ir.IRValue, error) {
	switch p.Collection {
	case ir.CollectionList, ir.CollectionSet:
		if ir.IsNull(v) {
			return ir.IRArray{}, nil
		}
		arr, ok := v.(ir.IRArray)
		if !ok {
			return nil, errors.Wrapf(ErrSchemaViolation, "expected array for %s, got %T", p.TypeString(), v)
		}
		out := make(ir.IRArray, 0, len(arr))
		for _, elem := range arr {
			if err := c.checkScalar(p, elem, false); err != nil {
				return nil, err
			}
			if p.Collection == ir.CollectionSet && slices.ContainsFunc(out, func(x ir.IRValue) bool { return ir.Equal(x, elem) }) {
				continue
			}
			out = append(out, elem)
		}
		if p.Collection == ir.CollectionSet {
			slices.SortStableFunc(out, func(a, b ir.IRValue) int {
				cmp, _ := ir.Compare(a, b)
				return cmp
			})
		}
		return out, nil

	case ir.CollectionDictionary:
		if ir.IsNull(v) {
			return ir.IRObject{}, nil
		}
		m, ok := v.(ir.IRObject)
		if !ok {
			return nil, errors.Wrapf(ErrSchemaViolation, "expected object for %s, got %T", p.TypeString(), v)
		}
		for _, k := range slices.Sorted(maps.Keys(m)) {
			// link dictionaries may hold null values
			if err := c.checkScalar(p, m[k], p.IsLink()); err != nil {
				return nil, errors.Wrapf(err, "key %q", k)
			}
		}
		return m, nil
	}

	if ir.IsNull(v) {
		if p.Optional {
			return ir.IRNull{}, nil
		}
		switch p.Kind {
		case ir.KindString:
			return ir.IRString(""), nil
		case ir.KindInt:
			return ir.IRInt(0), nil
		case ir.KindBool:
			return ir.IRBool(false), nil
		}
	}
	if err := c.checkScalar(p, v, p.Optional); err != nil {
		return nil, err
	}
	return v, nil
}

// checkScalar validates one element value. Link values must be the primary
// key of an object that exists in the open write.
func (c *Conn) checkScalar(p ir.Property, v ir.IRValue, nullable bool) error {
	if ir.IsNull(v) {
		if nullable {
			return nil
		}
		return errors.Wrapf(ErrSchemaViolation, "null not allowed for %s", p.TypeString())
	}
	switch p.Kind {
	case ir.KindString:
		if _, ok := v.(ir.IRString); ok {
			return nil
		}
	case ir.KindInt:
		if _, ok := v.(ir.IRInt); ok {
			return nil
		}
	case ir.KindBool:
		if _, ok := v.(ir.IRBool); ok {
			return nil
		}
	case ir.KindLink:
		k, err := KeyString(v)
		if err != nil {
			return err
		}
		if _, ok := c.draft.view.row(p.Target, k); !ok {
			return errors.Wrapf(ErrSchemaViolation, "link to missing %s %s", p.Target, k)
		}
		return nil
	}
	return errors.Wrapf(ErrSchemaViolation, "expected %s, got %T", p.Kind, v)
}

// Close cancels any open write and unregisters every subscription. The
// Conn's collections become invalid.
func (c *Conn) Close() {
	if c.closed {
		return
	}
	if c.draft != nil {
		c.endWrite()
	}
	for _, s := range c.subs {
		s.Unregister()
	}
	c.subs = nil
	c.closed = true
}

// Deliver runs pending subscription callbacks for the pinned version, in
// subscription order. Does nothing during a write.
func (c *Conn) Deliver() {
	if c.closed || c.draft != nil {
		return
	}
	pending := slices.Clone(c.subs)
	for _, s := range pending {
		if c.closed || c.draft != nil {
			return
		}
		s.deliver(c.version)
	}
	c.subs = slices.DeleteFunc(c.subs, func(s *Subscription) bool { return !s.isActive() })
}
