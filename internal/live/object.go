package live

import (
	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/objectstore"
)

// Object is an accessor for one stored object. Live objects read the
// connection's current view; objects materialized from a frozen collection
// read the version it is pinned to.
type Object struct {
	conn   *Connection
	typ    string
	key    ir.IRValue
	frozen *objectstore.Version
}

// Type returns the object type.
func (o *Object) Type() string {
	return o.typ
}

// Key returns the primary key.
func (o *Object) Key() ir.IRValue {
	return o.key
}

// IsFrozen reports whether the object reads a pinned version.
func (o *Object) IsFrozen() bool {
	return o.frozen != nil
}

func (o *Object) row() (ir.IRObject, bool) {
	if o.frozen != nil {
		return o.frozen.Row(o.typ, o.key)
	}
	if o.conn.closed {
		return nil, false
	}
	return o.conn.inner.Row(o.typ, o.key)
}

// IsInvalidated reports whether the object no longer exists in the view it
// reads.
func (o *Object) IsInvalidated() bool {
	_, ok := o.row()
	return !ok
}

// Row returns a copy of every property.
func (o *Object) Row() (ir.IRObject, error) {
	if err := o.conn.verifyThread(); err != nil {
		return nil, err
	}
	row, ok := o.row()
	if !ok {
		return nil, newError(CodeObjectInvalidated, "%s %s was deleted", o.typ, ir.String(o.key))
	}
	return row.Clone(), nil
}

// Get reads one property. Link properties return the target's key.
func (o *Object) Get(property string) (ir.IRValue, error) {
	row, err := o.Row()
	if err != nil {
		return nil, err
	}
	v, ok := row[property]
	if !ok {
		return nil, newError(CodeInvalidKeyPath, "%s has no property %q", o.typ, property)
	}
	return v, nil
}
