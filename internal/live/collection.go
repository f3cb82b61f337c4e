package live

import (
	"iter"

	"github.com/cockroachdb/errors"

	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/objectstore"
)

// Element is one materialized member of a collection.
type Element struct {
	// Object is set for object elements and for dictionary values linking
	// to an existing object.
	Object *Object
	// Value is the primitive element, or the key for dictionaries.
	Value ir.IRValue
	// Mapped is the stored dictionary value.
	Mapped ir.IRValue
}

// Collection is a live (or frozen) collection owned by a Connection.
type Collection struct {
	conn  *Connection
	inner objectstore.Collection
}

// QueryOption configures Objects.
type QueryOption func(*objectstore.Query)

// Where filters results with p. Repeated Where options are combined with
// And.
func Where(p objectstore.Predicate) QueryOption {
	return func(q *objectstore.Query) {
		switch cur := q.Where.(type) {
		case nil:
			q.Where = p
		case objectstore.And:
			q.Where = append(cur, p)
		default:
			q.Where = objectstore.And{cur, p}
		}
	}
}

// SortBy orders results by keyPath. Later options break ties of earlier
// ones.
func SortBy(keyPath string, descending bool) QueryOption {
	return func(q *objectstore.Query) {
		q.Sort = append(q.Sort, objectstore.SortKey{KeyPath: keyPath, Descending: descending})
	}
}

// Objects returns the ordered results of objType.
func (c *Connection) Objects(objType string, opts ...QueryOption) (*Collection, error) {
	if err := c.verifyOpen(); err != nil {
		return nil, err
	}
	q := objectstore.Query{Type: objType}
	for _, opt := range opts {
		opt(&q)
	}
	inner, err := c.inner.Results(q)
	if err != nil {
		return nil, translate(err, "objects "+objType)
	}
	return &Collection{conn: c, inner: inner}, nil
}

// List returns the list property of an object.
func (c *Connection) List(objType string, key ir.IRValue, property string) (*Collection, error) {
	return c.rooted(c.inner.List, objType, key, property)
}

// Set returns the set property of an object.
func (c *Connection) Set(objType string, key ir.IRValue, property string) (*Collection, error) {
	return c.rooted(c.inner.Set, objType, key, property)
}

// Dictionary returns the keys of a map property of an object.
func (c *Connection) Dictionary(objType string, key ir.IRValue, property string) (*Collection, error) {
	return c.rooted(c.inner.Dictionary, objType, key, property)
}

func (c *Connection) rooted(fn func(objectstore.Owner) (objectstore.Collection, error), objType string, key ir.IRValue, property string) (*Collection, error) {
	if err := c.verifyOpen(); err != nil {
		return nil, err
	}
	inner, err := fn(objectstore.Owner{Type: objType, Key: key, Property: property})
	if err != nil {
		return nil, translate(err, objType+"."+property)
	}
	return &Collection{conn: c, inner: inner}, nil
}

// Connection returns the owning connection.
func (c *Collection) Connection() *Connection {
	return c.conn
}

// Kind returns the collection variant.
func (c *Collection) Kind() objectstore.Kind {
	return c.inner.Kind()
}

// ObjectType returns the element object type, or "" for primitives.
func (c *Collection) ObjectType() string {
	return c.inner.ObjectType()
}

// TypeName renders the kind and element type, e.g. "List<Dog>".
func (c *Collection) TypeName() string {
	return c.inner.TypeName()
}

// IsFrozen reports whether the collection is pinned to one version.
func (c *Collection) IsFrozen() bool {
	return c.inner.Frozen()
}

// IsValid reports whether the collection can still be read. It is false on
// the wrong goroutine.
func (c *Collection) IsValid() bool {
	if c.conn.verifyThread() != nil {
		return false
	}
	return c.inner.IsValid()
}

func (c *Collection) verify() error {
	if err := c.conn.verifyThread(); err != nil {
		return err
	}
	if !c.inner.IsValid() {
		return newError(CodeStaleCollection, "%s is no longer valid", c.TypeName())
	}
	return nil
}

// Count returns the number of elements.
func (c *Collection) Count() (int, error) {
	if err := c.verify(); err != nil {
		return 0, err
	}
	n, err := c.inner.Size()
	return n, translate(err, "count")
}

// Get materializes the element at i.
func (c *Collection) Get(i int) (Element, error) {
	if err := c.verify(); err != nil {
		return Element{}, err
	}
	e, err := c.inner.Get(i)
	if err != nil {
		return Element{}, translate(err, "get")
	}
	return c.materialize(c.inner, e), nil
}

// materialize wraps an engine element read from src. Objects of frozen
// sources read the pinned version.
func (c *Collection) materialize(src objectstore.Collection, e objectstore.Element) Element {
	out := Element{Value: e.Value, Mapped: e.Mapped}
	if e.IsObject() {
		o := &Object{conn: c.conn, typ: e.Type, key: e.Key}
		if src.Frozen() {
			o.frozen = src.View()
		}
		out.Object = o
	}
	return out
}

// Freeze returns a frozen copy of the collection at its current view.
// Inside a write the copy includes the write's changes so far.
func (c *Collection) Freeze() (*Collection, error) {
	if err := c.verify(); err != nil {
		return nil, err
	}
	snap, err := c.inner.Snapshot()
	if err != nil {
		return nil, translate(err, "freeze")
	}
	return &Collection{conn: c.conn, inner: snap}, nil
}

// All enumerates the collection in batches. Iteration stops after yielding
// an error.
func (c *Collection) All() iter.Seq2[Element, error] {
	return func(yield func(Element, error) bool) {
		s, err := c.Enumerate()
		if err != nil {
			yield(Element{}, err)
			return
		}
		defer s.Close()
		for {
			batch, err := s.NextBatch(BatchCapacity)
			if err != nil {
				yield(Element{}, err)
				return
			}
			if len(batch) == 0 {
				return
			}
			for _, e := range batch {
				if !yield(e, nil) {
					return
				}
			}
		}
	}
}

// values reads every element as a plain value for aggregation: the row for
// objects, the mapped value for dictionaries and the element otherwise.
func (c *Collection) values() ([]objectstore.Element, error) {
	if err := c.verify(); err != nil {
		return nil, err
	}
	n, err := c.inner.Size()
	if err != nil {
		return nil, translate(err, "read")
	}
	out := make([]objectstore.Element, n)
	for i := range out {
		if out[i], err = c.inner.Get(i); err != nil {
			return nil, errors.Wrapf(translate(err, "read"), "element %d", i)
		}
	}
	return out, nil
}
