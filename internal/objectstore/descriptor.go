package objectstore

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/livecoll/internal/ir"
)

// Descriptor names a collection independently of any Conn. It holds only
// immutable data and may be sent to other goroutines; resolving it on a Conn
// of the same database rebuilds the collection there.
type Descriptor struct {
	Identity string
	// Version is the version the source collection was reading.
	Version int64
	Kind    Kind
	Query   Query
	Owner   Owner

	// pinned is the source version of a frozen collection.
	pinned *Version
}

// Frozen reports whether the descriptor resolves to a frozen collection.
func (d Descriptor) Frozen() bool {
	return d.pinned != nil
}

func (c *collection) Descriptor() Descriptor {
	v, _ := c.source()
	return Descriptor{
		Identity: c.conn.db.identity,
		Version:  v.number,
		Kind:     c.kind,
		Query:    c.query,
		Owner:    c.owner,
		pinned:   c.pinned,
	}
}

// Resolve rebuilds the collection named by d on c. A Conn behind the
// descriptor's version advances first (outside a write). Frozen
// descriptors resolve to the same pinned version.
func (c *Conn) Resolve(d Descriptor) (Collection, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if d.Identity != c.db.identity {
		return nil, errors.Wrapf(ErrWrongDatabase, "resolve %s on %s", d.Identity, c.db.identity)
	}
	if d.pinned == nil && c.draft == nil && c.version.number < d.Version {
		if _, err := c.Advance(); err != nil {
			return nil, err
		}
	}

	if d.Kind == KindResults {
		col, err := c.Results(d.Query)
		if err != nil {
			return nil, err
		}
		if d.pinned != nil {
			col.(*collection).pinned = d.pinned
		}
		return col, nil
	}

	var want ir.CollectionKind
	switch d.Kind {
	case KindList:
		want = ir.CollectionList
	case KindSet:
		want = ir.CollectionSet
	case KindDictionary:
		want = ir.CollectionDictionary
	default:
		return nil, errors.Newf("resolve: unknown collection kind %d", d.Kind)
	}

	v, _ := c.view()
	if d.pinned != nil {
		v = d.pinned
	}
	col, err := c.rootedAt(d.Kind, want, d.Owner, v)
	if err != nil {
		return nil, err
	}
	col.pinned = d.pinned
	return col, nil
}
