package objectstore

import (
	"maps"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/store"
)

// table holds the rows of one object type. keys keeps insertion order;
// rows are never mutated once stored.
type table struct {
	keys []string
	rows map[string]ir.IRObject
}

func newTable() *table {
	return &table{rows: map[string]ir.IRObject{}}
}

func (t *table) clone() *table {
	return &table{keys: slices.Clone(t.keys), rows: maps.Clone(t.rows)}
}

func (t *table) put(key string, row ir.IRObject) {
	if _, ok := t.rows[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.rows[key] = row
}

func (t *table) delete(key string) bool {
	if _, ok := t.rows[key]; !ok {
		return false
	}
	delete(t.rows, key)
	if i := slices.Index(t.keys, key); i >= 0 {
		t.keys = slices.Delete(t.keys, i, i+1)
	}
	return true
}

// Version is an immutable committed state of a database. A Version is safe
// to read from any goroutine.
type Version struct {
	number int64
	tables map[string]*table
}

func emptyVersion(s *ir.Schema) *Version {
	v := &Version{tables: map[string]*table{}}
	for _, obj := range s.Objects {
		v.tables[obj.Name] = newTable()
	}
	return v
}

// Number is the commit number that produced the version (0 for empty).
func (v *Version) Number() int64 {
	return v.number
}

// Count returns the number of objects of a type.
func (v *Version) Count(objType string) int {
	if t, ok := v.tables[objType]; ok {
		return len(t.keys)
	}
	return 0
}

// Row returns the object of a type with the given primary key.
func (v *Version) Row(objType string, key ir.IRValue) (ir.IRObject, bool) {
	k, err := KeyString(key)
	if err != nil {
		return nil, false
	}
	return v.row(objType, k)
}

func (v *Version) row(objType, key string) (ir.IRObject, bool) {
	t, ok := v.tables[objType]
	if !ok {
		return nil, false
	}
	row, ok := t.rows[key]
	return row, ok
}

// sealed returns a Version sharing every table of v. Further writes to the
// source must clone a table before touching it.
func (v *Version) sealed() *Version {
	return &Version{number: v.number, tables: maps.Clone(v.tables)}
}

// apply replays a stored mutation onto v in place.
func (v *Version) apply(m store.Mutation) error {
	t, ok := v.tables[m.Type]
	if !ok {
		return errors.Wrapf(ErrUnknownType, "replay %s", m.Type)
	}
	key, err := KeyString(m.Key)
	if err != nil {
		return err
	}
	switch m.Op {
	case store.OpPut:
		t.put(key, m.Data)
	case store.OpDelete:
		t.delete(key)
	default:
		return errors.Newf("replay: unknown op %q", m.Op)
	}
	return nil
}

// KeyString encodes a primary key as the canonical JSON string used to
// index tables.
func KeyString(key ir.IRValue) (string, error) {
	switch key.(type) {
	case ir.IRString, ir.IRInt:
	default:
		return "", errors.Wrapf(ErrSchemaViolation, "primary key must be string or int, got %T", key)
	}
	data, err := ir.MarshalCanonical(key)
	if err != nil {
		return "", errors.Wrap(err, "encode key")
	}
	return string(data), nil
}
