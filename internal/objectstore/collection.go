package objectstore

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/livecoll/internal/ir"
)

// Kind is a collection capability variant.
type Kind int

const (
	KindResults Kind = iota + 1
	KindList
	KindSet
	KindDictionary
)

func (k Kind) String() string {
	switch k {
	case KindResults:
		return "Results"
	case KindList:
		return "List"
	case KindSet:
		return "Set"
	case KindDictionary:
		return "Dictionary"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Element is one materialized member of a collection.
type Element struct {
	// Type, Key and Row identify an object element. Row is nil for
	// primitive elements and for null dictionary links.
	Type string
	Key  ir.IRValue
	Row  ir.IRObject

	// Value is the primitive element, or the key for dictionaries.
	Value ir.IRValue
	// Mapped is the stored dictionary value (the link key for link
	// dictionaries).
	Mapped ir.IRValue
}

// IsObject reports whether the element is an object.
func (e Element) IsObject() bool {
	return e.Row != nil
}

// Owner names the object and property that root a list, set or dictionary.
type Owner struct {
	Type     string
	Key      ir.IRValue
	Property string
}

// Collection is the shared protocol of all collection kinds.
type Collection interface {
	Kind() Kind
	// ObjectType is the element object type, or "" for primitive
	// elements.
	ObjectType() string
	// TypeName renders the kind with its element type, e.g. "List<Dog>".
	TypeName() string
	Size() (int, error)
	Get(i int) (Element, error)
	IsValid() bool
	// Snapshot returns a frozen copy pinned to the current view. Taking a
	// snapshot inside a write seals the write's state so far.
	Snapshot() (Collection, error)
	Frozen() bool
	// View returns the version being read (the draft during a write).
	View() *Version
	Descriptor() Descriptor
	Subscribe(cb Callback, keyPaths []string) (*Subscription, error)
}

type entry struct {
	id   string
	elem Element
}

type state struct {
	entries     []entry
	rootDeleted bool
}

type collection struct {
	conn  *Conn
	kind  Kind
	query Query

	owner    Owner
	ownerKey string
	prop     ir.Property

	pinned *Version

	cacheView *Version
	cacheGen  uint64
	cached    *state
}

// Results returns the objects matching q.
func (c *Conn) Results(q Query) (Collection, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if err := q.validate(c.db.schema); err != nil {
		return nil, err
	}
	return &collection{conn: c, kind: KindResults, query: q}, nil
}

// List returns the list property of an object.
func (c *Conn) List(o Owner) (Collection, error) {
	return c.rooted(KindList, ir.CollectionList, o)
}

// Set returns the set property of an object.
func (c *Conn) Set(o Owner) (Collection, error) {
	return c.rooted(KindSet, ir.CollectionSet, o)
}

// Dictionary returns the keys of a map property of an object.
func (c *Conn) Dictionary(o Owner) (Collection, error) {
	return c.rooted(KindDictionary, ir.CollectionDictionary, o)
}

func (c *Conn) rooted(kind Kind, want ir.CollectionKind, o Owner) (Collection, error) {
	v, _ := c.view()
	col, err := c.rootedAt(kind, want, o, v)
	if err != nil {
		return nil, err
	}
	return col, nil
}

func (c *Conn) rootedAt(kind Kind, want ir.CollectionKind, o Owner, v *Version) (*collection, error) {
	if c.closed {
		return nil, ErrClosed
	}
	obj, ok := c.db.schema.Object(o.Type)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "%s owner %s", kind, o.Type)
	}
	p, ok := obj.Property(o.Property)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidKeyPath, "%s has no property %q", o.Type, o.Property)
	}
	if p.Collection != want {
		return nil, errors.Wrapf(ErrSchemaViolation, "%s.%s is %s, not a %s", o.Type, o.Property, p.TypeString(), want)
	}
	key, err := KeyString(o.Key)
	if err != nil {
		return nil, err
	}
	if _, ok := v.row(o.Type, key); !ok {
		return nil, errors.Wrapf(ErrNotFound, "%s owner %s %s", kind, o.Type, key)
	}
	return &collection{conn: c, kind: kind, owner: o, ownerKey: key, prop: p}, nil
}

func (c *collection) Kind() Kind {
	return c.kind
}

func (c *collection) ObjectType() string {
	if c.kind == KindResults {
		return c.query.Type
	}
	if c.prop.IsLink() {
		return c.prop.Target
	}
	return ""
}

func (c *collection) elemTypeName() string {
	if t := c.ObjectType(); t != "" {
		return t
	}
	return string(c.prop.Kind)
}

func (c *collection) TypeName() string {
	if c.kind == KindDictionary {
		return fmt.Sprintf("Dictionary<string, %s>", c.elemTypeName())
	}
	return fmt.Sprintf("%s<%s>", c.kind, c.elemTypeName())
}

func (c *collection) Frozen() bool {
	return c.pinned != nil
}

func (c *collection) source() (*Version, uint64) {
	if c.pinned != nil {
		return c.pinned, 0
	}
	return c.conn.view()
}

func (c *collection) View() *Version {
	v, _ := c.source()
	return v
}

// current evaluates the collection against its source, cached per view
// and write generation.
func (c *collection) current() *state {
	v, gen := c.source()
	if c.cached != nil && c.cacheView == v && c.cacheGen == gen {
		return c.cached
	}
	st := c.evaluate(v)
	c.cacheView, c.cacheGen, c.cached = v, gen, st
	return st
}

func (c *collection) IsValid() bool {
	if c.pinned == nil && c.conn.closed {
		return false
	}
	return !c.current().rootDeleted
}

func (c *collection) check() (*state, error) {
	if c.pinned == nil && c.conn.closed {
		return nil, ErrClosed
	}
	st := c.current()
	if st.rootDeleted {
		return nil, errors.Wrapf(ErrInvalidated, "%s owner %s %s was deleted", c.TypeName(), c.owner.Type, c.ownerKey)
	}
	return st, nil
}

func (c *collection) Size() (int, error) {
	st, err := c.check()
	if err != nil {
		return 0, err
	}
	return len(st.entries), nil
}

func (c *collection) Get(i int) (Element, error) {
	st, err := c.check()
	if err != nil {
		return Element{}, err
	}
	if i < 0 || i >= len(st.entries) {
		return Element{}, errors.Wrapf(ErrOutOfRange, "index %d, size %d", i, len(st.entries))
	}
	return st.entries[i].elem, nil
}

func (c *collection) Snapshot() (Collection, error) {
	if c.pinned != nil {
		return c, nil
	}
	if _, err := c.check(); err != nil {
		return nil, err
	}
	v := c.conn.version
	if c.conn.draft != nil {
		v = c.conn.seal()
	}
	snap := *c
	snap.pinned = v
	snap.cached = nil
	return &snap, nil
}

// evaluate materializes the collection at v.
func (c *collection) evaluate(v *Version) *state {
	if c.kind == KindResults {
		return &state{entries: c.evaluateResults(v)}
	}

	ownerRow, ok := v.row(c.owner.Type, c.ownerKey)
	if !ok {
		return &state{rootDeleted: true}
	}
	switch c.kind {
	case KindDictionary:
		m, _ := ownerRow[c.owner.Property].(ir.IRObject)
		return &state{entries: c.evaluateDictionary(v, m)}
	default:
		arr, _ := ownerRow[c.owner.Property].(ir.IRArray)
		return &state{entries: c.evaluateSequence(v, arr)}
	}
}

func (c *collection) evaluateResults(v *Version) []entry {
	s := c.conn.db.schema
	obj, _ := s.Object(c.query.Type)
	t, ok := v.tables[c.query.Type]
	if !ok {
		return nil
	}

	entries := make([]entry, 0, len(t.keys))
	for _, k := range t.keys {
		row := t.rows[k]
		if c.query.Where != nil && !c.query.Where.match(v, s, c.query.Type, row) {
			continue
		}
		entries = append(entries, entry{
			id:   k,
			elem: Element{Type: c.query.Type, Key: row[obj.PrimaryKey], Row: row},
		})
	}

	if len(c.query.Sort) == 0 {
		return entries
	}

	paths := make([][]string, len(c.query.Sort))
	for i, sk := range c.query.Sort {
		paths[i] = strings.Split(sk.KeyPath, ".")
	}
	type keyed struct {
		e    entry
		vals []ir.IRValue
	}
	ks := make([]keyed, len(entries))
	for i, e := range entries {
		vals := make([]ir.IRValue, len(paths))
		for j, p := range paths {
			vals[j] = resolveKeyPath(v, s, c.query.Type, e.elem.Row, p)
		}
		ks[i] = keyed{e: e, vals: vals}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int {
		for j, sk := range c.query.Sort {
			cmp, _ := ir.Compare(a.vals[j], b.vals[j])
			if sk.Descending {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp
			}
		}
		return 0
	})
	for i := range ks {
		entries[i] = ks[i].e
	}
	return entries
}

// evaluateSequence materializes list and set elements. Dangling links are
// skipped. Repeated elements get an occurrence suffix so ids stay unique.
func (c *collection) evaluateSequence(v *Version, arr ir.IRArray) []entry {
	entries := make([]entry, 0, len(arr))
	seen := map[string]int{}
	for _, val := range arr {
		id, err := ir.MarshalCanonical(val)
		if err != nil {
			continue
		}
		n := seen[string(id)]
		seen[string(id)] = n + 1
		eid := string(id) + "#" + strconv.Itoa(n)

		if !c.prop.IsLink() {
			entries = append(entries, entry{id: eid, elem: Element{Value: val}})
			continue
		}
		row, ok := v.row(c.prop.Target, string(id))
		if !ok {
			continue
		}
		entries = append(entries, entry{
			id:   eid,
			elem: Element{Type: c.prop.Target, Key: val, Row: row},
		})
	}
	return entries
}

func (c *collection) evaluateDictionary(v *Version, m ir.IRObject) []entry {
	entries := make([]entry, 0, len(m))
	for _, k := range m.SortedKeys() {
		mapped := m[k]
		e := Element{Value: ir.IRString(k), Mapped: mapped}
		if c.prop.IsLink() && !ir.IsNull(mapped) {
			if row, ok := v.Row(c.prop.Target, mapped); ok {
				e.Type, e.Key, e.Row = c.prop.Target, mapped, row
			}
		}
		entries = append(entries, entry{id: k, elem: e})
	}
	return entries
}
