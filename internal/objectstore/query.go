package objectstore

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/livecoll/internal/ir"
)

// Predicate filters objects of a results collection.
//
// This is a sealed interface: Compare, And and Or are the only
// implementations. Predicates are immutable values and may be shared
// across goroutines (they travel inside Descriptors).
type Predicate interface {
	predicateNode()
	validate(s *ir.Schema, objType string) error
	match(v *Version, s *ir.Schema, objType string, row ir.IRObject) bool
	String() string
}

// CompareOp is a comparison operator.
type CompareOp string

const (
	OpEqual        CompareOp = "=="
	OpNotEqual     CompareOp = "!="
	OpLess         CompareOp = "<"
	OpLessEqual    CompareOp = "<="
	OpGreater      CompareOp = ">"
	OpGreaterEqual CompareOp = ">="
)

// ParseCompareOp accepts the operator spellings used in scenarios.
func ParseCompareOp(s string) (CompareOp, error) {
	switch CompareOp(s) {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return CompareOp(s), nil
	case "=":
		return OpEqual, nil
	}
	return "", errors.Newf("unknown comparison operator %q", s)
}

// Compare matches objects whose keypath value compares to Value.
// A keypath through a to-many link matches when any reached value does.
// Values of different kinds never match, except under OpNotEqual.
type Compare struct {
	KeyPath string
	Op      CompareOp
	Value   ir.IRValue
}

func (Compare) predicateNode() {}

func (p Compare) validate(s *ir.Schema, objType string) error {
	if _, err := parseKeyPath(s, objType, p.KeyPath); err != nil {
		return err
	}
	if _, err := ParseCompareOp(string(p.Op)); err != nil {
		return errors.Wrap(ErrInvalidKeyPath, err.Error())
	}
	return nil
}

func (p Compare) match(v *Version, s *ir.Schema, objType string, row ir.IRObject) bool {
	path := strings.Split(p.KeyPath, ".")
	got := resolveKeyPath(v, s, objType, row, path)
	if throughToMany(s, objType, path) {
		return anyMatch(p.Op, got, p.Value)
	}
	return compareValues(p.Op, got, p.Value)
}

// anyMatch compares every leaf reached through arrays and dictionaries.
func anyMatch(op CompareOp, got, want ir.IRValue) bool {
	switch got := got.(type) {
	case ir.IRArray:
		for _, elem := range got {
			if anyMatch(op, elem, want) {
				return true
			}
		}
		return false
	case ir.IRObject:
		for _, k := range got.SortedKeys() {
			if anyMatch(op, got[k], want) {
				return true
			}
		}
		return false
	}
	return compareValues(op, got, want)
}

func (p Compare) String() string {
	return fmt.Sprintf("%s %s %s", p.KeyPath, p.Op, ir.String(p.Value))
}

func compareValues(op CompareOp, a, b ir.IRValue) bool {
	cmp, ok := ir.Compare(a, b)
	switch op {
	case OpEqual:
		return ok && cmp == 0
	case OpNotEqual:
		return !ok || cmp != 0
	case OpLess:
		return ok && cmp < 0
	case OpLessEqual:
		return ok && cmp <= 0
	case OpGreater:
		return ok && cmp > 0
	case OpGreaterEqual:
		return ok && cmp >= 0
	}
	return false
}

// And matches when every predicate matches. An empty And matches all.
type And []Predicate

func (And) predicateNode() {}

func (p And) validate(s *ir.Schema, objType string) error {
	for _, sub := range p {
		if err := sub.validate(s, objType); err != nil {
			return err
		}
	}
	return nil
}

func (p And) match(v *Version, s *ir.Schema, objType string, row ir.IRObject) bool {
	for _, sub := range p {
		if !sub.match(v, s, objType, row) {
			return false
		}
	}
	return true
}

func (p And) String() string {
	return joinPredicates(p, " AND ")
}

// Or matches when any predicate matches. An empty Or matches nothing.
type Or []Predicate

func (Or) predicateNode() {}

func (p Or) validate(s *ir.Schema, objType string) error {
	return And(p).validate(s, objType)
}

func (p Or) match(v *Version, s *ir.Schema, objType string, row ir.IRObject) bool {
	for _, sub := range p {
		if sub.match(v, s, objType, row) {
			return true
		}
	}
	return false
}

func (p Or) String() string {
	return joinPredicates(p, " OR ")
}

func joinPredicates(ps []Predicate, sep string) string {
	parts := make([]string, len(ps))
	for i, sub := range ps {
		parts[i] = sub.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// SortKey orders results by a keypath.
type SortKey struct {
	KeyPath    string
	Descending bool
}

// Query selects the objects of a results collection. Objects without a
// sort keep insertion order, which also breaks ties between sort keys.
type Query struct {
	Type  string
	Where Predicate
	Sort  []SortKey
}

func (q Query) validate(s *ir.Schema) error {
	if _, ok := s.Object(q.Type); !ok {
		return errors.Wrapf(ErrUnknownType, "query %s", q.Type)
	}
	if q.Where != nil {
		if err := q.Where.validate(s, q.Type); err != nil {
			return err
		}
	}
	for _, k := range q.Sort {
		path, err := parseKeyPath(s, q.Type, k.KeyPath)
		if err != nil {
			return err
		}
		if throughToMany(s, q.Type, path) {
			return errors.Wrapf(ErrInvalidKeyPath, "cannot sort by to-many keypath %q", k.KeyPath)
		}
	}
	return nil
}

// String renders the query for descriptions.
func (q Query) String() string {
	var b strings.Builder
	b.WriteString(q.Type)
	if q.Where != nil {
		b.WriteString(" WHERE ")
		b.WriteString(q.Where.String())
	}
	for i, k := range q.Sort {
		if i == 0 {
			b.WriteString(" SORT BY ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(k.KeyPath)
		if k.Descending {
			b.WriteString(" DESC")
		}
	}
	return b.String()
}

// parseKeyPath splits and validates a dotted keypath against objType.
// Every component but the last must be a link property.
func parseKeyPath(s *ir.Schema, objType, keyPath string) ([]string, error) {
	if keyPath == "" {
		return nil, errors.Wrap(ErrInvalidKeyPath, "empty keypath")
	}
	path := strings.Split(keyPath, ".")
	typ := objType
	for i, name := range path {
		obj, ok := s.Object(typ)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownType, "keypath %q", keyPath)
		}
		p, ok := obj.Property(name)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidKeyPath, "%q: %s has no property %q", keyPath, typ, name)
		}
		if i < len(path)-1 {
			if !p.IsLink() {
				return nil, errors.Wrapf(ErrInvalidKeyPath, "%q: %s.%s is not a link", keyPath, typ, name)
			}
			typ = p.Target
		}
	}
	return path, nil
}

// throughToMany reports whether a validated keypath crosses or ends at a
// collection property.
func throughToMany(s *ir.Schema, objType string, path []string) bool {
	typ := objType
	for _, name := range path {
		obj, _ := s.Object(typ)
		p, _ := obj.Property(name)
		if p.Collection != ir.CollectionNone {
			return true
		}
		typ = p.Target
	}
	return false
}

// resolveKeyPath reads a keypath from row, following links in v. Missing
// link targets read as null; to-many links produce arrays.
func resolveKeyPath(v *Version, s *ir.Schema, objType string, row ir.IRObject, path []string) ir.IRValue {
	val, ok := row[path[0]]
	if !ok || val == nil {
		val = ir.IRNull{}
	}
	if len(path) == 1 {
		return val
	}

	obj, ok := s.Object(objType)
	if !ok {
		return ir.IRNull{}
	}
	p, ok := obj.Property(path[0])
	if !ok || !p.IsLink() {
		return ir.IRNull{}
	}

	follow := func(key ir.IRValue) (ir.IRValue, bool) {
		target, ok := v.Row(p.Target, key)
		if !ok {
			return ir.IRNull{}, false
		}
		return resolveKeyPath(v, s, p.Target, target, path[1:]), true
	}

	switch val := val.(type) {
	case ir.IRArray:
		out := make(ir.IRArray, 0, len(val))
		for _, key := range val {
			if r, ok := follow(key); ok {
				out = append(out, r)
			}
		}
		return out
	case ir.IRObject:
		out := make(ir.IRObject, len(val))
		for k, key := range val {
			r, _ := follow(key)
			out[k] = r
		}
		return out
	default:
		r, _ := follow(val)
		return r
	}
}
