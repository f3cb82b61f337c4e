package live

import (
	"strings"

	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/objectstore"
)

// selfKey names the element itself in aggregates over primitives.
const selfKey = "self"

type aggregate int

const (
	aggMin aggregate = iota
	aggMax
	aggSum
	aggAvg
)

func (a aggregate) String() string {
	return [...]string{"min", "max", "sum", "avg"}[a]
}

// Min returns the smallest value of keyPath, or null when there is none.
func (c *Collection) Min(keyPath string) (ir.IRValue, error) {
	return c.extremum(aggMin, keyPath)
}

// Max returns the largest value of keyPath, or null when there is none.
func (c *Collection) Max(keyPath string) (ir.IRValue, error) {
	return c.extremum(aggMax, keyPath)
}

// Sum adds the int values of keyPath.
func (c *Collection) Sum(keyPath string) (ir.IRInt, error) {
	vals, err := c.aggregateValues(aggSum, keyPath)
	if err != nil {
		return 0, err
	}
	var sum ir.IRInt
	for _, v := range vals {
		sum += v.(ir.IRInt)
	}
	return sum, nil
}

// Average returns the mean of the int values of keyPath. ok is false when
// there are no values.
func (c *Collection) Average(keyPath string) (avg float64, ok bool, err error) {
	vals, err := c.aggregateValues(aggAvg, keyPath)
	if err != nil || len(vals) == 0 {
		return 0, false, err
	}
	var sum int64
	for _, v := range vals {
		sum += int64(v.(ir.IRInt))
	}
	return float64(sum) / float64(len(vals)), true, nil
}

func (c *Collection) extremum(a aggregate, keyPath string) (ir.IRValue, error) {
	vals, err := c.aggregateValues(a, keyPath)
	if err != nil {
		return nil, err
	}
	var best ir.IRValue = ir.IRNull{}
	for _, v := range vals {
		if ir.IsNull(best) {
			best = v
			continue
		}
		cmp, _ := ir.Compare(v, best)
		if (a == aggMin && cmp < 0) || (a == aggMax && cmp > 0) {
			best = v
		}
	}
	return best, nil
}

// aggregateValues collects the non-null values of keyPath and checks they
// suit a.
func (c *Collection) aggregateValues(a aggregate, keyPath string) ([]ir.IRValue, error) {
	kind, err := c.keyPathKind(keyPath)
	if err != nil {
		return nil, err
	}
	if kind == ir.KindBool || kind == ir.KindLink || ((a == aggSum || a == aggAvg) && kind != ir.KindInt) {
		return nil, newError(CodeAggregationUnsupported, "@%s is not supported for %s values of %q", a, kind, keyPath)
	}
	return c.column(keyPath)
}

// keyPathKind validates keyPath for per-element reads and returns the
// scalar kind it yields.
func (c *Collection) keyPathKind(keyPath string) (ir.ScalarKind, error) {
	objType := c.ObjectType()
	if objType == "" {
		if keyPath != selfKey {
			return "", newError(CodeAggregationUnsupported, "%s has primitive elements; only %q is supported, not %q", c.TypeName(), selfKey, keyPath)
		}
		return c.primitiveKind(), nil
	}
	obj, _ := c.conn.db.Schema().Object(objType)
	p, ok := obj.Property(keyPath)
	if !ok {
		return "", newError(CodeInvalidKeyPath, "%s has no property %q", objType, keyPath)
	}
	if p.Collection != ir.CollectionNone {
		return "", newError(CodeAggregationUnsupported, "%s.%s is a collection", objType, keyPath)
	}
	return p.Kind, nil
}

// primitiveKind returns the element kind of a primitive collection.
func (c *Collection) primitiveKind() ir.ScalarKind {
	d := c.inner.Descriptor()
	obj, ok := c.conn.db.Schema().Object(d.Owner.Type)
	if !ok {
		return ""
	}
	p, _ := obj.Property(d.Owner.Property)
	return p.Kind
}

// column reads keyPath of every element, skipping nulls and elements that
// are not objects.
func (c *Collection) column(keyPath string) ([]ir.IRValue, error) {
	elems, err := c.values()
	if err != nil {
		return nil, err
	}
	out := make([]ir.IRValue, 0, len(elems))
	for _, e := range elems {
		var v ir.IRValue
		switch {
		case keyPath == selfKey && c.Kind() == objectstore.KindDictionary:
			v = e.Mapped
		case keyPath == selfKey:
			v = e.Value
		case e.IsObject():
			v = e.Row[keyPath]
		}
		if v == nil || ir.IsNull(v) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// ValueForKeyPath evaluates a key-value coding path on the collection:
// "@count", "@min.<key>", "@max.<key>", "@sum.<key>", "@avg.<key>", or a
// plain key returning the values of every element. <key> is a property of
// the element type, or "self" for primitive collections.
func (c *Collection) ValueForKeyPath(keyPath string) (any, error) {
	if keyPath == "@count" {
		return c.Count()
	}
	if !strings.HasPrefix(keyPath, "@") {
		if _, err := c.keyPathKind(keyPath); err != nil {
			return nil, err
		}
		return c.column(keyPath)
	}

	op, key, ok := strings.Cut(keyPath[1:], ".")
	if !ok || key == "" {
		return nil, newError(CodeUnsupportedKeyPath, "collection operator %q needs a key", keyPath)
	}
	switch op {
	case "min":
		return c.Min(key)
	case "max":
		return c.Max(key)
	case "sum":
		return c.Sum(key)
	case "avg":
		avg, ok, err := c.Average(key)
		if err != nil || !ok {
			return nil, err
		}
		return avg, nil
	}
	return nil, newError(CodeUnsupportedKeyPath, "unknown collection operator @%s", op)
}
