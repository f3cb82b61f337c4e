package live

import (
	"fmt"
	"strings"

	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/objectstore"
)

// Description renders the collection with the depth and element bounds of
// the connection's config.
func (c *Collection) Description() (string, error) {
	d := c.conn.cfg.Description
	return c.Describe(d.MaxDepth, d.MaxElements)
}

// Describe renders a human-readable dump. Nesting (collections, objects,
// links) stops at maxDepth levels and each collection lists at most
// maxElements elements.
func (c *Collection) Describe(maxDepth, maxElements int) (string, error) {
	if err := c.verify(); err != nil {
		return "", err
	}
	d := &describer{
		schema:      c.conn.db.Schema(),
		v:           c.inner.View(),
		maxElements: maxElements,
	}
	n, err := c.inner.Size()
	if err != nil {
		return "", translate(err, "describe")
	}
	d.collection(c.TypeName(), n, maxDepth, 0, func(i, depth, indent int) {
		e, err := c.inner.Get(i)
		if err != nil {
			d.b.WriteString("<unreadable>")
			return
		}
		d.element(c.inner.Kind(), e, depth, indent)
	})
	return d.b.String(), nil
}

type describer struct {
	schema      *ir.Schema
	v           *objectstore.Version
	maxElements int
	b           strings.Builder
}

func (d *describer) tabs(n int) {
	d.b.WriteString(strings.Repeat("\t", n))
}

// collection writes "Name (" with one line per element.
func (d *describer) collection(typeName string, n, depth, indent int, elem func(i, depth, indent int)) {
	d.b.WriteString(typeName)
	if depth <= 0 {
		d.b.WriteString(" <Maximum depth exceeded>")
		return
	}
	if n == 0 {
		d.b.WriteString(" ()")
		return
	}
	d.b.WriteString(" (\n")
	shown := min(n, d.maxElements)
	for i := 0; i < shown; i++ {
		d.tabs(indent + 1)
		fmt.Fprintf(&d.b, "[%d] ", i)
		elem(i, depth-1, indent+1)
		if i < shown-1 {
			d.b.WriteString(",")
		}
		d.b.WriteString("\n")
	}
	if n > shown {
		d.tabs(indent + 1)
		fmt.Fprintf(&d.b, "... %d objects skipped.\n", n-shown)
	}
	d.tabs(indent)
	d.b.WriteString(")")
}

func (d *describer) element(kind objectstore.Kind, e objectstore.Element, depth, indent int) {
	if kind == objectstore.KindDictionary {
		fmt.Fprintf(&d.b, "%s: ", ir.String(e.Value))
		if e.IsObject() {
			d.object(e.Type, e.Row, depth, indent)
			return
		}
		d.b.WriteString(ir.String(e.Mapped))
		return
	}
	if e.IsObject() {
		d.object(e.Type, e.Row, depth, indent)
		return
	}
	d.b.WriteString(ir.String(e.Value))
}

func (d *describer) object(typ string, row ir.IRObject, depth, indent int) {
	d.b.WriteString(typ)
	if depth <= 0 {
		d.b.WriteString(" <Maximum depth exceeded>")
		return
	}
	obj, ok := d.schema.Object(typ)
	if !ok {
		return
	}
	d.b.WriteString(" {\n")
	for _, p := range obj.Properties {
		d.tabs(indent + 1)
		d.b.WriteString(p.Name)
		d.b.WriteString(" = ")
		d.property(p, row[p.Name], depth-1, indent+1)
		d.b.WriteString(";\n")
	}
	d.tabs(indent)
	d.b.WriteString("}")
}

func (d *describer) property(p ir.Property, val ir.IRValue, depth, indent int) {
	switch p.Collection {
	case ir.CollectionList, ir.CollectionSet:
		arr, _ := val.(ir.IRArray)
		name := "List"
		if p.Collection == ir.CollectionSet {
			name = "Set"
		}
		var elems ir.IRArray
		for _, x := range arr {
			if !p.IsLink() {
				elems = append(elems, x)
			} else if _, ok := d.v.Row(p.Target, x); ok {
				elems = append(elems, x)
			}
		}
		d.collection(fmt.Sprintf("%s<%s>", name, elemName(p)), len(elems), depth, indent, func(i, depth, indent int) {
			d.scalar(p, elems[i], depth, indent)
		})

	case ir.CollectionDictionary:
		m, _ := val.(ir.IRObject)
		keys := m.SortedKeys()
		d.collection(fmt.Sprintf("Dictionary<string, %s>", elemName(p)), len(keys), depth, indent, func(i, depth, indent int) {
			fmt.Fprintf(&d.b, "%s: ", keys[i])
			d.scalar(p, m[keys[i]], depth, indent)
		})

	default:
		d.scalar(p, val, depth, indent)
	}
}

// scalar writes one value, following links one level deeper.
func (d *describer) scalar(p ir.Property, val ir.IRValue, depth, indent int) {
	if val == nil || ir.IsNull(val) {
		d.b.WriteString("<null>")
		return
	}
	if !p.IsLink() {
		d.b.WriteString(ir.String(val))
		return
	}
	row, ok := d.v.Row(p.Target, val)
	if !ok {
		d.b.WriteString("<null>")
		return
	}
	d.object(p.Target, row, depth, indent)
}

func elemName(p ir.Property) string {
	if p.IsLink() {
		return p.Target
	}
	return string(p.Kind)
}
