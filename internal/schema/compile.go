// Package schema compiles CUE object schemas into ir.Schema.
//
// A schema file declares object types under the "object" field:
//
//	object: Person: {
//		primary_key: "id"
//		properties: {
//			id:   "string"
//			age:  "int?"
//			dogs: "list<Dog>"
//		}
//	}
//
// Property order follows declaration order in the CUE source.
package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/cockroachdb/errors"

	"github.com/roach88/livecoll/internal/ir"
)

// CompileFile reads and compiles a CUE schema file.
func CompileFile(path string) (*ir.Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read schema %s", path)
	}
	return CompileSource(path, src)
}

// CompileSource compiles CUE source text. filename is used in error positions.
func CompileSource(filename string, src []byte) (*ir.Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return Compile(v)
}

// Compile parses the "object" struct of a CUE value into a Schema. Link
// targets are checked after every object has been read, so types may refer
// to each other in any order.
func Compile(v cue.Value) (*ir.Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	objVal := v.LookupPath(cue.ParsePath("object"))
	if !objVal.Exists() {
		return nil, &CompileError{
			Field:   "object",
			Message: "at least one object type is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := objVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	s := &ir.Schema{}
	positions := map[string]token.Pos{}
	for iter.Next() {
		name := iter.Label()
		obj, err := compileObject(name, iter.Value())
		if err != nil {
			return nil, err
		}
		s.Objects = append(s.Objects, *obj)
		positions[name] = iter.Value().Pos()
	}

	if len(s.Objects) == 0 {
		return nil, &CompileError{
			Field:   "object",
			Message: "at least one object type is required",
			Pos:     objVal.Pos(),
		}
	}

	for _, obj := range s.Objects {
		for _, p := range obj.Properties {
			if !p.IsLink() {
				continue
			}
			if _, ok := s.Object(p.Target); !ok {
				return nil, &CompileError{
					Field:   fmt.Sprintf("object.%s.properties.%s", obj.Name, p.Name),
					Message: fmt.Sprintf("link target %q is not a declared object type", p.Target),
					Pos:     positions[obj.Name],
				}
			}
		}
	}

	return s, nil
}

func compileObject(name string, v cue.Value) (*ir.ObjectSchema, error) {
	obj := &ir.ObjectSchema{Name: name}

	pkVal := v.LookupPath(cue.ParsePath("primary_key"))
	if !pkVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("object.%s.primary_key", name),
			Message: "primary_key is required",
			Pos:     v.Pos(),
		}
	}
	pk, err := pkVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	obj.PrimaryKey = pk

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("object.%s.properties", name),
			Message: "properties are required",
			Pos:     v.Pos(),
		}
	}
	propIter, err := propsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for propIter.Next() {
		propName := propIter.Label()
		field := fmt.Sprintf("object.%s.properties.%s", name, propName)

		typeStr, err := propIter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   field,
				Message: "property type must be a string such as \"int?\" or \"list<Dog>\"",
				Pos:     propIter.Value().Pos(),
			}
		}
		prop, err := ir.ParsePropertyType(typeStr)
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: propIter.Value().Pos()}
		}
		prop.Name = propName
		obj.Properties = append(obj.Properties, prop)
	}

	pkProp, ok := obj.Property(pk)
	if !ok {
		return nil, &CompileError{
			Field:   fmt.Sprintf("object.%s.primary_key", name),
			Message: fmt.Sprintf("primary key %q is not a declared property", pk),
			Pos:     pkVal.Pos(),
		}
	}
	if pkProp.Collection != ir.CollectionNone || pkProp.Optional ||
		(pkProp.Kind != ir.KindString && pkProp.Kind != ir.KindInt) {
		return nil, &CompileError{
			Field:   fmt.Sprintf("object.%s.primary_key", name),
			Message: fmt.Sprintf("primary key must be a required string or int, got %s", pkProp.TypeString()),
			Pos:     pkVal.Pos(),
		}
	}

	return obj, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
