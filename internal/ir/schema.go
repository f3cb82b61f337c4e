package ir

import (
	"fmt"
	"strings"
)

// ScalarKind is the element type of a property.
type ScalarKind string

const (
	KindString ScalarKind = "string"
	KindInt    ScalarKind = "int"
	KindBool   ScalarKind = "bool"
	// KindLink stores the primary key of an object of Property.Target.
	KindLink ScalarKind = "link"
)

// CollectionKind says whether a property holds one value or a collection.
type CollectionKind string

const (
	CollectionNone       CollectionKind = ""
	CollectionList       CollectionKind = "list"
	CollectionSet        CollectionKind = "set"
	CollectionDictionary CollectionKind = "map"
)

// Property describes one field of an object type.
type Property struct {
	Name       string         `json:"name"`
	Kind       ScalarKind     `json:"kind"`
	Collection CollectionKind `json:"collection,omitempty"`
	Target     string         `json:"target,omitempty"`
	Optional   bool           `json:"optional,omitempty"`
}

// IsLink reports whether the property (or its elements) link to objects.
func (p Property) IsLink() bool {
	return p.Kind == KindLink
}

// TypeString renders the property type in schema notation
// ("string", "Dog?", "list<Dog>", "map<int>").
func (p Property) TypeString() string {
	elem := string(p.Kind)
	if p.Kind == KindLink {
		elem = p.Target
	}
	if p.Collection != CollectionNone {
		return fmt.Sprintf("%s<%s>", p.Collection, elem)
	}
	if p.Optional {
		return elem + "?"
	}
	return elem
}

// ObjectSchema describes an object type (a table).
// Properties keep declaration order; descriptions render in that order.
type ObjectSchema struct {
	Name       string     `json:"name"`
	PrimaryKey string     `json:"primary_key"`
	Properties []Property `json:"properties"`
}

// Property looks up a property by name.
func (o *ObjectSchema) Property(name string) (Property, bool) {
	for _, p := range o.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Schema is the set of object types a database stores.
type Schema struct {
	Objects []ObjectSchema `json:"objects"`
}

// Object returns the schema for an object type.
func (s *Schema) Object(name string) (*ObjectSchema, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Objects {
		if s.Objects[i].Name == name {
			return &s.Objects[i], true
		}
	}
	return nil, false
}

// ParsePropertyType parses schema notation into a Property (without Name).
//
// Accepted forms: "string", "int", "bool", "<Type>", "<scalar or Type>?",
// "list<T>", "set<T>", "map<T>". Any identifier that is not a scalar name
// is a link to that object type; callers verify the target exists.
func ParsePropertyType(s string) (Property, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Property{}, fmt.Errorf("empty property type")
	}

	for _, coll := range []CollectionKind{CollectionList, CollectionSet, CollectionDictionary} {
		prefix := string(coll) + "<"
		if strings.HasPrefix(s, prefix) {
			if !strings.HasSuffix(s, ">") {
				return Property{}, fmt.Errorf("unterminated collection type %q", s)
			}
			inner := strings.TrimSpace(s[len(prefix) : len(s)-1])
			if strings.ContainsAny(inner, "<>?") || inner == "" {
				return Property{}, fmt.Errorf("invalid element type in %q", s)
			}
			p := scalarProperty(inner)
			p.Collection = coll
			return p, nil
		}
	}

	optional := strings.HasSuffix(s, "?")
	name := strings.TrimSuffix(s, "?")
	if name == "" || strings.ContainsAny(name, "<>? ") {
		return Property{}, fmt.Errorf("invalid property type %q", s)
	}
	p := scalarProperty(name)
	// links are always nullable
	p.Optional = optional || p.Kind == KindLink
	return p, nil
}

func scalarProperty(name string) Property {
	switch ScalarKind(name) {
	case KindString, KindInt, KindBool:
		return Property{Kind: ScalarKind(name)}
	}
	return Property{Kind: KindLink, Target: name}
}
