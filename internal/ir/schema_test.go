package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePropertyType(t *testing.T) {
	tests := []struct {
		in   string
		want Property
	}{
		{"string", Property{Kind: KindString}},
		{"int?", Property{Kind: KindInt, Optional: true}},
		{"Dog", Property{Kind: KindLink, Target: "Dog", Optional: true}},
		{"list<Dog>", Property{Kind: KindLink, Target: "Dog", Collection: CollectionList}},
		{"set<string>", Property{Kind: KindString, Collection: CollectionSet}},
		{"map<int>", Property{Kind: KindInt, Collection: CollectionDictionary}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePropertyType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePropertyType_Invalid(t *testing.T) {
	for _, in := range []string{"", "list<Dog", "list<list<int>>", "set<>", "a b"} {
		_, err := ParsePropertyType(in)
		assert.Error(t, err, in)
	}
}

func TestProperty_TypeString(t *testing.T) {
	for _, s := range []string{"string", "int?", "Dog?", "list<Dog>", "map<int>"} {
		p, err := ParsePropertyType(s)
		require.NoError(t, err)
		assert.Equal(t, s, p.TypeString())
	}
}

func TestSchema_Lookup(t *testing.T) {
	s := &Schema{Objects: []ObjectSchema{{
		Name:       "Person",
		PrimaryKey: "id",
		Properties: []Property{{Name: "id", Kind: KindString}, {Name: "age", Kind: KindInt}},
	}}}

	obj, ok := s.Object("Person")
	require.True(t, ok)
	p, ok := obj.Property("age")
	require.True(t, ok)
	assert.Equal(t, KindInt, p.Kind)

	_, ok = s.Object("Dog")
	assert.False(t, ok)

	var nilSchema *Schema
	_, ok = nilSchema.Object("Person")
	assert.False(t, ok)
}
