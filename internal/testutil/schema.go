package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livecoll/internal/config"
	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/schema"
)

// PeopleCUE is the schema most tests share: people owning dogs, with one
// collection property of every kind.
const PeopleCUE = `
object: Person: {
	primary_key: "id"
	properties: {
		id:     "string"
		name:   "string"
		age:    "int"
		dogs:   "list<Dog>"
		tags:   "list<string>"
		labels: "set<string>"
		scores: "map<int>"
		pets:   "map<Dog>"
		best:   "Dog"
	}
}

object: Dog: {
	primary_key: "id"
	properties: {
		id:   "string"
		name: "string"
		age:  "int"
	}
}
`

// PeopleSchema compiles PeopleCUE.
func PeopleSchema(t testing.TB) *ir.Schema {
	t.Helper()
	s, err := schema.CompileSource("people.cue", []byte(PeopleCUE))
	require.NoError(t, err)
	return s
}

// InMemory returns a config for a fresh in-memory database with the people
// schema. Each call names a distinct database.
func InMemory(t testing.TB) config.Config {
	t.Helper()
	return config.InMemory("test-"+uuid.NewString(), PeopleSchema(t))
}

// Person builds a Person row.
func Person(id, name string, age int64) ir.IRObject {
	return ir.IRObject{"id": ir.IRString(id), "name": ir.IRString(name), "age": ir.IRInt(age)}
}

// Dog builds a Dog row.
func Dog(id, name string, age int64) ir.IRObject {
	return ir.IRObject{"id": ir.IRString(id), "name": ir.IRString(name), "age": ir.IRInt(age)}
}
