package store

import "github.com/roach88/livecoll/internal/ir"

// Op is the kind of a mutation.
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Mutation is one object-level change inside a commit.
type Mutation struct {
	Op   Op
	Type string
	Key  ir.IRValue
	// Data is the full row for OpPut and nil for OpDelete.
	Data ir.IRObject
}

// Commit is the set of mutations that produced one database version.
type Commit struct {
	Version   int64
	Mutations []Mutation
}
