package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/livecoll/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, DriverCGO)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func putPerson(id, name string, age int64) Mutation {
	return Mutation{
		Op:   OpPut,
		Type: "Person",
		Key:  ir.IRString(id),
		Data: ir.IRObject{"id": ir.IRString(id), "name": ir.IRString(name), "age": ir.IRInt(age)},
	}
}
