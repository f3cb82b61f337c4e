package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/testutil"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), testutil.InMemory(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// write runs fn inside a committed write transaction on c.
func write(t *testing.T, c *Conn, fn func()) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.BeginWrite(ctx))
	fn()
	require.NoError(t, c.Commit(ctx))
}

func putPeople(t *testing.T, c *Conn, n int) {
	t.Helper()
	write(t, c, func() {
		for i := 0; i < n; i++ {
			id := string(rune('a' + i))
			require.NoError(t, c.Put("Person", testutil.Person(id, "name-"+id, int64(20+i))))
		}
	})
}

func keysOf(t *testing.T, col Collection) []string {
	t.Helper()
	n, err := col.Size()
	require.NoError(t, err)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		e, err := col.Get(i)
		require.NoError(t, err)
		if e.IsObject() {
			out[i] = ir.String(e.Key)
		} else {
			out[i] = ir.String(e.Value)
		}
	}
	return out
}
