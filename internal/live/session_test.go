package live

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/testutil"
)

func TestSession_BatchSizesAgree(t *testing.T) {
	c := openConn(t, testutil.InMemory(t))
	seedPeople(t, c, 37)
	people, err := c.Objects("Person")
	require.NoError(t, err)
	snap, err := people.Freeze()
	require.NoError(t, err)

	one, err := snap.Enumerate()
	require.NoError(t, err)
	want := drain(t, one, 1)
	require.Len(t, want, 37)

	for _, b := range []int{2, 5, 16, 17, 100} {
		s, err := snap.Enumerate()
		require.NoError(t, err)
		assert.Equal(t, want, drain(t, s, b), "batch size %d", b)
	}
}

func TestSession_ClampsToCapacity(t *testing.T) {
	c := openConn(t, testutil.InMemory(t))
	seedPeople(t, c, 40)
	people, err := c.Objects("Person")
	require.NoError(t, err)

	s, err := people.Enumerate()
	require.NoError(t, err)
	batch, err := s.NextBatch(1000)
	require.NoError(t, err)
	assert.Len(t, batch, BatchCapacity)

	batch, err = s.NextBatch(0)
	require.NoError(t, err)
	assert.Len(t, batch, 1, "non-positive sizes read one element")
}

func TestSession_ExhaustionDeregisters(t *testing.T) {
	c := openConn(t, testutil.InMemory(t))
	seedPeople(t, c, 3)
	people, err := c.Objects("Person")
	require.NoError(t, err)

	s, err := people.Enumerate()
	require.NoError(t, err)
	sessions, _ := c.reg.len()
	assert.Equal(t, 1, sessions)

	assert.Len(t, drain(t, s, 16), 3)
	sessions, _ = c.reg.len()
	assert.Equal(t, 0, sessions)

	batch, err := s.NextBatch(16)
	require.NoError(t, err)
	assert.Empty(t, batch, "exhausted sessions keep returning empty batches")
	s.Close()
}

func TestSession_CloseAbandons(t *testing.T) {
	c := openConn(t, testutil.InMemory(t))
	seedPeople(t, c, 3)
	people, err := c.Objects("Person")
	require.NoError(t, err)

	s, err := people.Enumerate()
	require.NoError(t, err)
	_, err = s.NextBatch(1)
	require.NoError(t, err)
	s.Close()

	sessions, _ := c.reg.len()
	assert.Equal(t, 0, sessions)
	batch, err := s.NextBatch(1)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestSession_IsolatedFromConcurrentCommit(t *testing.T) {
	cfg := testutil.InMemory(t)
	c := openConn(t, cfg)
	seedPeople(t, c, 100)
	people, err := c.Objects("Person")
	require.NoError(t, err)

	s, err := people.Enumerate()
	require.NoError(t, err)
	first, err := s.NextBatch(10)
	require.NoError(t, err)
	seen := keys(t, first)

	onOtherGoroutine(func() {
		other, err := Open(context.Background(), cfg)
		if !assert.NoError(t, err) {
			return
		}
		defer other.Close()
		assert.NoError(t, other.Write(context.Background(), func() error {
			return other.Put("Person", testutil.Person("late", "Late", 1))
		}))
	})

	advanced, err := c.Refresh()
	require.NoError(t, err)
	require.True(t, advanced)
	assert.True(t, s.IsDetached(), "refresh detaches live sessions")
	assert.Equal(t, "p000", ir.String(first[0].Object.Key()), "elements already returned stay valid")

	seen = append(seen, drain(t, s, 7)...)
	assert.Len(t, seen, 100)

	n, err := people.Count()
	require.NoError(t, err)
	assert.Equal(t, 101, n, "the collection itself moved on")
}

func TestSession_SnapshotInsideWrite(t *testing.T) {
	c := openConn(t, testutil.InMemory(t))
	seedPeople(t, c, 20)
	people, err := c.Objects("Person")
	require.NoError(t, err)

	require.NoError(t, c.BeginWrite(context.Background()))
	s, err := people.Enumerate()
	require.NoError(t, err)
	assert.True(t, s.IsDetached())
	sessions, _ := c.reg.len()
	assert.Zero(t, sessions, "snapshot sessions are not registered")

	_, err = s.NextBatch(5)
	require.NoError(t, err)
	require.NoError(t, c.Put("Person", testutil.Person("new", "New", 1)))
	require.NoError(t, c.Delete("Person", ir.IRString("p019")))

	rest := drain(t, s, 16)
	assert.Len(t, rest, 15)
	assert.Equal(t, "p019", rest[len(rest)-1])
	require.NoError(t, c.CommitWrite(context.Background()))
}

func TestSession_DetachedByBeginWrite(t *testing.T) {
	c := openConn(t, testutil.InMemory(t))
	seedPeople(t, c, 20)
	people, err := c.Objects("Person")
	require.NoError(t, err)

	s, err := people.Enumerate()
	require.NoError(t, err)
	_, err = s.NextBatch(16)
	require.NoError(t, err)

	write(t, c, func() {
		require.NoError(t, c.Delete("Person", ir.IRString("p019")))
	})
	assert.True(t, s.IsDetached())
	assert.Equal(t, []string{"p016", "p017", "p018", "p019"}, drain(t, s, 16))
}

func TestSession_SurvivesConnectionClose(t *testing.T) {
	c, err := Open(context.Background(), testutil.InMemory(t))
	require.NoError(t, err)
	seedPeople(t, c, 5)
	people, err := c.Objects("Person")
	require.NoError(t, err)

	s, err := people.Enumerate()
	require.NoError(t, err)
	_, err = s.NextBatch(2)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.True(t, s.IsDetached())
	assert.Equal(t, []string{"p002", "p003", "p004"}, drain(t, s, 16))

	_, err = people.Enumerate()
	assert.True(t, IsStaleCollection(err), "new sessions on a closed connection fail")
}

func TestSession_WrongGoroutine(t *testing.T) {
	c := openConn(t, testutil.InMemory(t))
	seedPeople(t, c, 3)
	people, err := c.Objects("Person")
	require.NoError(t, err)
	s, err := people.Enumerate()
	require.NoError(t, err)

	var batchErr, enumErr error
	onOtherGoroutine(func() {
		_, batchErr = s.NextBatch(1)
		_, enumErr = people.Enumerate()
	})
	assert.True(t, IsThreadAffinity(batchErr))
	assert.True(t, IsThreadAffinity(enumErr))

	assert.Len(t, drain(t, s, 16), 3, "the owner can still read")
}

func TestSession_StaleRoot(t *testing.T) {
	c := openConn(t, testutil.InMemory(t))
	seedOwner(t, c, "d1", "d2")
	dogs, err := c.List("Person", ir.IRString("owner"), "dogs")
	require.NoError(t, err)

	write(t, c, func() {
		require.NoError(t, c.Delete("Person", ir.IRString("owner")))
	})
	_, err = dogs.Enumerate()
	assert.True(t, IsStaleCollection(err))
	_, err = dogs.Count()
	assert.True(t, IsStaleCollection(err))
}

func TestAll(t *testing.T) {
	c := openConn(t, testutil.InMemory(t))
	seedPeople(t, c, 20)
	people, err := c.Objects("Person", SortBy("age", true))
	require.NoError(t, err)

	var got []string
	for e, err := range people.All() {
		require.NoError(t, err)
		got = append(got, ir.String(e.Object.Key()))
		if len(got) == 18 {
			break
		}
	}
	assert.Len(t, got, 18)
	assert.Equal(t, "p019", got[0])
	sessions, _ := c.reg.len()
	assert.Zero(t, sessions, "breaking out of the loop closes the session")
}
