package live

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/testutil"
)

func TestReference_ResolveOnAnotherGoroutine(t *testing.T) {
	cfg := testutil.InMemory(t)
	c := openConn(t, cfg)
	seedOwner(t, c, "d1", "d2", "d3")
	dogs, err := c.List("Person", ir.IRString("owner"), "dogs")
	require.NoError(t, err)
	ref, err := dogs.ThreadSafeReference()
	require.NoError(t, err)

	var (
		got     []string
		direct  error
		resolve error
	)
	onOtherGoroutine(func() {
		_, direct = dogs.Count()

		other, err := Open(context.Background(), cfg)
		if !assert.NoError(t, err) {
			return
		}
		defer other.Close()
		local, err := ref.Resolve(other)
		if err != nil {
			resolve = err
			return
		}
		for e, err := range local.All() {
			if err != nil {
				resolve = err
				return
			}
			got = append(got, ir.String(e.Object.Key()))
		}
	})
	assert.True(t, IsThreadAffinity(direct), "collections never cross goroutines directly")
	require.NoError(t, resolve)
	assert.Equal(t, []string{"d1", "d2", "d3"}, got)
}

func TestReference_SingleUse(t *testing.T) {
	cfg := testutil.InMemory(t)
	c := openConn(t, cfg)
	people, err := c.Objects("Person")
	require.NoError(t, err)
	ref, err := people.ThreadSafeReference()
	require.NoError(t, err)

	_, err = ref.Resolve(openConn(t, testutil.InMemory(t)))
	assert.True(t, IsReferenceResolved(err), "different database")

	_, err = ref.Resolve(c)
	require.NoError(t, err)
	_, err = ref.Resolve(c)
	assert.True(t, IsReferenceResolved(err))
}

func TestReference_AdvancesBehindConnection(t *testing.T) {
	cfg := testutil.InMemory(t)
	stale := openConn(t, cfg)
	c := openConn(t, cfg)
	seedPeople(t, c, 3)

	people, err := c.Objects("Person")
	require.NoError(t, err)
	s, err := stale.Objects("Person")
	require.NoError(t, err)
	session, err := s.Enumerate()
	require.NoError(t, err)

	ref, err := people.ThreadSafeReference()
	require.NoError(t, err)
	got, err := ref.Resolve(stale)
	require.NoError(t, err)
	n, err := got.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, session.IsDetached(), "advancing detaches live sessions")
	assert.Empty(t, drain(t, session, 16))
}

func TestReference_Frozen(t *testing.T) {
	cfg := testutil.InMemory(t)
	c := openConn(t, cfg)
	seedPeople(t, c, 2)
	people, err := c.Objects("Person")
	require.NoError(t, err)
	frozen, err := people.Freeze()
	require.NoError(t, err)
	ref, err := frozen.ThreadSafeReference()
	require.NoError(t, err)
	seedPeople(t, c, 4)

	other := openConn(t, cfg)
	got, err := ref.Resolve(other)
	require.NoError(t, err)
	assert.True(t, got.IsFrozen())
	n, err := got.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
