package live

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/objectstore"
	"github.com/roach88/livecoll/internal/testutil"
)

func TestObject_Accessors(t *testing.T) {
	c := openConn(t, testutil.InMemory(t))
	seedOwner(t, c, "d1")

	o, err := c.Object("Person", ir.IRString("owner"))
	require.NoError(t, err)
	assert.Equal(t, "Person", o.Type())
	assert.Equal(t, ir.IRString("owner"), o.Key())

	name, err := o.Get("name")
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("Olive"), name)

	_, err = o.Get("height")
	assert.True(t, IsInvalidKeyPath(err))

	_, err = c.Object("Person", ir.IRString("ghost"))
	assert.ErrorIs(t, err, objectstore.ErrNotFound)
}

func TestObject_Invalidated(t *testing.T) {
	c := openConn(t, testutil.InMemory(t))
	seedOwner(t, c, "d1", "d2")
	dogs, err := c.List("Person", ir.IRString("owner"), "dogs")
	require.NoError(t, err)
	frozen, err := dogs.Freeze()
	require.NoError(t, err)

	live, err := dogs.Get(0)
	require.NoError(t, err)
	pinned, err := frozen.Get(0)
	require.NoError(t, err)
	assert.True(t, pinned.Object.IsFrozen())

	write(t, c, func() {
		require.NoError(t, c.Delete("Dog", ir.IRString("d1")))
	})
	assert.True(t, live.Object.IsInvalidated())
	_, err = live.Object.Get("name")
	assert.True(t, IsObjectInvalidated(err))

	assert.False(t, pinned.Object.IsInvalidated())
	name, err := pinned.Object.Get("name")
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("dog d1"), name)
}

func TestObject_WrongGoroutine(t *testing.T) {
	c := openConn(t, testutil.InMemory(t))
	seedOwner(t, c)
	o, err := c.Object("Person", ir.IRString("owner"))
	require.NoError(t, err)

	var getErr error
	onOtherGoroutine(func() { _, getErr = o.Get("name") })
	assert.True(t, IsThreadAffinity(getErr))
}
