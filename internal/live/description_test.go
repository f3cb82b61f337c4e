package live

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/testutil"
)

func seedDescribed(t *testing.T, c *Connection) {
	t.Helper()
	write(t, c, func() {
		require.NoError(t, c.Put("Dog", testutil.Dog("d1", "Rex", 3)))
		require.NoError(t, c.Put("Dog", testutil.Dog("d2", "Fido", 5)))
		p := testutil.Person("p1", "Ann", 30)
		p["dogs"] = ir.IRArray{ir.IRString("d1"), ir.IRString("d2")}
		p["tags"] = ir.IRArray{ir.IRString("x")}
		p["scores"] = ir.IRObject{"math": ir.IRInt(7)}
		p["best"] = ir.IRString("d1")
		require.NoError(t, c.Put("Person", p))
	})
}

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestDescribe_Golden(t *testing.T) {
	c := openConn(t, testutil.InMemory(t))
	seedDescribed(t, c)

	people, err := c.Objects("Person")
	require.NoError(t, err)
	out, err := people.Describe(3, 100)
	require.NoError(t, err)
	newGolden(t).Assert(t, "description_people", []byte(out+"\n"))

	dogs, err := c.Objects("Dog")
	require.NoError(t, err)
	out, err = dogs.Describe(2, 1)
	require.NoError(t, err)
	newGolden(t).Assert(t, "description_truncated", []byte(out+"\n"))
}

func TestDescribe_Bounds(t *testing.T) {
	c := openConn(t, testutil.InMemory(t))
	seedDescribed(t, c)

	people, err := c.Objects("Person")
	require.NoError(t, err)
	out, err := people.Describe(0, 10)
	require.NoError(t, err)
	assert.Equal(t, "Results<Person> <Maximum depth exceeded>", out)

	tags, err := c.List("Person", ir.IRString("p1"), "tags")
	require.NoError(t, err)
	out, err = tags.Description()
	require.NoError(t, err)
	assert.Equal(t, "List<string> (\n\t[0] x\n)", out)

	old, err := c.Objects("Dog", Where(olderThan(100)))
	require.NoError(t, err)
	out, err = old.Describe(5, 5)
	require.NoError(t, err)
	assert.Equal(t, "Results<Dog> ()", out)
}

func TestDescribe_Dictionary(t *testing.T) {
	c := openConn(t, testutil.InMemory(t))
	seedDescribed(t, c)

	scores, err := c.Dictionary("Person", ir.IRString("p1"), "scores")
	require.NoError(t, err)
	out, err := scores.Describe(1, 1)
	require.NoError(t, err)
	assert.Equal(t, "Dictionary<string, int> (\n\t[0] math: 7\n)", out)
}
