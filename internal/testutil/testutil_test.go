package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("conn")
	assert.Equal(t, "conn-1", g.Generate())
	assert.Equal(t, "conn-2", g.Generate())

	g.Reset()
	assert.Equal(t, "conn-1", g.Generate())

	assert.Equal(t, "id-1", NewSequentialIDs("").Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	g := NewSequentialIDs("tok")
	const n = 50

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.Generate()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestPeopleSchema(t *testing.T) {
	s := PeopleSchema(t)
	person, ok := s.Object("Person")
	require.True(t, ok)
	assert.Len(t, person.Properties, 9)

	a, b := InMemory(t), InMemory(t)
	assert.NotEqual(t, a.Identity(), b.Identity())
	assert.NoError(t, a.Validate())
}
