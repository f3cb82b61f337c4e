package live

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangeSet_SectionProjection(t *testing.T) {
	cs := NewChangeSet([]int{2, 5}, []int{0}, []int{1})

	assert.Equal(t, []IndexPath{{3, 2}, {3, 5}}, cs.InsertionsInSection(3))
	assert.Equal(t, []IndexPath{{3, 0}}, cs.DeletionsInSection(3))
	assert.Equal(t, []IndexPath{{3, 1}}, cs.ModificationsInSection(3))
}

func TestChangeSet_PreservesOrder(t *testing.T) {
	cs := NewChangeSet([]int{9, 1, 4}, nil, nil)
	paths := cs.InsertionsInSection(0)
	assert.Equal(t, []IndexPath{{0, 9}, {0, 1}, {0, 4}}, paths)
	assert.Empty(t, cs.DeletionsInSection(0))
	assert.Len(t, cs.ModificationsInSection(7), 0)
}

func TestChangeSet_AccessorsCopy(t *testing.T) {
	ins := []int{1, 2}
	cs := NewChangeSet(ins, nil, nil)
	ins[0] = 99
	got := cs.Insertions()
	got[1] = 42
	assert.Equal(t, []int{1, 2}, cs.Insertions())
}
