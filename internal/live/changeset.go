package live

import (
	"slices"

	"github.com/roach88/livecoll/internal/objectstore"
)

// IndexPath addresses an element of a sectioned list view.
type IndexPath struct {
	Section int
	Item    int
}

// ChangeSet describes how a collection changed between two deliveries.
// Deletions index the previous contents; insertions and modifications
// index the new contents.
type ChangeSet struct {
	insertions    []int
	deletions     []int
	modifications []int
}

// NewChangeSet builds a change set from index lists.
func NewChangeSet(insertions, deletions, modifications []int) *ChangeSet {
	return &ChangeSet{
		insertions:    slices.Clone(insertions),
		deletions:     slices.Clone(deletions),
		modifications: slices.Clone(modifications),
	}
}

func newChangeSet(cs objectstore.ChangeSet) *ChangeSet {
	return NewChangeSet(cs.Insertions, cs.Deletions, cs.Modifications)
}

// Insertions returns the indices of inserted elements.
func (cs *ChangeSet) Insertions() []int { return slices.Clone(cs.insertions) }

// Deletions returns the previous indices of deleted elements.
func (cs *ChangeSet) Deletions() []int { return slices.Clone(cs.deletions) }

// Modifications returns the indices of modified elements.
func (cs *ChangeSet) Modifications() []int { return slices.Clone(cs.modifications) }

// InsertionsInSection projects Insertions into section.
func (cs *ChangeSet) InsertionsInSection(section int) []IndexPath {
	return project(cs.insertions, section)
}

// DeletionsInSection projects Deletions into section.
func (cs *ChangeSet) DeletionsInSection(section int) []IndexPath {
	return project(cs.deletions, section)
}

// ModificationsInSection projects Modifications into section.
func (cs *ChangeSet) ModificationsInSection(section int) []IndexPath {
	return project(cs.modifications, section)
}

func project(indices []int, section int) []IndexPath {
	out := make([]IndexPath, len(indices))
	for i, idx := range indices {
		out[i] = IndexPath{Section: section, Item: idx}
	}
	return out
}
