package objectstore

import (
	"slices"
	"sort"
)

// ChangeSet is the delta between two versions of a collection.
// Deletions index the old version; insertions and modifications index the
// new one. All three are ascending.
type ChangeSet struct {
	Insertions    []int
	Deletions     []int
	Modifications []int
	// RootDeleted is set once, on the change set that observed the owner
	// of a list, set or dictionary disappear.
	RootDeleted bool
}

// Empty reports whether nothing changed.
func (cs ChangeSet) Empty() bool {
	return len(cs.Insertions) == 0 && len(cs.Deletions) == 0 &&
		len(cs.Modifications) == 0 && !cs.RootDeleted
}

// image is what a subscription remembers about one version of a
// collection: element identities and their fingerprints.
type image struct {
	ids         []string
	fps         []string
	rootDeleted bool
}

func diffImages(ordered bool, old, cur image) ChangeSet {
	var cs ChangeSet
	if ordered {
		cs = diffKeyed(old, cur)
	} else {
		cs = diffSequence(old.ids, cur.ids)
	}
	cs.RootDeleted = cur.rootDeleted && !old.rootDeleted
	return cs
}

// diffKeyed diffs sequences of unique identities. Common elements outside
// the longest increasing run of old positions are reported as moves
// (deletion plus insertion).
func diffKeyed(old, cur image) ChangeSet {
	var cs ChangeSet

	newIndex := make(map[string]int, len(cur.ids))
	for j, id := range cur.ids {
		newIndex[id] = j
	}
	oldIndex := make(map[string]int, len(old.ids))
	for i, id := range old.ids {
		oldIndex[id] = i
		if _, ok := newIndex[id]; !ok {
			cs.Deletions = append(cs.Deletions, i)
		}
	}

	var commonOld, commonNew []int
	for j, id := range cur.ids {
		if i, ok := oldIndex[id]; ok {
			commonOld = append(commonOld, i)
			commonNew = append(commonNew, j)
		} else {
			cs.Insertions = append(cs.Insertions, j)
		}
	}

	keep := longestIncreasing(commonOld)
	for k := range commonOld {
		i, j := commonOld[k], commonNew[k]
		if !keep[k] {
			cs.Deletions = append(cs.Deletions, i)
			cs.Insertions = append(cs.Insertions, j)
			continue
		}
		if old.fps[i] != cur.fps[j] {
			cs.Modifications = append(cs.Modifications, j)
		}
	}

	slices.Sort(cs.Deletions)
	slices.Sort(cs.Insertions)
	return cs
}

// longestIncreasing marks the members of one longest strictly increasing
// subsequence of seq.
func longestIncreasing(seq []int) []bool {
	keep := make([]bool, len(seq))
	if len(seq) == 0 {
		return keep
	}

	tails := make([]int, 0, len(seq))
	prev := make([]int, len(seq))
	for i, x := range seq {
		pos := sort.Search(len(tails), func(k int) bool { return seq[tails[k]] >= x })
		prev[i] = -1
		if pos > 0 {
			prev[i] = tails[pos-1]
		}
		if pos == len(tails) {
			tails = append(tails, i)
		} else {
			tails[pos] = i
		}
	}
	for i := tails[len(tails)-1]; i >= 0; i = prev[i] {
		keep[i] = true
	}
	return keep
}

// diffSequence diffs sequences that may repeat values using a longest
// common subsequence. A replaced element is a deletion plus an insertion.
func diffSequence(old, cur []string) ChangeSet {
	var cs ChangeSet

	prefix := 0
	for prefix < len(old) && prefix < len(cur) && old[prefix] == cur[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(cur)-prefix &&
		old[len(old)-1-suffix] == cur[len(cur)-1-suffix] {
		suffix++
	}
	a := old[prefix : len(old)-suffix]
	b := cur[prefix : len(cur)-suffix]

	// lcs[i][j] = LCS length of a[i:] and b[j:]
	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			cs.Deletions = append(cs.Deletions, prefix+i)
			i++
		default:
			cs.Insertions = append(cs.Insertions, prefix+j)
			j++
		}
	}
	for ; i < len(a); i++ {
		cs.Deletions = append(cs.Deletions, prefix+i)
	}
	for ; j < len(b); j++ {
		cs.Insertions = append(cs.Insertions, prefix+j)
	}
	return cs
}
