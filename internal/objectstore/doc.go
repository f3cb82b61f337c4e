// Package objectstore is the versioned object engine behind live collections.
//
// A DB holds a chain of immutable Versions. Each Version maps object types
// to tables; a table keeps its rows in insertion order. Commits publish a
// new Version and share every table they did not touch (copy-on-write), so
// pinning a Version is an O(1) snapshot.
//
// A Conn is a single-goroutine handle pinned to one Version. It can open a
// write transaction (one writer per DB), build Collections over its current
// view, subscribe to per-version change sets on those collections, and
// export collections as Descriptors that another Conn can resolve.
//
// # Collections
//
// Four kinds share one interface:
//
//	KindResults     objects of one type, filtered by a Predicate and sorted
//	KindList        the list property of one owner object
//	KindSet         the set property of one owner object (sorted, unique)
//	KindDictionary  the keys of a map property of one owner object
//
// List, set and dictionary collections are rooted in their owner; when the
// owner row is deleted the collection becomes invalid and its subscribers
// see one final change set with RootDeleted set.
//
// # Change sets
//
// Deletions are indices in the old version, insertions and modifications
// are indices in the new version. Object and dictionary collections are
// diffed by identity; elements whose relative order changed are reported as
// a deletion plus an insertion (the longest increasing subsequence stays
// put). Primitive lists are diffed with a longest common subsequence.
// A modification is an element present in both versions whose fingerprint
// changed; fingerprints cover the whole row, or only the observed keypaths
// (following links) when the subscription names some.
package objectstore
