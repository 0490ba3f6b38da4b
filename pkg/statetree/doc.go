// Package statetree implements the typed, hierarchical authoritative state of
// a Land: node kernel, value semantics, copy-on-write mutation, and an
// optional dirty-field recorder.
//
// Trees are value-semantic: mutate hands the caller an exclusive working
// copy, and commit is a pointer swap of the root. Dirty tracking records
// which top-level fields of which nodes were assigned during a mutation; it
// is an optimization only — disabling it (see Tree.SetDirtyTracking) must
// never change the output of Snapshot or Project.
//
// Dirty tracking is recorded at field granularity, not at mapping-key
// granularity: a perPlayerSlice field with one changed entry is reported
// dirty as a whole, not per key. A key-level dirty set would let diffing
// skip untouched entries in large per-player mappings; its absence is an
// accepted limitation, not a bug.
package statetree
