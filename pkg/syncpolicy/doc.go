// Package syncpolicy implements the per-recipient projector: given a
// statetree.Snapshot and a recipient descriptor, it walks the tree and
// applies each field's declared sync policy, producing the filtered view
// that goes into a snapshot or diff.
//
// The result is deterministic: fields are walked in statetree's canonical
// (alphabetical) order, ordered collections in position order, and keyed
// collections are rebuilt as maps, so map iteration order never affects the
// projected view.
package syncpolicy
