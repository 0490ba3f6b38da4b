package statetree

import "sync/atomic"

// Snapshot is an immutable image of a StateTree's root at a tick boundary,
// tagged with a monotonic tick ID.
type Snapshot struct {
	TickID uint64
	Root   *Node
}

// Tree holds the authoritative state of one Land. It is owned by
// exactly one LandKeeper; the kernel itself assumes a single writer and does
// not take locks — serialization is the caller's job.
type Tree struct {
	root   atomic.Pointer[Node]
	tickID atomic.Uint64

	dirtyEnabled atomic.Bool
	dirty        map[*Node]map[string]struct{} // cleared each mutate
}

// NewTree constructs a tree rooted at the given node, with dirty tracking on
// by default (ENABLE_DIRTY_TRACKING default "on").
func NewTree(root *Node) *Tree {
	t := &Tree{}
	t.root.Store(root)
	t.dirtyEnabled.Store(true)
	return t
}

// SetDirtyTracking toggles the optional dirty-field recorder. Disabling it
// must not change the output of CurrentSnapshot or Project.
func (t *Tree) SetDirtyTracking(enabled bool) { t.dirtyEnabled.Store(enabled) }

// CurrentSnapshot captures an O(1) image of the tree: a single pointer load,
// no structural copy, since nodes are immutable once published.
func (t *Tree) CurrentSnapshot() Snapshot {
	return Snapshot{TickID: t.tickID.Load(), Root: t.root.Load()}
}

// Working is the exclusive, write-enabled handle a mutate closure receives.
// It tracks per-node field assignments for the dirty recorder, then produces
// the next root via copy-on-write.
type Working struct {
	tree    *Tree
	current *Node
	dirty   map[*Node]map[string]struct{}
}

// Root returns the working copy's current root node.
func (w *Working) Root() *Node { return w.current }

// SetField replaces a field on the root node (or, transitively, returns a
// node with the field replaced — nested replacement of child nodes is the
// caller's responsibility via Node.With and re-assigning the parent field).
func (w *Working) SetField(field string, v Value) {
	next := w.current.With(field, v)
	w.record(w.current, field)
	w.current = next
}

// ReplaceRoot installs an entirely new root, recording every top-level field
// that differs from the previous root as dirty. Handlers that build a new
// subtree wholesale (e.g. after a perPlayerSlice map rebuild) use this
// instead of a sequence of SetField calls.
func (w *Working) ReplaceRoot(next *Node) {
	prev := w.current
	for _, f := range next.schema.Fields() {
		pv, _ := prev.Get(f.Name)
		nv, _ := next.Get(f.Name)
		if !pv.Equal(nv) {
			w.record(prev, f.Name)
		}
	}
	w.current = next
}

func (w *Working) record(n *Node, field string) {
	if w.dirty == nil {
		w.dirty = make(map[*Node]map[string]struct{})
	}
	set, ok := w.dirty[n]
	if !ok {
		set = make(map[string]struct{})
		w.dirty[n] = set
	}
	set[field] = struct{}{}
}

// Mutate grants the closure an exclusive working copy; on return, the new
// root replaces the old one atomically. Concurrent callers must be
// serialized by the hosting LandKeeper — Mutate itself does not lock.
func (t *Tree) Mutate(tickID uint64, fn func(w *Working)) Snapshot {
	w := t.Begin()
	fn(w)
	return t.Commit(w, tickID)
}

// Begin opens a working copy without publishing it. Callers that need
// rollback-on-failure (handlers run by a LandKeeper) call Begin, run
// their logic against the returned Working, and only call Commit on
// success; an error or panic simply discards w, leaving the tree untouched.
func (t *Tree) Begin() *Working {
	return &Working{tree: t, current: t.root.Load()}
}

// Commit publishes a working copy's root as the tree's new root, tagged
// with tickID, and returns the resulting snapshot.
func (t *Tree) Commit(w *Working, tickID uint64) Snapshot {
	t.root.Store(w.current)
	t.tickID.Store(tickID)
	if t.dirtyEnabled.Load() && w.dirty != nil {
		t.dirty = w.dirty
	} else {
		t.dirty = nil
	}
	return t.CurrentSnapshot()
}

// DirtyFields reports the top-level field names that were assigned on the
// given node during the most recent Mutate call. Returns (nil, false) when
// dirty tracking is disabled or the node was not touched — callers must
// treat that as "assume everything may have changed", never as "nothing
// changed" (dirty tracking is an optimization, not a correctness signal).
func (t *Tree) DirtyFields(n *Node) (map[string]struct{}, bool) {
	if !t.dirtyEnabled.Load() || t.dirty == nil {
		return nil, false
	}
	set, ok := t.dirty[n]
	return set, ok
}
