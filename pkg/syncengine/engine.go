package syncengine

import (
	"sync"

	"github.com/landkeeper/engine/pkg/statetree"
	"github.com/landkeeper/engine/pkg/syncpolicy"
)

// Engine maintains the per-session projection cache for one Land and
// produces full syncs or incremental diffs against it.
//
// The cache is only replaced after patches for a session have actually been
// computed, so a write failure upstream of the transport never desyncs the
// cache from what the client is assumed to have.
type Engine struct {
	mu    sync.Mutex
	cache map[string]*statetree.Node // sessionID -> last projected view

	// broadcastCache holds the most recent projection computed for an
	// all-broadcast recipient, reused across sessions that share the same
	// visibility (the "encode once, replicate" optimization).
	broadcastCache *statetree.Node
	broadcastTick  uint64
}

// NewEngine constructs an empty per-Land sync engine.
func NewEngine() *Engine {
	return &Engine{cache: make(map[string]*statetree.Node)}
}

// FullSnapshot is the payload of a first sync: an entire projected view.
type FullSnapshot struct {
	TickID uint64
	View   *statetree.Node
}

// FirstSyncFor produces a full projection for a session that has no cache
// entry yet (or is resyncing from scratch) and seeds the cache with it.
func (e *Engine) FirstSyncFor(snap statetree.Snapshot, r statetree.Recipient) FullSnapshot {
	view := syncpolicy.Project(snap.Root, r)

	e.mu.Lock()
	e.cache[r.SessionID] = view
	e.mu.Unlock()

	return FullSnapshot{TickID: snap.TickID, View: view}
}

// DiffSince produces the patch stream taking the session's cached view to
// the current projection, then replaces the cache with the new view.
func (e *Engine) DiffSince(snap statetree.Snapshot, r statetree.Recipient) []Patch {
	e.mu.Lock()
	prev := e.cache[r.SessionID]
	e.mu.Unlock()

	next := syncpolicy.Project(snap.Root, r)
	patches := DiffNodes(prev, next)

	e.mu.Lock()
	e.cache[r.SessionID] = next
	e.mu.Unlock()

	return patches
}

// Forget drops a session's cache entry (called when a session leaves or is
// evicted by reconnection).
func (e *Engine) Forget(sessionID string) {
	e.mu.Lock()
	delete(e.cache, sessionID)
	e.mu.Unlock()
}

// HasCache reports whether a session has a cached projection yet; callers
// use this to decide between FirstSyncFor and DiffSince.
func (e *Engine) HasCache(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.cache[sessionID]
	return ok
}

// BroadcastView returns a shared projection for recipients whose visibility
// is identical to the plain, non-admin, no-specific-player broadcast view —
// an encoding cost optimization only; correctness does not depend on it.
// Callers still diff the shared view against each session's own cache,
// since caches can be at different tick ids after an outage.
func (e *Engine) BroadcastView(snap statetree.Snapshot) *statetree.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.broadcastCache != nil && e.broadcastTick == snap.TickID {
		return e.broadcastCache
	}
	view := syncpolicy.Project(snap.Root, statetree.Recipient{})
	e.broadcastCache = view
	e.broadcastTick = snap.TickID
	return view
}
