// Package syncengine implements the snapshot-and-diff pipeline: per-session
// caches of the most recently projected view, and a deterministic diff
// algorithm that turns two projections into a canonical, pre-order patch
// stream.
package syncengine
