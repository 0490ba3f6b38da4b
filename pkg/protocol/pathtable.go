package protocol

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// PathTable interns canonical field paths known at schema registration time
// into stable 32-bit hashes. Paths not present in the table (runtime paths
// through dynamic mapping keys) fall back to the string-segment form.
type PathTable struct {
	byHash map[uint32][]string
	toHash map[string]uint32
}

// NewPathTable builds an empty table; callers register every static path
// their schema can produce (typically once, at startup, from the
// alphabetically-ordered field lists of every registered node type).
func NewPathTable() *PathTable {
	return &PathTable{
		byHash: make(map[uint32][]string),
		toHash: make(map[string]uint32),
	}
}

// Register interns a static path and returns its hash. Registering the same
// path twice is a no-op. A hash collision between two distinct paths is
// treated as a registration error — at schema-definition time this is a
// human-fixable problem (rename a field), not a runtime condition to
// recover from.
func (t *PathTable) Register(path []string) (uint32, bool) {
	key := joinPath(path)
	if h, ok := t.toHash[key]; ok {
		return h, true
	}
	h := uint32(xxhash.Sum64String(key))
	if existing, collide := t.byHash[h]; collide && joinPath(existing) != key {
		return 0, false
	}
	t.toHash[key] = h
	t.byHash[h] = append([]string(nil), path...)
	return h, true
}

// Hash returns the interned hash for a path, if registered.
func (t *PathTable) Hash(path []string) (uint32, bool) {
	h, ok := t.toHash[joinPath(path)]
	return h, ok
}

// Segments resolves a hash back to its path segments.
func (t *PathTable) Segments(hash uint32) ([]string, bool) {
	segs, ok := t.byHash[hash]
	return segs, ok
}

func joinPath(path []string) string {
	return strings.Join(path, "\x1f")
}
