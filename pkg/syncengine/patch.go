package syncengine

import "github.com/landkeeper/engine/pkg/statetree"

// Op identifies the kind of change a Patch describes.
type Op uint8

const (
	OpSet Op = iota
	OpDelete
	OpAdd
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpDelete:
		return "delete"
	case OpAdd:
		return "add"
	default:
		return "unknown"
	}
}

// Patch is a single delta unit: (path, operation, value?). Path is a
// sequence of canonical component segments (field name, or collection
// key/index) produced by the deterministic pre-order walk.
type Patch struct {
	Path  []string
	Op    Op
	Value statetree.Value
}
