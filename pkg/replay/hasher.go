package replay

import (
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
	"github.com/landkeeper/engine/pkg/protocol"
	"github.com/landkeeper/engine/pkg/statetree"
	"github.com/landkeeper/engine/pkg/syncpolicy"
)

// Hasher computes the per-tick state hash used by re-evaluation: xxhash
// over the msgpack encoding of the tree's broadcast+serverOnly projection.
// xxhash is fixed-width and architecture-stable, and protocol.Encode sorts
// map keys before encoding, so two processes that reach the same logical
// state always produce the same hex digest regardless of Go's randomized
// map iteration order.
type Hasher struct{}

// NewHasher constructs the default re-evaluation state hasher.
func NewHasher() *Hasher { return &Hasher{} }

// Hash implements keeper.StateHasher.
func (h *Hasher) Hash(root *statetree.Node) string {
	view := syncpolicy.HashView(root)
	encoded, err := protocol.Encode(statetree.NodeValue(view).ToNative())
	if err != nil {
		// HashView only ever produces msgpack-encodable native values
		// (maps, slices, scalars); a failure here means statetree itself
		// is broken, not a recoverable condition for one Land's hash.
		panic("replay: hash view failed to encode: " + err.Error())
	}
	sum := xxhash.Sum64(encoded)
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(sum >> (56 - 8*i))
	}
	return hex.EncodeToString(buf[:])
}
