package protocol

import (
	"strconv"

	"github.com/landkeeper/engine/pkg/statetree"
	"github.com/landkeeper/engine/pkg/syncengine"
)

// PathSegment is one component of a patch path on the wire. Segments that
// parse as integers (list indices), and every segment when no SlotTable is
// given, pass through verbatim in Static. Every other segment, declared
// field names and runtime mapping keys such as a PlayerID alike, is
// slot-compressed: Slot is always present, Key is present only on the
// session's first reference to that string.
type PathSegment struct {
	Static string  `msgpack:"s,omitempty"`
	Slot   *uint32 `msgpack:"slot,omitempty"`
	Key    *string `msgpack:"key,omitempty"`
}

// PatchWire is the wire representation of a syncengine.Patch. PathHash is
// set when the full path was registered at schema time; otherwise Path
// carries the (possibly slot-compressed) segment list.
type PatchWire struct {
	PathHash *uint32       `msgpack:"pathHash,omitempty"`
	Path     []PathSegment `msgpack:"path,omitempty"`
	Op       uint8         `msgpack:"op"`
	Value    any           `msgpack:"value,omitempty"`
}

// EncodePatches converts a diff's patch stream to wire form, applying path
// hashing for statically known paths and slot compression for dynamic
// mapping keys. paths and slots may be nil to always fall back to plain
// string segments (useful in tests and for the admin export path, which has
// no stable per-session slot table).
func EncodePatches(patches []syncengine.Patch, paths *PathTable, slots *SlotTable) []PatchWire {
	out := make([]PatchWire, len(patches))
	for i, p := range patches {
		out[i] = encodePatch(p, paths, slots)
	}
	return out
}

func encodePatch(p syncengine.Patch, paths *PathTable, slots *SlotTable) PatchWire {
	wire := PatchWire{Op: uint8(p.Op)}
	if p.Op != syncengine.OpDelete {
		wire.Value = p.Value.ToNative()
	}

	if paths != nil {
		if h, ok := paths.Hash(p.Path); ok {
			wire.PathHash = &h
			return wire
		}
	}

	segs := make([]PathSegment, len(p.Path))
	for i, seg := range p.Path {
		segs[i] = encodeSegment(seg, slots)
	}
	wire.Path = segs
	return wire
}

func encodeSegment(seg string, slots *SlotTable) PathSegment {
	if isListIndex(seg) || slots == nil {
		return PathSegment{Static: seg}
	}
	slot, firstUse := slots.Encode(seg)
	ps := PathSegment{Slot: &slot}
	if firstUse {
		k := seg
		ps.Key = &k
	}
	return ps
}

func isListIndex(seg string) bool {
	if seg == "" {
		return false
	}
	_, err := strconv.Atoi(seg)
	return err == nil
}

// DecodePatches reverses EncodePatches using the same PathTable and the
// receiving side's mirror SlotTable (populated via SlotTable.Observe as
// first-use announcements arrive).
func DecodePatches(wires []PatchWire, paths *PathTable, slots *SlotTable) []syncengine.Patch {
	out := make([]syncengine.Patch, len(wires))
	for i, w := range wires {
		out[i] = decodePatch(w, paths, slots)
	}
	return out
}

func decodePatch(w PatchWire, paths *PathTable, slots *SlotTable) syncengine.Patch {
	p := syncengine.Patch{Op: syncengine.Op(w.Op)}
	if w.Value != nil {
		p.Value = statetree.FromNative(w.Value)
	}

	if w.PathHash != nil && paths != nil {
		if segs, ok := paths.Segments(*w.PathHash); ok {
			p.Path = segs
			return p
		}
	}

	segs := make([]string, len(w.Path))
	for i, s := range w.Path {
		if s.Slot != nil {
			if s.Key != nil && slots != nil {
				slots.Observe(*s.Slot, *s.Key)
			}
			if slots != nil {
				if k, ok := slots.Resolve(*s.Slot); ok {
					segs[i] = k
					continue
				}
			}
			if s.Key != nil {
				segs[i] = *s.Key
			}
			continue
		}
		segs[i] = s.Static
	}
	p.Path = segs
	return p
}
