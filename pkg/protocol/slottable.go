package protocol

import "sync"

// SlotTable assigns stable per-session integer aliases to dynamic mapping
// keys discovered at runtime (e.g. PlayerID strings). On first use of a key
// the full string is transmitted alongside the slot ID; subsequent
// references use the slot ID alone. Slot assignment is stable for the
// session's lifetime and never reused, so a client can cache the mapping
// without a revocation protocol.
type SlotTable struct {
	mu     sync.Mutex
	toSlot map[string]uint32
	toKey  map[uint32]string
	next   uint32
}

// NewSlotTable constructs an empty per-session slot table.
func NewSlotTable() *SlotTable {
	return &SlotTable{
		toSlot: make(map[string]uint32),
		toKey:  make(map[uint32]string),
	}
}

// Encode returns the slot ID for key, assigning a new one if this is the
// first time the session has seen it. firstUse is true exactly when a new
// slot was just assigned, signaling the caller to include the full key
// string alongside the slot ID in this message.
func (t *SlotTable) Encode(key string) (slot uint32, firstUse bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.toSlot[key]; ok {
		return s, false
	}
	s := t.next
	t.next++
	t.toSlot[key] = s
	t.toKey[s] = key
	return s, true
}

// Resolve returns the key previously assigned to a slot, used when decoding
// a reference-only message on the receiving end (the companion in-memory
// mirror a client is expected to maintain for the session's lifetime).
func (t *SlotTable) Resolve(slot uint32) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k, ok := t.toKey[slot]
	return k, ok
}

// Observe records a (slot, key) pair learned from a first-use announcement,
// without assigning a new slot. Used by a decoder mirroring the encoder's
// table, or in tests asserting slot stability.
func (t *SlotTable) Observe(slot uint32, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.toSlot[key] = slot
	t.toKey[slot] = key
	if slot >= t.next {
		t.next = slot + 1
	}
}
