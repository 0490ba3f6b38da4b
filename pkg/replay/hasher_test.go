package replay

import (
	"testing"

	"github.com/landkeeper/engine/pkg/statetree"
)

func registerHasherTestSchema(t *testing.T) {
	t.Helper()
	statetree.RegisterSchema("replayHasherCounter", []statetree.FieldSchema{
		{Name: "count", Policy: statetree.PolicyBroadcast},
		{Name: "secret", Policy: statetree.PolicyServerOnly},
		{Name: "scratch", Policy: statetree.PolicyInternal},
	})
}

func newHasherTestNode(t *testing.T, count int64) *statetree.Node {
	t.Helper()
	registerHasherTestSchema(t)
	return statetree.NewNode("replayHasherCounter", map[string]statetree.Value{
		"count":   statetree.Int(count),
		"secret":  statetree.Int(1),
		"scratch": statetree.Int(2),
	})
}

func TestHashIsStableAcrossCalls(t *testing.T) {
	h := NewHasher()
	n := newHasherTestNode(t, 5)

	h1 := h.Hash(n)
	h2 := h.Hash(n)
	if h1 != h2 {
		t.Fatalf("hash not stable: %q vs %q", h1, h2)
	}
	if len(h1) != 16 {
		t.Fatalf("hash length = %d, want 16 hex chars for a 64-bit digest", len(h1))
	}
}

func TestHashChangesWithBroadcastField(t *testing.T) {
	h := NewHasher()
	a := newHasherTestNode(t, 5)
	b := newHasherTestNode(t, 6)

	if h.Hash(a) == h.Hash(b) {
		t.Fatalf("expected different hashes for different count values")
	}
}

func TestHashIgnoresInternalButIncludesServerOnly(t *testing.T) {
	h := NewHasher()
	registerHasherTestSchema(t)

	withSecret := statetree.NewNode("replayHasherCounter", map[string]statetree.Value{
		"count": statetree.Int(5), "secret": statetree.Int(1), "scratch": statetree.Int(0),
	})
	differentSecret := statetree.NewNode("replayHasherCounter", map[string]statetree.Value{
		"count": statetree.Int(5), "secret": statetree.Int(2), "scratch": statetree.Int(0),
	})
	differentScratch := statetree.NewNode("replayHasherCounter", map[string]statetree.Value{
		"count": statetree.Int(5), "secret": statetree.Int(1), "scratch": statetree.Int(999),
	})

	if h.Hash(withSecret) == h.Hash(differentSecret) {
		t.Fatalf("expected serverOnly field to affect the hash")
	}
	if h.Hash(withSecret) != h.Hash(differentScratch) {
		t.Fatalf("expected internal field to be excluded from the hash")
	}
}
