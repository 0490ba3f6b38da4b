package statetree

import "testing"

func registerCounterSchema(t *testing.T) {
	t.Helper()
	_, err := RegisterSchema("counterTestNode", []FieldSchema{
		{Name: "count", Policy: PolicyBroadcast},
		{Name: "secret", Policy: PolicyServerOnly},
	})
	if err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}
}

func TestNodeWithIsCopyOnWrite(t *testing.T) {
	registerCounterSchema(t)
	n1 := NewNode("counterTestNode", map[string]Value{
		"count":  Int(0),
		"secret": String("x"),
	})
	n2 := n1.With("count", Int(1))

	if v, _ := n1.Get("count"); v.Equal(Int(1)) {
		t.Fatalf("original node was mutated")
	}
	if v, _ := n2.Get("count"); !v.Equal(Int(1)) {
		t.Fatalf("new node missing update, got %v", v)
	}
}

func TestTreeMutateAndDirtyTracking(t *testing.T) {
	registerCounterSchema(t)
	root := NewNode("counterTestNode", map[string]Value{
		"count":  Int(0),
		"secret": String("x"),
	})
	tree := NewTree(root)

	snap := tree.Mutate(1, func(w *Working) {
		w.SetField("count", Int(1))
	})
	if snap.TickID != 1 {
		t.Fatalf("tick id = %d, want 1", snap.TickID)
	}
	if v, _ := snap.Root.Get("count"); !v.Equal(Int(1)) {
		t.Fatalf("count = %v, want 1", v)
	}

	dirty, ok := tree.DirtyFields(root)
	if !ok {
		t.Fatalf("expected dirty fields for original root")
	}
	if _, ok := dirty["count"]; !ok {
		t.Fatalf("expected count marked dirty, got %v", dirty)
	}
	if _, ok := dirty["secret"]; ok {
		t.Fatalf("secret should not be dirty")
	}
}

func TestTreeCurrentSnapshotIsO1AndImmutable(t *testing.T) {
	registerCounterSchema(t)
	root := NewNode("counterTestNode", map[string]Value{
		"count":  Int(0),
		"secret": String("x"),
	})
	tree := NewTree(root)
	snap1 := tree.CurrentSnapshot()

	tree.Mutate(2, func(w *Working) {
		w.SetField("count", Int(5))
	})
	snap2 := tree.CurrentSnapshot()

	if v, _ := snap1.Root.Get("count"); !v.Equal(Int(0)) {
		t.Fatalf("snap1 was mutated in place: %v", v)
	}
	if v, _ := snap2.Root.Get("count"); !v.Equal(Int(5)) {
		t.Fatalf("snap2 count = %v, want 5", v)
	}
}

func TestDirtyTrackingDisabledDoesNotChangeValues(t *testing.T) {
	registerCounterSchema(t)
	root := NewNode("counterTestNode", map[string]Value{
		"count":  Int(0),
		"secret": String("x"),
	})
	tree := NewTree(root)
	tree.SetDirtyTracking(false)

	snap := tree.Mutate(1, func(w *Working) {
		w.SetField("count", Int(9))
	})
	if v, _ := snap.Root.Get("count"); !v.Equal(Int(9)) {
		t.Fatalf("count = %v, want 9 regardless of dirty tracking", v)
	}
	if _, ok := tree.DirtyFields(root); ok {
		t.Fatalf("dirty tracking disabled but DirtyFields reported data")
	}
}

func TestRegisterSchemaRejectsMalformedDeclarations(t *testing.T) {
	if _, err := RegisterSchema("", nil); err == nil {
		t.Fatalf("expected error for empty type name")
	}
	if _, err := RegisterSchema("dupTestNode", []FieldSchema{
		{Name: "a", Policy: PolicyBroadcast},
		{Name: "a", Policy: PolicyServerOnly},
	}); err == nil {
		t.Fatalf("expected error for duplicate field name")
	}
	if _, err := RegisterSchema("maskTestNode", []FieldSchema{
		{Name: "a", Policy: PolicyMasked},
	}); err == nil {
		t.Fatalf("expected error for masked field without MaskFunc")
	}
}

func TestNewNodePanicsOnUnknownOrMissingField(t *testing.T) {
	registerCounterSchema(t)

	mustPanic := func(name string, fn func()) {
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		fn()
	}

	mustPanic("missing field", func() {
		NewNode("counterTestNode", map[string]Value{"count": Int(0)})
	})
	mustPanic("unknown field", func() {
		NewNode("counterTestNode", map[string]Value{
			"count": Int(0), "secret": String("x"), "bogus": Int(1),
		})
	})
}

func TestFieldsAreCanonicallySorted(t *testing.T) {
	schema, err := RegisterSchema("orderedTestNode", []FieldSchema{
		{Name: "zeta", Policy: PolicyBroadcast},
		{Name: "alpha", Policy: PolicyBroadcast},
		{Name: "mid", Policy: PolicyBroadcast},
	})
	if err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}
	fields := schema.Fields()
	want := []string{"alpha", "mid", "zeta"}
	for i, f := range fields {
		if f.Name != want[i] {
			t.Fatalf("fields[%d] = %s, want %s", i, f.Name, want[i])
		}
	}
}

func TestPerPlayerSliceRequiresMapping(t *testing.T) {
	_, err := RegisterSchema("ppsTestNode", []FieldSchema{
		{Name: "inventories", Policy: PolicyPerPlayerSlice},
	})
	if err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for non-mapping perPlayerSlice value")
		}
	}()
	NewNode("ppsTestNode", map[string]Value{"inventories": String("nope")})
}
