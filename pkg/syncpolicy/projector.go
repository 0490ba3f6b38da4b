package syncpolicy

import (
	"sort"

	"github.com/landkeeper/engine/pkg/statetree"
)

// Project produces the per-recipient view of root by recursively applying
// each field's declared policy. perPlayerSlice collapses the mapping to the
// single entry keyed by the recipient's PlayerID, or, for an admin export,
// leaves stale entries for absent players visible; serverOnly fields are
// elided; masked fields are replaced with the mask function's output;
// custom defers to its predicate.
func Project(root *statetree.Node, r statetree.Recipient) *statetree.Node {
	return projectNode(root, r)
}

func projectNode(n *statetree.Node, r statetree.Recipient) *statetree.Node {
	if n == nil {
		return nil
	}
	schema := n.Schema()
	out := make(map[string]statetree.Value, len(schema.Fields()))

	for _, f := range schema.Fields() {
		v, _ := n.Get(f.Name)

		switch f.Policy {
		case statetree.PolicyInternal, statetree.PolicyServerOnly:
			// internal is never tracked in the first place; serverOnly is
			// tracked but never emitted. Both are simply omitted from the
			// projected node. Callers needing serverOnly for hashing use
			// HashView instead.
			continue

		case statetree.PolicyBroadcast:
			out[f.Name] = projectValue(v, r)

		case statetree.PolicyPerPlayerSlice:
			out[f.Name] = projectPerPlayerSlice(v, r)

		case statetree.PolicyMasked:
			if f.Mask != nil {
				out[f.Name] = projectValue(f.Mask(v, r), r)
			}

		case statetree.PolicyCustom:
			if f.Custom != nil {
				if mv, ok := f.Custom(v, r); ok {
					out[f.Name] = projectValue(mv, r)
				}
			}
		}
	}
	return rebuild(schema, out)
}

// projectPerPlayerSlice collapses a mapping keyed by PlayerID to the single
// entry the recipient owns. Stale entries (keyed by a player no longer in
// the Land) still project for an admin export; for a normal recipient they
// are simply absent because no key matches the recipient's PlayerID.
func projectPerPlayerSlice(v statetree.Value, r statetree.Recipient) statetree.Value {
	m, ok := v.AsMap()
	if !ok {
		return v
	}
	if r.Admin {
		out := make(map[string]statetree.Value, len(m))
		for k, vv := range m {
			out[k] = projectValue(vv, r)
		}
		return statetree.Map(out)
	}
	entry, ok := m[r.PlayerID]
	if !ok {
		return statetree.Map(nil)
	}
	return statetree.Map(map[string]statetree.Value{r.PlayerID: projectValue(entry, r)})
}

// projectValue recurses into nested nodes, lists, and maps so that nested
// sync policies (e.g. a broadcast field whose value is itself a node with
// its own masked sub-field) are honored.
func projectValue(v statetree.Value, r statetree.Recipient) statetree.Value {
	switch v.Kind() {
	case statetree.KindNode:
		n, _ := v.AsNode()
		return statetree.NodeValue(projectNode(n, r))
	case statetree.KindList:
		items, _ := v.AsList()
		out := make([]statetree.Value, len(items))
		for i, it := range items {
			out[i] = projectValue(it, r)
		}
		return statetree.List(out)
	case statetree.KindMap:
		m, _ := v.AsMap()
		out := make(map[string]statetree.Value, len(m))
		for k, vv := range m {
			out[k] = projectValue(vv, r)
		}
		return statetree.Map(out)
	default:
		return v
	}
}

// rebuild constructs a projected Node. Projected nodes only ever carry the
// subset of fields the policies allowed through, so we bypass
// statetree.NewNode's "every declared field must be present" validation
// (that invariant is for authoritative construction, not read-only views)
// by building directly against the schema's known field set.
func rebuild(schema *statetree.NodeSchema, values map[string]statetree.Value) *statetree.Node {
	return statetree.NewProjectedNode(schema, values)
}

// SortedKeys returns a mapping's keys in canonical (sorted) order, for
// callers that need a deterministic walk over a mapping.
func SortedKeys(m map[string]statetree.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HashView produces the broadcast+serverOnly visibility used for state
// hashing: includes serverOnly fields (the full authoritative state) but
// excludes internal fields and does not apply perPlayerSlice collapsing
// (hashing sees the whole mapping, not one player's slice).
func HashView(n *statetree.Node) *statetree.Node {
	return hashViewNode(n)
}

func hashViewNode(n *statetree.Node) *statetree.Node {
	if n == nil {
		return nil
	}
	schema := n.Schema()
	out := make(map[string]statetree.Value, len(schema.Fields()))
	for _, f := range schema.Fields() {
		if f.Policy == statetree.PolicyInternal {
			continue
		}
		v, _ := n.Get(f.Name)
		out[f.Name] = hashViewValue(v)
	}
	return rebuild(schema, out)
}

func hashViewValue(v statetree.Value) statetree.Value {
	switch v.Kind() {
	case statetree.KindNode:
		n, _ := v.AsNode()
		return statetree.NodeValue(hashViewNode(n))
	case statetree.KindList:
		items, _ := v.AsList()
		out := make([]statetree.Value, len(items))
		for i, it := range items {
			out[i] = hashViewValue(it)
		}
		return statetree.List(out)
	case statetree.KindMap:
		m, _ := v.AsMap()
		out := make(map[string]statetree.Value, len(m))
		for k, vv := range m {
			out[k] = hashViewValue(vv)
		}
		return statetree.Map(out)
	default:
		return v
	}
}
