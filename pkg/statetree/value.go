package statetree

import "fmt"

// Kind identifies the concrete shape stored in a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
	KindNode
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindNode:
		return "node"
	default:
		return "unknown"
	}
}

// Value is the closed sum type held by terminal fields and collection
// elements in a StateTree. It mirrors the discipline of vdom.VNode's closed
// Kind switch: callers branch on Kind rather than type-asserting against an
// open interface, keeping reflect off the per-tick hot path.
type Value struct {
	kind Kind

	b    bool
	i    int64
	f    float64
	s    string
	by   []byte
	list []Value
	// m is keyed by string (PlayerID and other dynamic keys are always
	// strings on the wire; callers needing typed keys convert at the edge).
	m    map[string]Value
	node *Node
}

func Null() Value                { return Value{kind: KindNull} }
func Bool(v bool) Value          { return Value{kind: KindBool, b: v} }
func Int(v int64) Value          { return Value{kind: KindInt, i: v} }
func Float(v float64) Value      { return Value{kind: KindFloat, f: v} }
func String(v string) Value      { return Value{kind: KindString, s: v} }
func Bytes(v []byte) Value       { return Value{kind: KindBytes, by: append([]byte(nil), v...)} }
func NodeValue(n *Node) Value    { return Value{kind: KindNode, node: n} }

// List constructs an ordered collection value. The slice is copied so the
// caller's backing array can be reused.
func List(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Map constructs a keyed mapping value. The map is copied so the caller's
// map can be mutated afterward without aliasing the stored value.
func Map(entries map[string]Value) Value {
	cp := make(map[string]Value, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)       { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool)   { return v.f, v.kind == KindFloat }
func (v Value) AsString() (string, bool)   { return v.s, v.kind == KindString }
func (v Value) AsBytes() ([]byte, bool)    { return v.by, v.kind == KindBytes }
func (v Value) AsNode() (*Node, bool)      { return v.node, v.kind == KindNode }

// AsList returns the ordered elements. The returned slice must not be
// mutated by the caller.
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == KindList }

// AsMap returns the keyed entries. The returned map must not be mutated by
// the caller.
func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// Equal reports whether two values are structurally identical. Used by the
// diff engine's terminal comparison: terminals are compared by equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindBytes:
		return string(v.by) == string(o.by)
	case KindNode:
		return v.node.Equal(o.node)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, vv := range v.m {
			ov, ok := o.m[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ToNative converts a Value to a plain Go value suitable for generic
// serializers (msgpack, JSON) that don't know about statetree.Value. Nodes
// flatten to map[string]any keyed by field name.
func (v Value) ToNative() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return v.by
	case KindList:
		out := make([]any, len(v.list))
		for i, it := range v.list {
			out[i] = it.ToNative()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, vv := range v.m {
			out[k] = vv.ToNative()
		}
		return out
	case KindNode:
		if v.node == nil {
			return nil
		}
		out := make(map[string]any, len(v.node.values))
		for _, f := range v.node.schema.Fields() {
			fv, ok := v.node.Get(f.Name)
			if !ok {
				continue
			}
			out[f.Name] = fv.ToNative()
		}
		return out
	default:
		return nil
	}
}

// FromNative converts a plain Go value (as produced by a generic
// deserializer) back into a Value. Maps decode to KindMap; callers that
// need KindNode reconstruct it explicitly via statetree.NewProjectedNode
// once they know the target schema, since the wire form alone cannot
// distinguish "a map" from "a node's field set".
func FromNative(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case int64:
		return Int(t)
	case int:
		return Int(int64(t))
	case float64:
		return Float(t)
	case string:
		return String(t)
	case []byte:
		return Bytes(t)
	case []any:
		items := make([]Value, len(t))
		for i, it := range t {
			items[i] = FromNative(it)
		}
		return List(items)
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, vv := range t {
			out[k] = FromNative(vv)
		}
		return Map(out)
	default:
		return Null()
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.by))
	case KindList:
		return fmt.Sprintf("list(%d)", len(v.list))
	case KindMap:
		return fmt.Sprintf("map(%d)", len(v.m))
	case KindNode:
		return fmt.Sprintf("node(%s)", v.node.TypeName())
	default:
		return "?"
	}
}
