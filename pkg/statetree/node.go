package statetree

import (
	"fmt"
	"sort"
	"sync"
)

// Policy is the per-field synchronization policy declared at type
// definition time.
type Policy uint8

const (
	// PolicyBroadcast sends the same value to every session observing the Land.
	PolicyBroadcast Policy = iota
	// PolicyPerPlayerSlice requires a mapping keyed by PlayerID; each session
	// receives only the entry matching its bound PlayerID.
	PolicyPerPlayerSlice
	// PolicyMasked transforms the value through a projection function before send.
	PolicyMasked
	// PolicyCustom defers inclusion to a predicate, per session and subtree.
	PolicyCustom
	// PolicyServerOnly is tracked and recorded but never emitted over the wire.
	PolicyServerOnly
	// PolicyInternal is not tracked by the engine at all.
	PolicyInternal
)

func (p Policy) String() string {
	switch p {
	case PolicyBroadcast:
		return "broadcast"
	case PolicyPerPlayerSlice:
		return "perPlayerSlice"
	case PolicyMasked:
		return "masked"
	case PolicyCustom:
		return "custom"
	case PolicyServerOnly:
		return "serverOnly"
	case PolicyInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Recipient identifies who a projection is being produced for.
type Recipient struct {
	SessionID string
	PlayerID  string
	LandID    string
	// Admin marks an export view that is allowed to see stale perPlayerSlice
	// entries belonging to players no longer present in the Land.
	Admin bool
}

// MaskFunc transforms a masked field's value before it is sent to a recipient.
type MaskFunc func(v Value, r Recipient) Value

// CustomFunc decides, per session and subtree, whether a value is included.
// Returning false elides the field entirely for that recipient.
type CustomFunc func(v Value, r Recipient) (Value, bool)

// FieldSchema declares one synchronized field of a Node type.
type FieldSchema struct {
	Name   string
	Policy Policy
	Mask   MaskFunc   // set iff Policy == PolicyMasked
	Custom CustomFunc // set iff Policy == PolicyCustom
}

// NodeSchema is the build-time-registered, alphabetically ordered field list
// for one node type. Every stored field must appear here exactly once.
// RegisterSchema returns an error rather than panicking for a malformed
// declaration (empty type or field name, duplicate field, masked or custom
// field without its function), so callers can fail application startup
// cleanly; a stored field missing from the schema is caught by NewNode,
// which panics.
type NodeSchema struct {
	TypeName string
	fields   []FieldSchema
	byName   map[string]FieldSchema
}

var (
	schemaMu       sync.RWMutex
	schemaRegistry = map[string]*NodeSchema{}
)

// RegisterSchema validates and registers a node type's field declarations.
// Field order is canonicalized alphabetically once here so every later walk
// (diff, project, hash) agrees on ordering without re-sorting.
func RegisterSchema(typeName string, fields []FieldSchema) (*NodeSchema, error) {
	if typeName == "" {
		return nil, fmt.Errorf("statetree: type name must not be empty")
	}
	seen := make(map[string]struct{}, len(fields))
	byName := make(map[string]FieldSchema, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("statetree: %s: field with empty name", typeName)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("statetree: %s: duplicate field %q", typeName, f.Name)
		}
		if f.Policy == PolicyMasked && f.Mask == nil {
			return nil, fmt.Errorf("statetree: %s.%s: masked policy requires a MaskFunc", typeName, f.Name)
		}
		if f.Policy == PolicyCustom && f.Custom == nil {
			return nil, fmt.Errorf("statetree: %s.%s: custom policy requires a CustomFunc", typeName, f.Name)
		}
		seen[f.Name] = struct{}{}
		byName[f.Name] = f
	}
	sorted := append([]FieldSchema(nil), fields...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	schema := &NodeSchema{TypeName: typeName, fields: sorted, byName: byName}

	schemaMu.Lock()
	schemaRegistry[typeName] = schema
	schemaMu.Unlock()
	return schema, nil
}

// LookupSchema returns a previously registered schema, or nil if unknown.
func LookupSchema(typeName string) *NodeSchema {
	schemaMu.RLock()
	defer schemaMu.RUnlock()
	return schemaRegistry[typeName]
}

// Fields returns the canonical (alphabetically sorted) field declarations.
func (s *NodeSchema) Fields() []FieldSchema { return s.fields }

// Field looks up a single field declaration by name.
func (s *NodeSchema) Field(name string) (FieldSchema, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Node is one typed node of a StateTree. Nodes are value-semantic: a mutator
// must never write into a Node reachable from a published Snapshot; it must
// clone via Tree.Mutate's working copy first. The kernel does not enforce
// this at runtime: the kernel itself assumes a single writer, and the
// LandKeeper's serialization is what makes that assumption safe.
type Node struct {
	schema *NodeSchema
	values map[string]Value
}

// NewNode constructs a node of the given registered type with the supplied
// field values. Every field the schema declares must be present; a missing
// or unknown field is a programmer error and panics rather than returning
// an error, since it signals a mismatch between code and schema that no
// caller can recover from meaningfully.
func NewNode(typeName string, values map[string]Value) *Node {
	schema := LookupSchema(typeName)
	if schema == nil {
		panic(fmt.Sprintf("statetree: unregistered node type %q", typeName))
	}
	out := make(map[string]Value, len(schema.fields))
	for _, f := range schema.fields {
		v, ok := values[f.Name]
		if !ok {
			panic(fmt.Sprintf("statetree: %s: missing field %q", typeName, f.Name))
		}
		if f.Policy == PolicyPerPlayerSlice {
			if _, isMap := v.AsMap(); !isMap {
				panic(fmt.Sprintf("statetree: %s.%s: perPlayerSlice requires a mapping value", typeName, f.Name))
			}
		}
		out[f.Name] = v
	}
	for k := range values {
		if _, known := schema.byName[k]; !known {
			panic(fmt.Sprintf("statetree: %s: unknown field %q", typeName, k))
		}
	}
	return &Node{schema: schema, values: out}
}

// NewProjectedNode builds a read-only Node directly from a schema and an
// already-filtered value set, bypassing NewNode's "every declared field
// present" validation. Used by the projector (pkg/syncpolicy) to construct
// per-recipient views where policies may have elided fields entirely.
func NewProjectedNode(schema *NodeSchema, values map[string]Value) *Node {
	return &Node{schema: schema, values: values}
}

func (n *Node) TypeName() string   { return n.schema.TypeName }
func (n *Node) Schema() *NodeSchema { return n.schema }

// Get returns a field's current value.
func (n *Node) Get(field string) (Value, bool) {
	v, ok := n.values[field]
	return v, ok
}

// With returns a new Node with field set to v, leaving n untouched
// (copy-on-write — every entry of n's map is copied into a new map, so n
// is never modified).
func (n *Node) With(field string, v Value) *Node {
	if _, ok := n.schema.byName[field]; !ok {
		panic(fmt.Sprintf("statetree: %s: unknown field %q", n.schema.TypeName, field))
	}
	cp := make(map[string]Value, len(n.values))
	for k, vv := range n.values {
		cp[k] = vv
	}
	cp[field] = v
	return &Node{schema: n.schema, values: cp}
}

// Equal reports deep structural equality, used by diff's terminal compare
// and by tests asserting round-trip fidelity.
func (n *Node) Equal(o *Node) bool {
	if n == o {
		return true
	}
	if n == nil || o == nil {
		return false
	}
	if n.schema.TypeName != o.schema.TypeName {
		return false
	}
	if len(n.values) != len(o.values) {
		return false
	}
	for k, v := range n.values {
		ov, ok := o.values[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
