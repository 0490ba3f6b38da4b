// Package schemahttp exposes a GET /schema contract describing every
// registered land type: its StateTree node schema plus the action/client
// event TypeIDs it handles. Route registration into a host application's
// router is the host's job; this package only provides the handler and a
// router-returning constructor, never owning http.ListenAndServe itself.
package schemahttp

import (
	"sort"
	"sync"

	"github.com/landkeeper/engine/pkg/statetree"
)

// LandTypeSchema describes one registered land type for the schema
// endpoint: its root StateTree node schema and the TypeIDs of the actions
// and client events it accepts.
type LandTypeSchema struct {
	LandType   string
	NodeSchema *statetree.NodeSchema
	TypeIDs    []string
}

// Registry collects the LandTypeSchema entries served by a schema Router.
// A host registers one entry per land type it mounts on a Realm, typically
// at startup alongside the matching RegisterLandType call.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]LandTypeSchema
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]LandTypeSchema)}
}

// Register installs or replaces the schema for one land type.
func (r *Registry) Register(s LandTypeSchema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.LandType] = s
}

// LandTypes returns every registered land type's schema, sorted by
// LandType for a stable response body.
func (r *Registry) LandTypes() []LandTypeSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LandTypeSchema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LandType < out[j].LandType })
	return out
}
