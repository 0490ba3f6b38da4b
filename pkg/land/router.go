package land

import "github.com/landkeeper/engine/pkg/landerr"

// Router resolves an inbound join's (landType, landID) pair to the Entry
// that should handle it, creating the Land on first join.
type Router struct {
	realm *Realm
}

// NewRouter constructs a Router over realm.
func NewRouter(realm *Realm) *Router {
	return &Router{realm: realm}
}

// Resolve returns the Entry for (landType, landID), creating it if this is
// the first join to that instance.
func (rt *Router) Resolve(landType, landID string) (*Entry, error) {
	m, ok := rt.realm.Manager(landType)
	if !ok {
		return nil, landerr.ErrLandNotFound
	}
	return m.GetOrCreate(landID)
}

// Lookup returns the Entry for (landType, landID) without creating it.
func (rt *Router) Lookup(landType, landID string) (*Entry, bool) {
	m, ok := rt.realm.Manager(landType)
	if !ok {
		return nil, false
	}
	return m.Get(landID)
}
