package resolver

import "context"

// Resolver is a named, asynchronous computation producing a typed output
// consumed by handlers that declare it as a dependency.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context) (any, error)
}

// Func adapts a plain function into a Resolver.
type Func struct {
	NameVal string
	Fn      func(ctx context.Context) (any, error)
}

func (f Func) Name() string { return f.NameVal }

func (f Func) Resolve(ctx context.Context) (any, error) { return f.Fn(ctx) }

// Result is one resolver's outcome: exactly one of Value or Err is
// meaningful.
type Result struct {
	Value any
	Err   error
}

// OutputMap is the heterogeneous map of resolver outputs for one tick,
// keyed by resolver name and discarded after the tick completes. Handlers
// read through the Get and Failed accessors; values are untyped (any).
type OutputMap map[string]Result

// Get returns the named resolver's result, or (Result{}, false) if that
// resolver was not run this tick (e.g. no item in the batch declared it).
func (m OutputMap) Get(name string) (Result, bool) {
	r, ok := m[name]
	return r, ok
}

// Failed reports whether the named resolver ran and produced an error.
func (m OutputMap) Failed(name string) bool {
	r, ok := m[name]
	return ok && r.Err != nil
}
