package resolver

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// RunBatch executes the distinct resolvers declared by a tick's selected
// items concurrently and returns their outputs keyed by name. It uses
// errgroup.Group purely for goroutine bookkeeping: the worker funcs passed
// to g.Go never return a non-nil error, so the group's context is never
// canceled on a resolver failure. A resolver's failure must only fail the
// items that declared it, while peers may still feed handlers that never
// depended on it; errgroup's usual cancel-on-first-error behavior would
// take down siblings that have nothing to do with the failing one. ctx
// carries the tick deadline; resolvers are expected to honor ctx
// cancellation cooperatively.
func RunBatch(ctx context.Context, resolvers []Resolver) OutputMap {
	out := make(OutputMap, len(resolvers))
	if len(resolvers) == 0 {
		return out
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, r := range resolvers {
		r := r
		g.Go(func() error {
			value, err := safeResolve(gctx, r)
			mu.Lock()
			out[r.Name()] = Result{Value: value, Err: err}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return out
}

// safeResolve converts a panicking resolver into an error result so one
// buggy resolver cannot take down the Keeper's tick loop: handlers never
// crash the process, and the same posture applies to resolvers, which run
// on the Keeper's behalf even though they execute concurrently.
func safeResolve(ctx context.Context, r Resolver) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{ResolverName: r.Name(), Recovered: p}
		}
	}()
	return r.Resolve(ctx)
}

// Dedup returns resolvers with unique names, keeping the first occurrence.
// Multiple items in the same tick batch commonly declare the same resolver;
// it must run once, not once per item.
func Dedup(resolvers []Resolver) []Resolver {
	seen := make(map[string]struct{}, len(resolvers))
	out := make([]Resolver, 0, len(resolvers))
	for _, r := range resolvers {
		if _, ok := seen[r.Name()]; ok {
			continue
		}
		seen[r.Name()] = struct{}{}
		out = append(out, r)
	}
	return out
}

// PanicError wraps a recovered panic from inside a resolver.
type PanicError struct {
	ResolverName string
	Recovered    any
}

func (e *PanicError) Error() string {
	return "resolver: panic in " + e.ResolverName
}
