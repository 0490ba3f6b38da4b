package keeper

import (
	"log/slog"

	"github.com/landkeeper/engine/pkg/resolver"
	"github.com/landkeeper/engine/pkg/statetree"
)

// HandlerContext is the context a transition handler receives alongside the
// working tree and payload: resolver outputs for this item's declared
// dependencies, the originating identity, a logger scoped to this Land and
// tick, the current tick ID, and an event sink for outbound server events.
type HandlerContext struct {
	Outputs   resolver.OutputMap
	PlayerID  string
	SessionID string
	TickID    uint64
	Logger    *slog.Logger
	Events    *EventSink
}

// Handler is a synchronous transition: it mutates the working tree in
// place and may return an error, which rolls back the mutation and
// surfaces as the item's failure.
type Handler func(w *statetree.Working, payload any, ctx HandlerContext) error

// ResolverFactory produces the resolvers a given item's handler depends on.
// It is called once per item per tick; resolvers sharing a Name() across
// items in the same batch are deduplicated and run once.
type ResolverFactory func(payload any) []resolver.Resolver

// HandlerRegistration binds a TypeID (an action or client event name) to
// its resolver dependencies and transition handler.
type HandlerRegistration struct {
	TypeID    string
	Resolvers ResolverFactory
	Handle    Handler
}

// LifecycleHandler runs for joined/left/initialized items. Lifecycle items
// declare no resolvers; they run directly against the working tree.
type LifecycleHandler func(w *statetree.Working, kind LifecycleKind, playerID string, ctx HandlerContext) error
