// Package keeper implements the LandKeeper runtime: the single
// serialization point for all activity in one Land. It owns the StateTree,
// the pending-item queue, the tick scheduler, and the resolver orchestration
// that precedes handler execution.
//
// A single goroutine drains the pending-item queue per Land, with resolver
// fan-out delegated to pkg/resolver and outbound delivery delegated to
// whatever OutboundRouter the host wires in (pkg/transport, in this repo).
package keeper
