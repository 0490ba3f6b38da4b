// Package transport implements the TransportAdapter: the set of sessions
// bound to one Land, the join handshake state machine, inbound frame
// routing to the LandKeeper, and outbound patch/event delivery. A new
// connection for an already-bound PlayerID evicts the old one.
package transport
