// Package resolver implements the per-tick resolver executor: a named,
// asynchronous computation that may perform I/O, whose output becomes
// available to every handler in the same tick that declared it.
//
// Resolvers within one tick's batch run concurrently; one resolver's
// failure does not cancel its peers (they may feed handlers unrelated to
// the failing one) but fails every item that declared it. This is the one
// place in the engine with a genuine suspension point outside of frame I/O,
// so it is the injection point for anything host-dependent: clocks, RNGs,
// external fetches.
package resolver
