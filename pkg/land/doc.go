// Package land implements the LandManager / LandRouter / LandRealm layer:
// the registry of live Land instances grouped by land type, parallel tick
// fan-out across them, and resolution of an inbound join to the Keeper
// (and its TransportAdapter) that should handle it.
package land
