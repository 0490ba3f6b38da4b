// Package protocol implements the wire format connecting clients to a Land:
// an opcode-tagged binary frame envelope, msgpack-encoded message payloads,
// a path-hash table for stable schema paths, and a per-session slot table
// for compressing dynamic mapping keys.
//
// The frame envelope is a 4-byte header (opcode, flags, 2-byte big-endian
// payload length) plus payload. Payload bodies are msgpack-encoded.
package protocol
