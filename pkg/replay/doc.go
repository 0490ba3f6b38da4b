// Package replay implements the re-evaluation subsystem: a Recorder that
// captures each live tick's RecordingFrame, an ActionSource that replays a
// recorded document back into a Keeper without resolver execution, a
// Verifier comparing recomputed state hashes against the recorded ones, an
// xxhash-based StateHasher, and three Sink implementations (file/sql/redis)
// that the Recorder, the package's keeper.RecordingSink, flushes to.
package replay
