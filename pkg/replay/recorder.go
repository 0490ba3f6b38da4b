package replay

import (
	"sync"

	"github.com/landkeeper/engine/pkg/keeper"
)

// Sink is the storage backend a Recorder flushes buffered frames to: a
// small, backend-agnostic contract implemented by filesink, sqlsink, and
// redissink, each owning its own wire format and connection lifecycle.
type Sink interface {
	// WriteMetadata persists the run's Metadata. A Recorder calls it once,
	// on its first flush, before appending any frames. FileSink, SQLSink
	// and RedisSink all replace metadata already stored at the destination.
	WriteMetadata(meta Metadata) error

	// AppendFrames persists a batch of frames, in tick order, additively.
	AppendFrames(frames []FrameRecord) error

	// Close releases any resources the sink holds.
	Close() error
}

// DefaultFlushEvery is used when Recorder is constructed with flushEvery <= 0.
const DefaultFlushEvery = 60

// Recorder implements keeper.RecordingSink over a Sink, buffering frames in
// memory and flushing every flushEvery ticks (RECORDING_FLUSH_EVERY,
// default 60) rather than performing storage I/O on every tick.
type Recorder struct {
	sink       Sink
	flushEvery int

	mu          sync.Mutex
	buf         []FrameRecord
	metaWritten bool
	meta        Metadata
}

// NewRecorder constructs a Recorder over sink, writing meta once before the
// first buffered flush.
func NewRecorder(sink Sink, meta Metadata, flushEvery int) *Recorder {
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}
	return &Recorder{sink: sink, flushEvery: flushEvery, meta: meta}
}

// RecordFrame implements keeper.RecordingSink.
func (r *Recorder) RecordFrame(frame keeper.RecordingFrame) error {
	fr, err := NewFrameRecord(frame)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.buf = append(r.buf, fr)
	shouldFlush := len(r.buf) >= r.flushEvery
	r.mu.Unlock()

	if shouldFlush {
		return r.Flush()
	}
	return nil
}

// Flush writes any buffered frames to the sink immediately, writing
// Metadata first if this is the sink's first write. Safe to call
// concurrently with RecordFrame.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	pending := r.buf
	r.buf = nil
	needsMeta := !r.metaWritten
	r.mu.Unlock()

	if needsMeta {
		if err := r.sink.WriteMetadata(r.meta); err != nil {
			return err
		}
		r.mu.Lock()
		r.metaWritten = true
		r.mu.Unlock()
	}
	if len(pending) == 0 {
		return nil
	}
	return r.sink.AppendFrames(pending)
}

// Close flushes any remaining buffered frames and closes the underlying
// sink. Call it when the owning Keeper is destroyed, to finalize the
// recording.
func (r *Recorder) Close() error {
	flushErr := r.Flush()
	closeErr := r.sink.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
