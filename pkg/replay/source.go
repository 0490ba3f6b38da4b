package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/landkeeper/engine/pkg/keeper"
)

// ActionSource reads a recorded Document and drives a replay Keeper through
// it tick by tick, in recorded order, without resolver execution: the
// replay Keeper runs with no external I/O of its own.
type ActionSource struct {
	doc Document
	pos int
}

// LoadDocument decodes a Document from r (typically an open FileSink's
// underlying file, or a byte slice read from a SQL/Redis sink).
func LoadDocument(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// NewActionSource constructs a source over an already-loaded Document.
func NewActionSource(doc Document) *ActionSource {
	return &ActionSource{doc: doc}
}

// Metadata returns the recording's metadata.
func (a *ActionSource) Metadata() Metadata { return a.doc.Metadata }

// Len returns the number of recorded frames remaining.
func (a *ActionSource) Len() int { return len(a.doc.Frames) - a.pos }

// Next feeds the next recorded frame's items into k (via EnqueueReplayed)
// and substitutes its recorded resolver outputs (via SetReplayOutputs),
// then drives exactly one RunTick. It returns the frame that was replayed,
// or io.EOF once every frame has been consumed.
func (a *ActionSource) Next(ctx context.Context, k *keeper.Keeper) (FrameRecord, error) {
	if a.pos >= len(a.doc.Frames) {
		return FrameRecord{}, io.EOF
	}
	frame := a.doc.Frames[a.pos]
	a.pos++

	items, err := frame.Items()
	if err != nil {
		return FrameRecord{}, fmt.Errorf("replay: tick %d: decode items: %w", frame.TickID, err)
	}
	for _, it := range items {
		if err := k.EnqueueReplayed(it); err != nil {
			return FrameRecord{}, fmt.Errorf("replay: tick %d: enqueue: %w", frame.TickID, err)
		}
	}

	outputs, err := frame.Outputs()
	if err != nil {
		return FrameRecord{}, fmt.Errorf("replay: tick %d: decode resolver outputs: %w", frame.TickID, err)
	}
	k.SetReplayOutputs(outputs)

	if err := k.RunTick(ctx); err != nil {
		return FrameRecord{}, fmt.Errorf("replay: tick %d: run: %w", frame.TickID, err)
	}
	return frame, nil
}

// Result is a re-evaluation outcome. A discrepancy at any tick is a
// verification failure.
type Result struct {
	OK                bool
	FirstMismatchTick uint64
	TicksVerified     int
}

// Verifier replays a Document against a fresh Keeper and compares each
// tick's recomputed state hash to the recorded one.
type Verifier struct {
	hasher *Hasher
}

// NewVerifier constructs a Verifier using the default xxhash-based Hasher.
func NewVerifier() *Verifier {
	return &Verifier{hasher: NewHasher()}
}

// Verify drives k through every frame in doc via an ActionSource, stopping
// at the first tick whose recomputed hash disagrees with the recorded one.
// k must not have a RecordingSink or StateHasher installed that would
// otherwise fight over the tree; Verify reads k.CurrentSnapshot() directly.
func (v *Verifier) Verify(ctx context.Context, k *keeper.Keeper, doc Document) (Result, error) {
	src := NewActionSource(doc)
	verified := 0
	for {
		frame, err := src.Next(ctx, k)
		if err == io.EOF {
			return Result{OK: true, TicksVerified: verified}, nil
		}
		if err != nil {
			return Result{}, err
		}

		got := v.hasher.Hash(k.CurrentSnapshot().Root)
		verified++
		if frame.StateHash != "" && got != frame.StateHash {
			return Result{OK: false, FirstMismatchTick: frame.TickID, TicksVerified: verified}, nil
		}
	}
}
