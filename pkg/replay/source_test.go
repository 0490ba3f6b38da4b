package replay

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/landkeeper/engine/pkg/keeper"
	"github.com/landkeeper/engine/pkg/statetree"
)

// memSink is an in-memory Sink, for tests that don't need real storage.
type memSink struct {
	mu     sync.Mutex
	meta   Metadata
	frames []FrameRecord
	closed bool
}

func (s *memSink) WriteMetadata(meta Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = meta
	return nil
}

func (s *memSink) AppendFrames(frames []FrameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frames...)
	return nil
}

func (s *memSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memSink) document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := make([]FrameRecord, len(s.frames))
	copy(frames, s.frames)
	return Document{Metadata: s.meta, Frames: frames}
}

func registerSourceTestSchema(t *testing.T) {
	t.Helper()
	statetree.RegisterSchema("replaySourceCounter", []statetree.FieldSchema{
		{Name: "count", Policy: statetree.PolicyBroadcast},
	})
}

func newSourceTestKeeper(t *testing.T, landID string) *keeper.Keeper {
	t.Helper()
	registerSourceTestSchema(t)
	root := statetree.NewNode("replaySourceCounter", map[string]statetree.Value{"count": statetree.Int(0)})
	tree := statetree.NewTree(root)
	return keeper.New(keeper.Config{LandID: landID, GracePeriod: time.Hour}, tree, nil, slog.Default())
}

func registerIncrementByResolverHandler(k *keeper.Keeper) {
	k.RegisterHandler(keeper.HandlerRegistration{
		TypeID: "increment",
		Handle: func(w *statetree.Working, payload any, ctx keeper.HandlerContext) error {
			cur, _ := w.Root().Get("count")
			n, _ := cur.AsInt()
			w.SetField("count", statetree.Int(n+1))
			return nil
		},
	})
}

// TestRecordThenVerifyReproducesIdenticalHashes drives a live Keeper
// through a few ticks with a Recorder attached, then replays the resulting
// Document against a fresh Keeper and checks every recomputed hash matches
// (§4.9's "determinism" acceptance criterion).
func TestRecordThenVerifyReproducesIdenticalHashes(t *testing.T) {
	live := newSourceTestKeeper(t, "land-1")
	registerIncrementByResolverHandler(live)

	sink := &memSink{}
	rec := NewRecorder(sink, Metadata{LandID: "land-1"}, 2)
	live.SetRecordingSink(rec)
	live.SetStateHasher(NewHasher())

	reply := make(chan keeper.Response, 1)
	for i := 0; i < 3; i++ {
		if err := live.EnqueueAction("increment", "alice", "sess1", nil, reply); err != nil {
			t.Fatalf("EnqueueAction: %v", err)
		}
		if err := live.RunTick(context.Background()); err != nil {
			t.Fatalf("RunTick: %v", err)
		}
		<-reply
	}
	live.Stop() // flushes the recorder's remaining buffered frame

	doc := sink.document()
	if len(doc.Frames) != 3 {
		t.Fatalf("recorded %d frames, want 3", len(doc.Frames))
	}

	replayKeeper := newSourceTestKeeper(t, "land-1")
	registerIncrementByResolverHandler(replayKeeper)

	v := NewVerifier()
	result, err := v.Verify(context.Background(), replayKeeper, doc)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.OK {
		t.Fatalf("Verify result = %+v, want OK at tick %d", result, result.FirstMismatchTick)
	}
	if result.TicksVerified != 3 {
		t.Fatalf("TicksVerified = %d, want 3", result.TicksVerified)
	}
}

// TestVerifyDetectsDivergence confirms that replaying against a Keeper
// whose handler behaves differently is caught as a mismatch rather than
// silently accepted.
func TestVerifyDetectsDivergence(t *testing.T) {
	live := newSourceTestKeeper(t, "land-1")
	registerIncrementByResolverHandler(live)
	sink := &memSink{}
	live.SetRecordingSink(NewRecorder(sink, Metadata{LandID: "land-1"}, 1))
	live.SetStateHasher(NewHasher())

	reply := make(chan keeper.Response, 1)
	if err := live.EnqueueAction("increment", "alice", "sess1", nil, reply); err != nil {
		t.Fatalf("EnqueueAction: %v", err)
	}
	if err := live.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	<-reply
	live.Stop()

	doc := sink.document()

	diverged := newSourceTestKeeper(t, "land-1")
	diverged.RegisterHandler(keeper.HandlerRegistration{
		TypeID: "increment",
		Handle: func(w *statetree.Working, payload any, ctx keeper.HandlerContext) error {
			cur, _ := w.Root().Get("count")
			n, _ := cur.AsInt()
			w.SetField("count", statetree.Int(n+2)) // diverges from the recorded +1
			return nil
		},
	})

	v := NewVerifier()
	result, err := v.Verify(context.Background(), diverged, doc)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.OK {
		t.Fatalf("expected a verification mismatch")
	}
	if result.FirstMismatchTick != doc.Frames[0].TickID {
		t.Fatalf("FirstMismatchTick = %d, want %d", result.FirstMismatchTick, doc.Frames[0].TickID)
	}
}
