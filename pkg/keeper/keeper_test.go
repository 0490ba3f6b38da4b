package keeper

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/landkeeper/engine/pkg/landerr"
	"github.com/landkeeper/engine/pkg/resolver"
	"github.com/landkeeper/engine/pkg/statetree"
)

func registerCounterNode(t *testing.T) {
	t.Helper()
	statetree.RegisterSchema("keeperTestCounter", []statetree.FieldSchema{
		{Name: "count", Policy: statetree.PolicyBroadcast},
	})
}

func newTestKeeper(t *testing.T) *Keeper {
	registerCounterNode(t)
	root := statetree.NewNode("keeperTestCounter", map[string]statetree.Value{"count": statetree.Int(0)})
	tree := statetree.NewTree(root)
	return New(Config{LandID: "counter:x", GracePeriod: 20 * time.Millisecond}, tree, nil, slog.Default())
}

func incrementHandler(by int64) Handler {
	return func(w *statetree.Working, payload any, ctx HandlerContext) error {
		cur, _ := w.Root().Get("count")
		n, _ := cur.AsInt()
		w.SetField("count", statetree.Int(n+by))
		return nil
	}
}

func countOf(t *testing.T, n *statetree.Node) int64 {
	t.Helper()
	v, ok := n.Get("count")
	if !ok {
		t.Fatalf("count field missing")
	}
	i, ok := v.AsInt()
	if !ok {
		t.Fatalf("count field is not an int: %v", v)
	}
	return i
}

func TestRunTickExecutesHandlersInSequenceOrder(t *testing.T) {
	k := newTestKeeper(t)
	k.RegisterHandler(HandlerRegistration{TypeID: "increment", Handle: incrementHandler(1)})

	for i := 0; i < 3; i++ {
		if err := k.EnqueueAction("increment", "alice", "sess1", nil, nil); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	if err := k.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	snap := k.tree.CurrentSnapshot()
	if c := countOf(t, snap.Root); c != 3 {
		t.Fatalf("count = %d, want 3", c)
	}
}

func TestHandlerErrorRollsBackAndRepliesToRequestor(t *testing.T) {
	k := newTestKeeper(t)
	wantErr := errors.New("boom")
	k.RegisterHandler(HandlerRegistration{
		TypeID: "fail",
		Handle: func(w *statetree.Working, payload any, ctx HandlerContext) error {
			w.SetField("count", statetree.Int(999))
			return wantErr
		},
	})

	reply := make(chan Response, 1)
	if err := k.EnqueueAction("fail", "alice", "sess1", nil, reply); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := k.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	resp := <-reply
	if !errors.Is(resp.Err, wantErr) && resp.Err.Error() != wantErr.Error() {
		t.Fatalf("reply err = %v, want %v", resp.Err, wantErr)
	}

	if c := countOf(t, k.tree.CurrentSnapshot().Root); c != 0 {
		t.Fatalf("count = %d, want rollback to 0", c)
	}
}

func TestHandlerPanicCrashesKeeper(t *testing.T) {
	k := newTestKeeper(t)
	k.RegisterHandler(HandlerRegistration{
		TypeID: "explode",
		Handle: func(w *statetree.Working, payload any, ctx HandlerContext) error {
			panic("handler exploded")
		},
	})

	if err := k.EnqueueAction("explode", "alice", "sess1", nil, nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	err := k.RunTick(context.Background())
	if err == nil {
		t.Fatalf("expected RunTick to surface the crash")
	}
	var pe *landerr.HandlerPanic
	if !errors.As(err, &pe) {
		t.Fatalf("expected *landerr.HandlerPanic, got %T", err)
	}
	if !k.IsFailed() {
		t.Fatalf("expected keeper to be marked failed")
	}
}

func TestResolverFailureOnlyFailsDeclaringItems(t *testing.T) {
	k := newTestKeeper(t)
	k.RegisterHandler(HandlerRegistration{
		TypeID: "needsBadResolver",
		Resolvers: func(payload any) []resolver.Resolver {
			return []resolver.Resolver{resolver.Func{NameVal: "bad", Fn: func(ctx context.Context) (any, error) {
				return nil, errors.New("resolver failed")
			}}}
		},
		Handle: incrementHandler(100),
	})
	k.RegisterHandler(HandlerRegistration{TypeID: "fine", Handle: incrementHandler(1)})

	replyBad := make(chan Response, 1)
	replyFine := make(chan Response, 1)
	if err := k.EnqueueAction("needsBadResolver", "alice", "sess1", nil, replyBad); err != nil {
		t.Fatalf("enqueue bad: %v", err)
	}
	if err := k.EnqueueAction("fine", "bob", "sess2", nil, replyFine); err != nil {
		t.Fatalf("enqueue fine: %v", err)
	}

	if err := k.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	if (<-replyBad).Err == nil {
		t.Fatalf("expected the declaring item to fail")
	}
	if (<-replyFine).Err != nil {
		t.Fatalf("expected the unrelated item to succeed")
	}

	if c := countOf(t, k.tree.CurrentSnapshot().Root); c != 1 {
		t.Fatalf("count = %d, want 1 (only fine's increment applied)", c)
	}
}

func TestGraceTimerFinalizesEmptyLand(t *testing.T) {
	k := newTestKeeper(t)
	finalized := make(chan struct{})
	k.OnFinalize(func() { close(finalized) })

	if err := k.EnqueueLifecycle(LifecycleJoined, "alice", "sess1"); err != nil {
		t.Fatalf("enqueue joined: %v", err)
	}
	if err := k.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if err := k.EnqueueLifecycle(LifecycleLeft, "alice", "sess1"); err != nil {
		t.Fatalf("enqueue left: %v", err)
	}
	if err := k.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	select {
	case <-finalized:
	case <-time.After(2 * time.Second):
		t.Fatalf("keeper did not finalize after grace period")
	}
	if !k.IsStopped() {
		t.Fatalf("expected keeper to be stopped")
	}
}

func TestRejoinBeforeGraceExpiryCancelsFinalization(t *testing.T) {
	k := newTestKeeper(t)
	finalized := make(chan struct{})
	k.OnFinalize(func() { close(finalized) })

	if err := k.EnqueueLifecycle(LifecycleJoined, "alice", "sess1"); err != nil {
		t.Fatalf("enqueue joined: %v", err)
	}
	k.RunTick(context.Background())
	if err := k.EnqueueLifecycle(LifecycleLeft, "alice", "sess1"); err != nil {
		t.Fatalf("enqueue left: %v", err)
	}
	k.RunTick(context.Background())
	if err := k.EnqueueLifecycle(LifecycleJoined, "bob", "sess2"); err != nil {
		t.Fatalf("enqueue rejoin: %v", err)
	}
	k.RunTick(context.Background())

	select {
	case <-finalized:
		t.Fatalf("keeper finalized despite a rejoin before grace expiry")
	case <-time.After(60 * time.Millisecond):
	}
	if k.IsStopped() {
		t.Fatalf("keeper should still be running")
	}
}

func TestEnqueueAfterStopFails(t *testing.T) {
	k := newTestKeeper(t)
	k.Stop()
	if err := k.EnqueueAction("anything", "alice", "sess1", nil, nil); !errors.Is(err, landerr.ErrKeeperStopped) {
		t.Fatalf("expected ErrKeeperStopped, got %v", err)
	}
}
