package demoland

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/landkeeper/engine/pkg/keeper"
)

func newTestKeeper(t *testing.T) *keeper.Keeper {
	t.Helper()
	RegisterSchema()
	tree := NewTree()
	k := keeper.New(keeper.Config{LandID: "lobby-test", GracePeriod: time.Hour}, tree, nil, slog.Default())
	RegisterHandlers(k)
	return k
}

func TestBumpScoreIncrementsByAmount(t *testing.T) {
	k := newTestKeeper(t)
	if err := k.EnqueueAction(BumpScoreTypeID, "p1", "s1", map[string]any{"amount": float64(3)}, nil); err != nil {
		t.Fatalf("EnqueueAction: %v", err)
	}
	if err := k.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	score, _ := k.CurrentSnapshot().Root.Get("score")
	n, _ := score.AsInt()
	if n != 3 {
		t.Fatalf("score = %d, want 3", n)
	}
}

func TestBumpScoreDefaultsToOne(t *testing.T) {
	k := newTestKeeper(t)
	if err := k.EnqueueAction(BumpScoreTypeID, "p1", "s1", nil, nil); err != nil {
		t.Fatalf("EnqueueAction: %v", err)
	}
	if err := k.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	score, _ := k.CurrentSnapshot().Root.Get("score")
	n, _ := score.AsInt()
	if n != 1 {
		t.Fatalf("score = %d, want 1", n)
	}
}

func TestJoinAndLeaveTrackPlayerCount(t *testing.T) {
	k := newTestKeeper(t)
	if err := k.EnqueueLifecycle(keeper.LifecycleJoined, "p1", "s1"); err != nil {
		t.Fatalf("EnqueueLifecycle join: %v", err)
	}
	if err := k.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	count, _ := k.CurrentSnapshot().Root.Get("playerCount")
	n, _ := count.AsInt()
	if n != 1 {
		t.Fatalf("playerCount after join = %d, want 1", n)
	}

	if err := k.EnqueueLifecycle(keeper.LifecycleLeft, "p1", "s1"); err != nil {
		t.Fatalf("EnqueueLifecycle left: %v", err)
	}
	if err := k.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	count, _ = k.CurrentSnapshot().Root.Get("playerCount")
	n, _ = count.AsInt()
	if n != 0 {
		t.Fatalf("playerCount after leave = %d, want 0", n)
	}
}

func TestSayUpdatesLastMessage(t *testing.T) {
	k := newTestKeeper(t)
	if err := k.EnqueueClientEvent(SayTypeID, "p1", "s1", map[string]any{"text": "hello"}); err != nil {
		t.Fatalf("EnqueueClientEvent: %v", err)
	}
	if err := k.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	msg, _ := k.CurrentSnapshot().Root.Get("lastMessage")
	s, _ := msg.AsString()
	if s != "hello" {
		t.Fatalf("lastMessage = %q, want %q", s, "hello")
	}
}
