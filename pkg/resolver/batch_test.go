package resolver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestRunBatchCollectsAllResultsDespiteFailure(t *testing.T) {
	var started int32
	ok := Func{NameVal: "ok", Fn: func(ctx context.Context) (any, error) {
		atomic.AddInt32(&started, 1)
		return 42, nil
	}}
	bad := Func{NameVal: "bad", Fn: func(ctx context.Context) (any, error) {
		atomic.AddInt32(&started, 1)
		return nil, errors.New("boom")
	}}

	out := RunBatch(context.Background(), []Resolver{ok, bad})

	if started != 2 {
		t.Fatalf("expected both resolvers to run, started = %d", started)
	}
	okResult, found := out.Get("ok")
	if !found || okResult.Err != nil || okResult.Value != 42 {
		t.Fatalf("ok result = %+v, found = %v", okResult, found)
	}
	if !out.Failed("bad") {
		t.Fatalf("expected bad resolver to be reported as failed")
	}
	if out.Failed("ok") {
		t.Fatalf("ok resolver must not be reported as failed by its sibling's error")
	}
}

func TestRunBatchRecoversPanics(t *testing.T) {
	panicky := Func{NameVal: "panicky", Fn: func(ctx context.Context) (any, error) {
		panic("resolver exploded")
	}}
	fine := Func{NameVal: "fine", Fn: func(ctx context.Context) (any, error) {
		return "value", nil
	}}

	out := RunBatch(context.Background(), []Resolver{panicky, fine})

	if !out.Failed("panicky") {
		t.Fatalf("expected panicking resolver to surface as a failed result")
	}
	var pe *PanicError
	if !errors.As(out["panicky"].Err, &pe) {
		t.Fatalf("expected *PanicError, got %T", out["panicky"].Err)
	}
	if pe.ResolverName != "panicky" {
		t.Fatalf("ResolverName = %q, want panicky", pe.ResolverName)
	}

	fineResult, found := out.Get("fine")
	if !found || fineResult.Err != nil || fineResult.Value != "value" {
		t.Fatalf("fine result = %+v, found = %v", fineResult, found)
	}
}

func TestRunBatchEmptyInput(t *testing.T) {
	out := RunBatch(context.Background(), nil)
	if len(out) != 0 {
		t.Fatalf("expected empty OutputMap, got %+v", out)
	}
}

func TestDedupKeepsFirstOccurrence(t *testing.T) {
	first := Func{NameVal: "dup", Fn: func(ctx context.Context) (any, error) { return "first", nil }}
	second := Func{NameVal: "dup", Fn: func(ctx context.Context) (any, error) { return "second", nil }}
	other := Func{NameVal: "other", Fn: func(ctx context.Context) (any, error) { return "other", nil }}

	deduped := Dedup([]Resolver{first, second, other})

	if len(deduped) != 2 {
		t.Fatalf("expected 2 resolvers after dedup, got %d", len(deduped))
	}
	out := RunBatch(context.Background(), deduped)
	if out["dup"].Value != "first" {
		t.Fatalf("expected first occurrence to win, got %v", out["dup"].Value)
	}
}
