package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestNewTracerDefaultsName(t *testing.T) {
	tr := NewTracer("")
	if tr.tracer == nil {
		t.Fatal("expected a non-nil tracer")
	}
}

func TestStartTickReturnsNonNilSpan(t *testing.T) {
	tr := NewTracer("landkeeper-test")
	ctx, span := tr.StartTick(context.Background(), "room", "land-1", 42)
	defer span.End()

	if span == nil {
		t.Fatal("expected a non-nil span")
	}
	if ctx == nil {
		t.Fatal("expected a non-nil context")
	}
}

func TestStartResolverBatchAndReevaluation(t *testing.T) {
	tr := NewTracer("landkeeper-test")

	_, span := tr.StartResolverBatch(context.Background(), "room", 3)
	span.End()

	_, span = tr.StartReevaluation(context.Background(), "room", "land-1")
	span.End()
}

func TestEndWithErrorRecordsFailure(t *testing.T) {
	tr := NewTracer("landkeeper-test")
	_, span := tr.StartTick(context.Background(), "room", "land-1", 1)

	EndWithError(span, errors.New("boom"))
}

func TestEndWithErrorOKPath(t *testing.T) {
	tr := NewTracer("landkeeper-test")
	_, span := tr.StartTick(context.Background(), "room", "land-1", 1)

	EndWithError(span, nil)
}
