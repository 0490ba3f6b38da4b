package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// defaultTracerName is the tracer name used when none is supplied.
const defaultTracerName = "landkeeper"

// Tracer wraps an OpenTelemetry tracer with the span shapes the engine
// needs: one span per tick, one per resolver batch. It uses the global
// tracer provider, configured by the caller's main() before the server
// starts.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer constructs a Tracer, resolving name from the global provider.
// An empty name defaults to "landkeeper".
func NewTracer(name string) *Tracer {
	if name == "" {
		name = defaultTracerName
	}
	return &Tracer{tracer: otel.Tracer(name)}
}

// StartTick opens a span covering one LandKeeper tick.
func (t *Tracer) StartTick(ctx context.Context, landType, landID string, tick uint64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "landkeeper.tick",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("landkeeper.land_type", landType),
			attribute.String("landkeeper.land_id", landID),
			attribute.Int64("landkeeper.tick", int64(tick)),
		),
	)
}

// StartResolverBatch opens a span covering one tick's parallel resolver
// fan-out.
func (t *Tracer) StartResolverBatch(ctx context.Context, landType string, resolverCount int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "landkeeper.resolver_batch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("landkeeper.land_type", landType),
			attribute.Int("landkeeper.resolver_count", resolverCount),
		),
	)
}

// StartReevaluation opens a span covering one Verifier run.
func (t *Tracer) StartReevaluation(ctx context.Context, landType, landID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "landkeeper.reevaluation",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("landkeeper.land_type", landType),
			attribute.String("landkeeper.land_id", landID),
		),
	)
}

// EndWithError records err on span (if non-nil) and sets the span status
// before ending it, meant to run in a deferred span.End() path.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
