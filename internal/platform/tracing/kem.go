package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartOperation opens a span for one KEM operation.
func StartOperation(ctx context.Context, tracer trace.Tracer, algorithm, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "kem."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("kem.algorithm", algorithm),
			attribute.String("kem.operation", op),
		),
	)
}

// EndOperation records err on span, if any, and ends it.
func EndOperation(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
