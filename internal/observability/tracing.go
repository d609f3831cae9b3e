package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name for pipeline spans.
const TracerName = "pricewatch"

// Tracer wraps the global OpenTelemetry tracer. Without a configured
// provider the spans are no-ops.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new tracer.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(TracerName)}
}

// TickSpan starts a span for one scheduler tick.
//
//nolint:spancheck // span is returned to caller who manages its lifecycle
func (t *Tracer) TickSpan(ctx context.Context, batchSize int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "scheduler.tick",
		trace.WithAttributes(attribute.Int("scheduler.batch_size", batchSize)),
	)
}

// ExecuteSpan starts a span for executing one scrape command.
//
//nolint:spancheck // span is returned to caller who manages its lifecycle
func (t *Tracer) ExecuteSpan(ctx context.Context, commandID string, mappingID int64, url string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "executor.execute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("command.id", commandID),
			attribute.Int64("mapping.id", mappingID),
			attribute.String("url.full", url),
		),
	)
}

// CorrelateSpan starts a span for applying one outcome event.
//
//nolint:spancheck // span is returned to caller who manages its lifecycle
func (t *Tracer) CorrelateSpan(ctx context.Context, commandID string, mappingID int64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "correlator.apply",
		trace.WithAttributes(
			attribute.String("command.id", commandID),
			attribute.Int64("mapping.id", mappingID),
		),
	)
}

// RecordError marks span as failed with err.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
