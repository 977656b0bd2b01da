package provider

import (
	"context"
	"time"

	"github.com/flemzord/almond/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/flemzord/almond/internal/provider"

// Traced wraps a delegate with a span and latency metrics per call.
type Traced struct {
	name    string
	next    Delegate
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// NewTraced wraps next under the given provider name. A nil tracer provider
// uses the global one; nil metrics record nothing.
func NewTraced(name string, next Delegate, metrics *telemetry.Metrics, tp trace.TracerProvider) *Traced {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Traced{
		name:    name,
		next:    next,
		metrics: metrics,
		tracer:  tp.Tracer(tracerName),
	}
}

// GetResponse implements Delegate.
func (t *Traced) GetResponse(ctx context.Context, history []Message, userInput, systemPrompt string) (string, error) {
	ctx, span := t.tracer.Start(ctx, "provider.GetResponse",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider.name", t.name),
			attribute.Int("provider.context_turns", len(history)),
			attribute.Int("provider.input_chars", len(userInput)),
		),
	)
	defer span.End()

	start := time.Now()
	reply, err := t.next.GetResponse(ctx, history, userInput, systemPrompt)
	t.metrics.ObserveDelegate(t.name, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("provider.reply_chars", len(reply)))
	return reply, nil
}
