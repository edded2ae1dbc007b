package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

/* Recorder owns the OpenTelemetry instruments for the relay core.
 * Instruments resolve through the global providers, so a process that
 * never installs a meter/tracer provider gets no-op recording.
 */

const scopeName = "hookrelay"

// Recorder records pipeline counters, durations and spans.
type Recorder struct {
	tracer trace.Tracer

	received         metric.Int64Counter
	duplicate        metric.Int64Counter
	processed        metric.Int64Counter
	signatureInvalid metric.Int64Counter
	routingError     metric.Int64Counter
	processingFailed metric.Int64Counter
	replayScheduled  metric.Int64Counter
	replayExhausted  metric.Int64Counter
	deadLettered     metric.Int64Counter

	duration metric.Float64Histogram
}

// New creates a Recorder backed by the global otel providers.
func New() (*Recorder, error) {
	meter := otel.Meter(scopeName)

	r := &Recorder{
		tracer: otel.Tracer(scopeName),
	}

	var err error
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&r.received, "webhook.received", "Deliveries accepted into the processing pipeline"},
		{&r.duplicate, "webhook.duplicate", "Deliveries skipped because the delivery id was already processed"},
		{&r.processed, "webhook.processed", "Deliveries persisted and routed successfully"},
		{&r.signatureInvalid, "webhook.signature_invalid", "Deliveries rejected for an invalid HMAC signature"},
		{&r.routingError, "webhook.routing_error", "Handler invocations that returned an error"},
		{&r.processingFailed, "webhook.processing_failed", "Deliveries that failed before routing"},
		{&r.replayScheduled, "replay.retry_scheduled", "Replay attempts re-enqueued for a later retry"},
		{&r.replayExhausted, "replay.max_attempts", "Replay attempts that exhausted the retry budget"},
		{&r.deadLettered, "deadletter.written", "Commands quarantined in the dead-letter store"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit("{deliveries}"),
		)
		if err != nil {
			return nil, fmt.Errorf("creating counter %s: %w", c.name, err)
		}
	}

	r.duration, err = meter.Float64Histogram("webhook.processing.duration",
		metric.WithDescription("End-to-end pipeline duration per event type"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return r, nil
}

/* A nil *Recorder is valid and records nothing, so callers can wire
 * telemetry optionally without guarding every call site. Each method
 * checks the receiver before touching its instruments.
 */
func add(ctx context.Context, c metric.Int64Counter, event string) {
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("event.name", event)))
}

func (r *Recorder) Received(ctx context.Context, event string) {
	if r == nil {
		return
	}
	add(ctx, r.received, event)
}

func (r *Recorder) Duplicate(ctx context.Context, event string) {
	if r == nil {
		return
	}
	add(ctx, r.duplicate, event)
}

func (r *Recorder) Processed(ctx context.Context, event string) {
	if r == nil {
		return
	}
	add(ctx, r.processed, event)
}

func (r *Recorder) SignatureInvalid(ctx context.Context, event string) {
	if r == nil {
		return
	}
	add(ctx, r.signatureInvalid, event)
}

func (r *Recorder) RoutingError(ctx context.Context, event string) {
	if r == nil {
		return
	}
	add(ctx, r.routingError, event)
}

func (r *Recorder) ProcessingFailed(ctx context.Context, event string) {
	if r == nil {
		return
	}
	add(ctx, r.processingFailed, event)
}

func (r *Recorder) ReplayScheduled(ctx context.Context, event string) {
	if r == nil {
		return
	}
	add(ctx, r.replayScheduled, event)
}

func (r *Recorder) ReplayExhausted(ctx context.Context, event string) {
	if r == nil {
		return
	}
	add(ctx, r.replayExhausted, event)
}

func (r *Recorder) DeadLettered(ctx context.Context, event string) {
	if r == nil {
		return
	}
	add(ctx, r.deadLettered, event)
}

// ObserveDuration records the pipeline duration for one event type.
func (r *Recorder) ObserveDuration(ctx context.Context, event string, d time.Duration) {
	if r == nil {
		return
	}
	r.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("event.name", event)))
}

// StartSpan opens a pipeline-step span. The caller must End it.
func (r *Recorder) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if r == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return r.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
