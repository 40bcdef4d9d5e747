package backend

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Observed wraps a Generator with a span, a duration histogram and an
// outcome counter per call
type Observed struct {
	next     Generator
	backend  string
	model    string
	tracer   trace.Tracer
	duration metric.Float64Histogram
	requests metric.Int64Counter
}

// Instrument wraps next. Instruments that fail to register are skipped.
func Instrument(next Generator, backend, model string, tracer trace.Tracer, meter metric.Meter) *Observed {
	o := &Observed{next: next, backend: backend, model: model, tracer: tracer}

	if h, err := meter.Float64Histogram(
		"llm.generate.duration",
		metric.WithDescription("Generation request duration in milliseconds"),
		metric.WithUnit("ms"),
	); err == nil {
		o.duration = h
	}
	if c, err := meter.Int64Counter(
		"llm.generate.requests",
		metric.WithDescription("Generation requests by outcome"),
	); err == nil {
		o.requests = c
	}

	return o
}

// Generate calls the wrapped generator
func (o *Observed) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := o.tracer.Start(ctx, o.backend+"_generate", trace.WithAttributes(
		attribute.String("llm.backend", o.backend),
		attribute.String("llm.model", o.model),
		attribute.Int("llm.max_tokens", req.MaxTokens),
		attribute.Int("llm.prompt_chars", len(req.Prompt)),
	))
	defer span.End()

	start := time.Now()
	text, err := o.next.Generate(ctx, req)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	} else {
		span.SetAttributes(attribute.Int("llm.reply_chars", len(text)))
	}

	attrs := metric.WithAttributes(
		attribute.String("llm.backend", o.backend),
		attribute.String("outcome", outcome),
	)
	if o.duration != nil {
		o.duration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
	}
	if o.requests != nil {
		o.requests.Add(ctx, 1, attrs)
	}

	return text, err
}
