package chatbot

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"AssistChat/internal/backend"
	"AssistChat/internal/conversation"
	"AssistChat/internal/telemetry"
)

// Runner executes conversation jobs off the primary context. It records a
// span and a stats row per job but never touches the conversation.
type Runner struct {
	SessionID string
	Backend   string
	Model     string
	Tracer    trace.Tracer
	Stats     *telemetry.StatsStore // nil disables stats
	Logger    *slog.Logger
}

// Run blocks until the job finishes
func (r *Runner) Run(ctx context.Context, job *conversation.Job) conversation.Result {
	tracer := r.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}

	ctx, span := tracer.Start(ctx, "conversation_turn", trace.WithAttributes(
		attribute.String("session.id", r.SessionID),
	))
	defer span.End()

	res := job.Run(ctx)

	if r.Stats != nil {
		g := telemetry.Generation{
			SessionID:   r.SessionID,
			Backend:     r.Backend,
			Model:       r.Model,
			StartedAt:   res.Started,
			Duration:    res.Duration,
			Outcome:     "ok",
			PromptChars: len(job.Request.Prompt),
			ReplyChars:  len(res.Text),
		}
		if res.Err != nil {
			g.Outcome = "error"
			g.ErrorKind = backend.KindOf(res.Err).String()
		}
		// Stats are best effort; a full disk must not turn into a chat error
		if err := r.Stats.Record(context.WithoutCancel(ctx), g); err != nil && r.Logger != nil {
			r.Logger.Warn("failed to record generation", "error", err)
		}
	}

	return res
}
