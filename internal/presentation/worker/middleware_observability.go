package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-vending/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-vending/internal/observability"
	"github.com/Zhima-Mochi/minishop-vending/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const spanPrefix = "EV."

// WithEventContext injects a request-scoped logger for background/worker executions.
// Dynamic fields only: trace_id/span_id (if valid), event_id (generated if empty),
// plus caller-provided low-cardinality attributes (e.g. "worker", "event").
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	tel observability.Observability,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string,
) context.Context {
	if base == nil && tel != nil {
		base = tel.Logger()
	}
	if base == nil {
		base = observability.NopLogger()
	}

	fields := make([]observability.Field, 0, len(attrs)+3)

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}

// Middleware wraps an event handler in a consumer span and an event-scoped
// logger. worker names the consumer in logs and span attributes.
func Middleware(worker string, tel observability.Observability) func(domoutbox.Handler) domoutbox.Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	tracer := tel.Tracer()

	return func(next domoutbox.Handler) domoutbox.Handler {
		return func(ctx context.Context, e domoutbox.Event) error {
			name := e.EventName()
			ctx, span := tracer.Start(ctx, spanPrefix+name,
				attribute.String("messaging.system", "outbox"),
				attribute.String("messaging.operation", "process"),
				attribute.String("worker", worker),
			)
			defer span.End()

			sc := span.SpanContext()
			ctx = WithEventContext(ctx, logctx.From(ctx), tel, sc.TraceID(), sc.SpanID(), map[string]string{
				"worker": worker,
				"event":  name,
			})

			err := next(ctx, e)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				logctx.FromOr(ctx, tel.Logger()).Warn("event_handle_failed", observability.F("error", err))
				return err
			}
			span.SetStatus(codes.Ok, "")
			return nil
		}
	}
}

// Register subscribes every handler on sub behind Middleware.
func Register(sub domoutbox.Subscriber, worker string, tel observability.Observability, handlers map[string]domoutbox.Handler) {
	if sub == nil {
		return
	}
	wrap := Middleware(worker, tel)
	for name, h := range handlers {
		sub.Subscribe(name, wrap(h))
	}
}
