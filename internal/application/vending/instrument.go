package vending

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-vending/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-vending/internal/observability"
	"github.com/Zhima-Mochi/minishop-vending/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	vendingService = "vending-service"
	spanPrefix     = "UC."
	publishPeer    = "outbox"
	publishTimeout = 300 * time.Millisecond

	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// instruments is the shared telemetry kit of every vending use case.
type instruments struct {
	publisher    domoutbox.Publisher
	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func newInstruments(publisher domoutbox.Publisher, tel observability.Observability) instruments {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return instruments{
		publisher:    publisher,
		log:          tel.Logger().With(observability.F("service", vendingService)),
		tracer:       tel.Tracer(),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// execution tracks one use case run from begin to finish.
type execution struct {
	ins     *instruments
	ctx     context.Context
	useCase string
	span    trace.Span
	logger  observability.Logger
	start   time.Time
	outcome string
	status  string
	fields  []observability.Field
}

func (ins *instruments) begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *execution) {
	logger := logctx.FromOr(ctx, ins.log).With(observability.F("use_case", useCase))

	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := ins.tracer.Start(ctx, spanPrefix+spanName, attrs...)

	return ctx, &execution{
		ins:     ins,
		ctx:     ctx,
		useCase: useCase,
		span:    span,
		logger:  logger,
		start:   time.Now(),
		outcome: outcomeSuccess,
		status:  "OK",
	}
}

func (x *execution) with(fields ...observability.Field) {
	x.fields = append(x.fields, fields...)
}

func (x *execution) reject(status string) {
	x.outcome, x.status = outcomeRejected, status
}

func (x *execution) fail(status string) {
	x.outcome, x.status = outcomeError, status
}

// finish closes the span, records metrics and writes the use_case_done line.
func (x *execution) finish(err error) {
	if x.span != nil {
		x.span.SetAttributes(attribute.String("outcome", x.outcome))
		if err != nil {
			x.span.RecordError(err)
			x.span.SetStatus(codes.Error, x.status)
		} else {
			x.span.SetStatus(codes.Ok, x.status)
		}
		x.span.End()
	}

	latency := time.Since(x.start).Seconds()
	x.ins.reqCounter.Add(1,
		observability.L("use_case", x.useCase),
		observability.L("outcome", x.outcome),
	)
	x.ins.durHistogram.Observe(latency,
		observability.L("use_case", x.useCase),
	)

	fields := append([]observability.Field{
		observability.F("outcome", x.outcome),
		observability.F("status", x.status),
		observability.F("latency_seconds", latency),
	}, x.fields...)
	if sc := trace.SpanContextFromContext(x.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}

	x.logger.Info("use_case_done", fields...)
}

// publish hands event to the bus. A failure is recorded on the execution but
// never changes the operation's result: the machine state is already final.
func (x *execution) publish(event domoutbox.Event) {
	if x.ins.publisher == nil || event == nil {
		return
	}
	endpoint := event.EventName()

	pubCtx, cancel := context.WithTimeout(x.ctx, publishTimeout)
	start := time.Now()
	err := x.ins.publisher.Publish(pubCtx, event)
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}
	cancel()

	x.ins.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	x.ins.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpoint),
	)

	if err != nil {
		x.with(observability.F("event_error", err.Error()))
		x.logger.Warn("event_publish_failed",
			observability.F("event", endpoint),
			observability.F("error", err),
		)
		return
	}
	if x.span != nil {
		x.span.AddEvent(endpoint)
	}
}
