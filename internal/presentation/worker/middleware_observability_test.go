package workerpresentation

import (
	"context"
	"errors"
	"testing"

	domoutbox "github.com/Zhima-Mochi/minishop-vending/internal/domain/outbox"
	obsinfra "github.com/Zhima-Mochi/minishop-vending/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-vending/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-vending/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-vending/internal/observability/logctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type sale struct{}

func (sale) EventName() string { return "vending.drink_purchased" }

type recordingSubscriber struct {
	handlers map[string]domoutbox.Handler
}

func (s *recordingSubscriber) Subscribe(name string, h domoutbox.Handler) {
	if s.handlers == nil {
		s.handlers = map[string]domoutbox.Handler{}
	}
	s.handlers[name] = h
}

func TestWithEventContextFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zaplogger.New(zap.New(core))

	traceID := trace.TraceID{1}
	spanID := trace.SpanID{2}
	ctx := WithEventContext(context.Background(), base, nil, traceID, spanID, map[string]string{
		"event_id": "evt-1",
		"event":    "vending.drink_purchased",
		"empty":    "",
	})
	logctx.From(ctx).Info("handled")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "evt-1", fields["event_id"])
	assert.Equal(t, traceID.String(), fields["trace_id"])
	assert.Equal(t, spanID.String(), fields["span_id"])
	assert.Equal(t, "vending.drink_purchased", fields["event"])
	assert.NotContains(t, fields, "empty")
}

func TestWithEventContextGeneratesEventID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := WithEventContext(context.Background(), zaplogger.New(zap.New(core)), nil, trace.TraceID{}, trace.SpanID{}, nil)
	logctx.From(ctx).Info("handled")

	fields := logs.All()[0].ContextMap()
	assert.NotEmpty(t, fields["event_id"])
	assert.NotContains(t, fields, "trace_id")
}

func TestRegisterWrapsHandlersInSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	core, logs := observer.New(zap.DebugLevel)
	tel := obsinfra.New(oteltrace.FromProvider(tp, "test"), zaplogger.New(zap.New(core)), nil, nil)

	var sawLogger bool
	sub := &recordingSubscriber{}
	Register(sub, "sales_worker", tel, map[string]domoutbox.Handler{
		"vending.drink_purchased": func(ctx context.Context, _ domoutbox.Event) error {
			sawLogger = logctx.From(ctx) != nil
			return nil
		},
		"vending.refill_rejected": func(context.Context, domoutbox.Event) error {
			return errors.New("boom")
		},
	})
	require.Len(t, sub.handlers, 2)

	require.NoError(t, sub.handlers["vending.drink_purchased"](context.Background(), sale{}))
	assert.True(t, sawLogger)

	err := sub.handlers["vending.refill_rejected"](context.Background(), sale{})
	assert.EqualError(t, err, "boom")

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "EV.vending.drink_purchased", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	failed := logs.FilterMessage("event_handle_failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "sales_worker", failed[0].ContextMap()["worker"])
}

func TestRegisterNilSubscriber(t *testing.T) {
	assert.NotPanics(t, func() { Register(nil, "w", nil, nil) })
}
