package oteltrace

import (
	"context"

	"github.com/Zhima-Mochi/minishop-vending/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultName = "minishop-vending"

type tracer struct{ t trace.Tracer }

// New returns a tracer from the global provider. Install the SDK provider
// with otel.SetTracerProvider before calling it.
func New(name string) observability.Tracer {
	return FromProvider(otel.GetTracerProvider(), name)
}

// FromProvider returns a tracer backed by tp.
func FromProvider(tp trace.TracerProvider, name string) observability.Tracer {
	if name == "" {
		name = defaultName
	}
	return &tracer{t: tp.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
