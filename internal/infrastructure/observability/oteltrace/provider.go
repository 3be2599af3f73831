package oteltrace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// ProviderConfig describes the SDK tracer provider built by NewProvider.
type ProviderConfig struct {
	Service string
	Env     string
	// Endpoint is an OTLP/gRPC collector address (host:port). Empty keeps
	// spans in-process for log correlation only.
	Endpoint string
	Insecure bool
}

// NewProvider builds a tracer provider that batches spans to the configured
// OTLP collector. The caller owns Shutdown.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*sdktrace.TracerProvider, error) {
	rsc := sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.Service),
		semconv.DeploymentEnvironmentName(cfg.Env),
	)
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(rsc)}

	if cfg.Endpoint != "" {
		exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("oteltrace: otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	return sdktrace.NewTracerProvider(opts...), nil
}
