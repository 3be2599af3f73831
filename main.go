package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	appvending "github.com/Zhima-Mochi/minishop-vending/internal/application/vending"
	"github.com/Zhima-Mochi/minishop-vending/internal/infrastructure/memory"
	obsinfra "github.com/Zhima-Mochi/minishop-vending/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-vending/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-vending/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-vending/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-vending/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-vending/internal/infrastructure/ratelimit"
	"github.com/Zhima-Mochi/minishop-vending/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-vending/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-vending/internal/presentation/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

func main() {
	serviceName := getenvDefault("SERVICE_NAME", "vending-machine")
	env := getenvDefault("ENV", "dev")
	baseLogger := logging.MustNewLogger(logging.Config{
		Service: serviceName,
		Env:     env,
		Level:   os.Getenv("LOG_LEVEL"),
		File:    os.Getenv("LOG_FILE"),
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	tp, err := oteltrace.NewProvider(context.Background(), oteltrace.ProviderConfig{
		Service:  serviceName,
		Env:      env,
		Endpoint: otlpEndpoint,
		Insecure: getenvDefault("OTEL_EXPORTER_OTLP_INSECURE", "true") == "true",
	})
	if err != nil {
		systemLogger.Fatal("tracer_init_failed", zap.Error(err))
	}
	if otlpEndpoint == "" {
		systemLogger.Info("tracer_export_disabled")
	} else {
		systemLogger.Info("tracer_export_enabled", zap.String("endpoint", otlpEndpoint))
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tel := obsinfra.NewWithRegistry(
		oteltrace.New(serviceName),
		zaplogger.New(baseLogger),
		prometrics.New(prometheus.DefaultRegisterer, "", ""),
	)

	// In-memory event bus feeding the sales worker.
	bus := outbox.NewBus(tel.Logger())
	workerpresentation.Register(bus, "sales_worker", tel, appvending.NewSalesWorker(tel).Handlers())
	bus.Start(context.Background())

	store := memory.NewMachineStore(nil)
	service := appvending.NewService(store, bus, tel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handlerOpts := []httppresentation.Option{
		httppresentation.WithAllowOrigin(getenvDefault("CORS_ALLOW_ORIGIN", "*")),
	}
	rps := getenvFloat(systemLogger, "RATE_LIMIT_RPS", 20)
	if rps > 0 {
		limiter := ratelimit.NewStore(rps, getenvInt(systemLogger, "RATE_LIMIT_BURST", 40))
		limiter.StartJanitor(ctx)
		handlerOpts = append(handlerOpts, httppresentation.WithLimiter(limiter))
	}
	handler := httppresentation.NewHandler(service, tel, handlerOpts...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              listenAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), getenvDuration(systemLogger, "SHUTDOWN_TIMEOUT", 10*time.Second))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}

	bus.Stop(shutdownCtx)
	if err := tp.Shutdown(shutdownCtx); err != nil {
		systemLogger.Warn("tracer_shutdown_error", zap.Error(err))
	}
}

// listenAddr prefers HTTP_ADDR, then a bare PORT, then :3000.
func listenAddr() string {
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		return addr
	}
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":3000"
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(logger *zap.Logger, key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn("config_invalid", zap.String("key", key), zap.String("value", v), zap.Error(err))
		return def
	}
	return f
}

func getenvInt(logger *zap.Logger, key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("config_invalid", zap.String("key", key), zap.String("value", v), zap.Error(err))
		return def
	}
	return n
}

func getenvDuration(logger *zap.Logger, key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn("config_invalid", zap.String("key", key), zap.String("value", v), zap.Error(err))
		return def
	}
	return d
}
