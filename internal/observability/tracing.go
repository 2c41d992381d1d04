package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/config"
	"github.com/chosen8823/ghost-in-the-shell-sub000/pkg/version"
)

// ServiceName identifies scorch in logs, traces and metrics.
const ServiceName = "scorch"

const defaultBatchTimeout = 5 * time.Second

// TracingOption configures InitTracing.
type TracingOption func(*tracingOptions)

type tracingOptions struct {
	exporter     sdktrace.SpanExporter
	sampler      sdktrace.Sampler
	batchTimeout time.Duration
}

// WithExporter replaces the OTLP exporter. Tests pass an in-memory exporter.
func WithExporter(exp sdktrace.SpanExporter) TracingOption {
	return func(o *tracingOptions) {
		o.exporter = exp
	}
}

// WithSampler overrides the ratio sampler derived from the sample rate.
func WithSampler(sampler sdktrace.Sampler) TracingOption {
	return func(o *tracingOptions) {
		o.sampler = sampler
	}
}

// WithBatchTimeout sets the maximum time between batch exports.
func WithBatchTimeout(timeout time.Duration) TracingOption {
	return func(o *tracingOptions) {
		o.batchTimeout = timeout
	}
}

// InitTracing creates a tracer provider and installs it globally. When
// tracing is disabled the provider records nothing and is not installed, so
// otel.Tracer keeps returning no-op tracers.
func InitTracing(ctx context.Context, cfg config.TracingConfig, opts ...TracingOption) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled {
		return sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample())), nil
	}

	options := &tracingOptions{batchTimeout: defaultBatchTimeout}
	for _, opt := range opts {
		opt(options)
	}
	if options.sampler == nil {
		options.sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(version.Version),
		),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	exporter := options.exporter
	if exporter == nil {
		otlpOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			otlpOpts = append(otlpOpts, otlptracegrpc.WithInsecure())
		} else {
			otlpOpts = append(otlpOpts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(nil)))
		}
		exporter, err = otlptracegrpc.New(ctx, otlpOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter for %s: %w", cfg.Endpoint, err)
		}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(options.batchTimeout)),
		sdktrace.WithSampler(options.sampler),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp, nil
}

// ShutdownTracing flushes pending spans and stops the provider.
func ShutdownTracing(ctx context.Context, provider *sdktrace.TracerProvider) error {
	if provider == nil {
		return nil
	}
	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	return nil
}
