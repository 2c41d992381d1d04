// Package observability sets up logging, tracing and metrics for scorch.
//
// NewLogger builds the process slog.Logger from LoggingConfig. InitTracing
// installs an OTLP/gRPC tracer provider when tracing is enabled and a
// non-recording one otherwise. InitMetrics creates an OpenTelemetry meter
// provider exported through a Prometheus registry; Recorder turns event bus
// activity into counters and exposes gauges over live orchestrator state.
package observability
