package observability

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/events"
)

// Metric names.
const (
	MetricEventsPublished = "scorch.events.published"
	MetricEventsDelivered = "scorch.events.delivered"
	MetricEventsDropped   = "scorch.events.dropped"
	MetricTickDuration    = "scorch.reconcile.tick.duration"
)

// Metrics owns the meter provider and the Prometheus registry it exports to.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	registry *promclient.Registry
}

// InitMetrics creates a meter provider backed by a fresh Prometheus registry.
// Nothing is served; mount Handler on an HTTP server to expose it.
func InitMetrics() (*Metrics, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	return &Metrics{
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
		registry: registry,
	}, nil
}

// Meter returns a meter scoped to name.
func (m *Metrics) Meter(name string) metric.Meter {
	return m.provider.Meter(name)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// Recorder records orchestrator metrics. It implements
// events.MetricsRecorder. Instruments are created on first use; a failure to
// create one disables that metric rather than failing the caller.
type Recorder struct {
	meter metric.Meter

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

var _ events.MetricsRecorder = (*Recorder)(nil)

// NewRecorder creates a Recorder on meter.
func NewRecorder(meter metric.Meter) *Recorder {
	return &Recorder{
		meter:      meter,
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

// RecordEventPublished counts a published event and its deliveries.
func (r *Recorder) RecordEventPublished(eventType string, delivered int) {
	attrs := metric.WithAttributes(attribute.String("event_type", eventType))
	if c := r.counter(MetricEventsPublished); c != nil {
		c.Add(context.Background(), 1, attrs)
	}
	if c := r.counter(MetricEventsDelivered); c != nil && delivered > 0 {
		c.Add(context.Background(), int64(delivered), attrs)
	}
}

// RecordEventDropped counts an event a slow subscriber did not receive.
func (r *Recorder) RecordEventDropped(eventType, subscriberID string) {
	if c := r.counter(MetricEventsDropped); c != nil {
		c.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("event_type", eventType),
			attribute.String("subscriber_id", subscriberID),
		))
	}
}

// RecordTick records the duration of a reconciliation pass in seconds.
func (r *Recorder) RecordTick(seconds float64, failed int) {
	if h := r.histogram(MetricTickDuration); h != nil {
		h.Record(context.Background(), seconds, metric.WithAttributes(attribute.Bool("failed", failed > 0)))
	}
}

// RegisterGauge exposes fn as an observable gauge read at every collection.
func (r *Recorder) RegisterGauge(name, description string, fn func() float64) error {
	_, err := r.meter.Float64ObservableGauge(name,
		metric.WithDescription(description),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			o.Observe(fn())
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to register gauge %s: %w", name, err)
	}
	return nil
}

func (r *Recorder) counter(name string) metric.Int64Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.counters[name]; ok {
		return c
	}
	c, err := r.meter.Int64Counter(name)
	if err != nil {
		return nil
	}
	r.counters[name] = c
	return c
}

func (r *Recorder) histogram(name string) metric.Float64Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.histograms[name]; ok {
		return h
	}
	h, err := r.meter.Float64Histogram(name, metric.WithUnit("s"))
	if err != nil {
		return nil
	}
	r.histograms[name] = h
	return h
}
