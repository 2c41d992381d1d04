package deployment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/clock"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/events"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// Defaults for instance addressing.
const (
	DefaultHost     = "127.0.0.1"
	DefaultBasePort = 9000
)

const tracerName = "github.com/chosen8823/ghost-in-the-shell-sub000/internal/deployment"

// ComponentLookup resolves component ids. *provider.Registry satisfies it.
type ComponentLookup interface {
	Get(id string) (provider.Provider, bool)
}

// Manager owns manifests and instances. All methods are safe for concurrent use.
type Manager struct {
	components ComponentLookup

	mu        sync.RWMutex
	manifests map[types.ID]*Manifest
	instances map[types.ID]*Instance
	allocated int

	host      string
	basePort  int
	starter   ComponentStarter
	prober    InstanceProber
	clock     clock.Clock
	logger    *slog.Logger
	tracer    trace.Tracer
	publisher events.Publisher
}

// Option configures a Manager.
type Option func(*Manager)

// WithHost sets the host used in instance endpoints.
func WithHost(host string) Option {
	return func(m *Manager) {
		if host != "" {
			m.host = host
		}
	}
}

// WithBasePort sets the first port handed out.
func WithBasePort(port int) Option {
	return func(m *Manager) {
		if port > 0 {
			m.basePort = port
		}
	}
}

// WithStarter sets the component starter. Default: NopStarter.
func WithStarter(s ComponentStarter) Option {
	return func(m *Manager) {
		if s != nil {
			m.starter = s
		}
	}
}

// WithProber sets the instance prober. Default: StatusProber.
func WithProber(p InstanceProber) Option {
	return func(m *Manager) {
		if p != nil {
			m.prober = p
		}
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTracer sets the tracer used for deploy and stop spans.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}

// WithPublisher sets where deployment events are sent.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.publisher = p
		}
	}
}

// NewManager creates a Manager validating components against lookup.
func NewManager(lookup ComponentLookup, opts ...Option) *Manager {
	m := &Manager{
		components: lookup,
		manifests:  make(map[types.ID]*Manifest),
		instances:  make(map[types.ID]*Instance),
		host:       DefaultHost,
		basePort:   DefaultBasePort,
		starter:    NopStarter{},
		prober:     StatusProber{},
		clock:      clock.Real(),
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
		publisher:  events.Discard,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateManifest validates and stores a manifest, returning its id.
//
// An empty name, an empty component list or an unknown environment fail with
// types.ErrInvalidInput; a component id missing from the lookup fails with
// types.ErrUnknownComponent.
func (m *Manager) CreateManifest(name, description string, componentIDs []string, env Environment, config map[string]any) (types.ID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", types.InvalidInput("manifest name cannot be empty")
	}
	if len(componentIDs) == 0 {
		return "", types.InvalidInput("manifest %q has no components", name)
	}
	if !env.IsValid() {
		return "", types.InvalidInput("manifest %q has invalid environment %q", name, env)
	}

	seen := make(map[string]bool, len(componentIDs))
	components := make([]string, 0, len(componentIDs))
	for _, id := range componentIDs {
		if id == "" {
			return "", types.InvalidInput("manifest %q has an empty component id", name)
		}
		if seen[id] {
			continue
		}
		if _, ok := m.components.Get(id); !ok {
			return "", types.NewError(types.UNKNOWN_COMPONENT,
				fmt.Sprintf("manifest %q references unregistered component %s", name, id))
		}
		seen[id] = true
		components = append(components, id)
	}

	manifest := Manifest{
		ID:          types.NewID(),
		Name:        name,
		Description: description,
		Components:  components,
		Environment: env,
		Config:      config,
		CreatedAt:   m.clock.Now(),
	}
	manifest = manifest.Clone()

	m.mu.Lock()
	m.manifests[manifest.ID] = &manifest
	m.mu.Unlock()

	m.logger.Info("manifest created",
		"manifest_id", manifest.ID,
		"name", name,
		"environment", env,
		"components", len(components),
	)
	m.publish(context.Background(), events.Event{
		Type: events.EventManifestCreated,
		Payload: events.ManifestPayload{
			ManifestID:  manifest.ID,
			Name:        name,
			Environment: env.String(),
		},
	})

	return manifest.ID, nil
}

// Manifest returns the manifest with id.
func (m *Manager) Manifest(id types.ID) (Manifest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	manifest, ok := m.manifests[id]
	if !ok {
		return Manifest{}, types.NotFound("manifest", id.String())
	}
	return manifest.Clone(), nil
}

// Manifests returns every manifest ordered by creation time, then id.
func (m *Manager) Manifests() []Manifest {
	m.mu.RLock()
	out := make([]Manifest, 0, len(m.manifests))
	for _, manifest := range m.manifests {
		out = append(out, manifest.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Deploy creates an instance of the manifest and starts its components.
//
// The instance gets the next port from the allocator and is stored as
// starting; it moves to running once every component has acknowledged the
// start. A failed start leaves the instance in the error state.
func (m *Manager) Deploy(ctx context.Context, manifestID types.ID) (types.ID, error) {
	ctx, span := m.tracer.Start(ctx, "deployment.Deploy",
		trace.WithAttributes(attribute.String("manifest.id", manifestID.String())))
	defer span.End()

	m.mu.Lock()
	manifest, ok := m.manifests[manifestID]
	if !ok {
		m.mu.Unlock()
		err := types.NotFound("manifest", manifestID.String())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	components := append([]string(nil), manifest.Components...)

	port := m.basePort + m.allocated
	m.allocated++

	inst := &Instance{
		ID:         types.NewID(),
		ManifestID: manifestID,
		Status:     StatusStarting,
		Port:       port,
		Endpoint:   endpoint(m.host, port),
		StartedAt:  m.clock.Now(),
	}
	m.instances[inst.ID] = inst
	snapshot := inst.Clone()
	m.mu.Unlock()

	span.SetAttributes(
		attribute.String("instance.id", snapshot.ID.String()),
		attribute.Int("instance.port", port),
	)

	started := make([]string, 0, len(components))
	for _, c := range components {
		if err := ctx.Err(); err != nil {
			return snapshot.ID, m.failDeploy(span, snapshot.ID, started, fmt.Errorf("deploy cancelled: %w", err))
		}
		if err := m.starter.Start(ctx, snapshot, c); err != nil {
			return snapshot.ID, m.failDeploy(span, snapshot.ID, started, fmt.Errorf("start component %s: %w", c, err))
		}
		started = append(started, c)
	}

	m.mu.Lock()
	inst.Status = StatusRunning
	inst.ActiveComponents = started
	m.mu.Unlock()

	m.logger.Info("instance running",
		"instance_id", snapshot.ID,
		"manifest_id", manifestID,
		"endpoint", snapshot.Endpoint,
		"components", len(started),
	)
	m.publish(ctx, events.Event{Type: events.EventInstanceStarted, InstanceID: snapshot.ID})

	return snapshot.ID, nil
}

func (m *Manager) failDeploy(span trace.Span, id types.ID, started []string, err error) error {
	m.mu.Lock()
	if inst, ok := m.instances[id]; ok {
		inst.Status = StatusError
		inst.ActiveComponents = started
		inst.Error = err.Error()
	}
	m.mu.Unlock()

	m.logger.Error("instance failed to start", "instance_id", id, "error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Stop moves the instance through stopping to stopped, stopping each active
// component. The port stays allocated. Stopping a stopped instance is a no-op.
// Component stop failures are logged and do not prevent the transition.
func (m *Manager) Stop(ctx context.Context, instanceID types.ID) error {
	ctx, span := m.tracer.Start(ctx, "deployment.Stop",
		trace.WithAttributes(attribute.String("instance.id", instanceID.String())))
	defer span.End()

	m.mu.Lock()
	inst, ok := m.instances[instanceID]
	if !ok {
		m.mu.Unlock()
		return types.NotFound("instance", instanceID.String())
	}
	if inst.Status == StatusStopped || inst.Status == StatusStopping {
		m.mu.Unlock()
		return nil
	}
	inst.Status = StatusStopping
	snapshot := inst.Clone()
	m.mu.Unlock()

	for _, c := range snapshot.ActiveComponents {
		if err := m.starter.Stop(ctx, snapshot, c); err != nil {
			m.logger.Warn("component stop failed",
				"instance_id", instanceID,
				"component_id", c,
				"error", err,
			)
		}
	}

	m.mu.Lock()
	inst.Status = StatusStopped
	inst.ActiveComponents = nil
	inst.Healthy = false
	inst.StoppedAt = m.clock.Now()
	m.mu.Unlock()

	m.logger.Info("instance stopped", "instance_id", instanceID, "port", snapshot.Port)
	m.publish(ctx, events.Event{Type: events.EventInstanceStopped, InstanceID: instanceID})
	return nil
}

// Instance returns the instance with id.
func (m *Manager) Instance(id types.ID) (Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.instances[id]
	if !ok {
		return Instance{}, types.NotFound("instance", id.String())
	}
	return inst.Clone(), nil
}

// Instances returns every instance in port order, which is deploy order.
func (m *Manager) Instances() []Instance {
	m.mu.RLock()
	out := make([]Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, inst.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}

// HealthCheck probes the instance, records the result and reports whether it
// is healthy. A failed probe is reported through the result, not the error;
// the error is non-nil only when the instance does not exist.
func (m *Manager) HealthCheck(ctx context.Context, instanceID types.ID) (bool, error) {
	inst, err := m.Instance(instanceID)
	if err != nil {
		return false, err
	}

	probeErr := m.prober.Probe(ctx, inst)
	healthy := probeErr == nil

	m.mu.Lock()
	if stored, ok := m.instances[instanceID]; ok {
		stored.Healthy = healthy
		stored.LastHealthCheck = m.clock.Now()
	}
	m.mu.Unlock()

	if !healthy {
		m.logger.Warn("instance unhealthy",
			"instance_id", instanceID,
			"status", inst.Status,
			"error", probeErr,
		)
		m.publish(ctx, events.Event{
			Type:       events.EventInstanceUnhealthy,
			InstanceID: instanceID,
			Payload: events.InstanceHealthPayload{
				Endpoint: inst.Endpoint,
				Error:    probeErr.Error(),
			},
		})
	}
	return healthy, nil
}

func (m *Manager) publish(ctx context.Context, e events.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = m.clock.Now()
	}
	if err := m.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		m.logger.Debug("event not published", "event_type", e.Type, "error", err)
	}
}
