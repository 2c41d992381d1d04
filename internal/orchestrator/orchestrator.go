package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/clock"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/deployment"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/events"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/formation"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/profile"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/reconcile"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/requirement"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

const tracerName = "github.com/chosen8823/ghost-in-the-shell-sub000/internal/orchestrator"

// Orchestrator wires every component together and exposes the external
// operations. All methods are safe for concurrent use.
type Orchestrator struct {
	registry    *provider.Registry
	analyzer    *requirement.Analyzer
	adapter     *profile.Adapter
	store       *formation.Store
	builder     *formation.Builder
	deployments *deployment.Manager
	loop        *reconcile.Loop
	bus         *events.DefaultEventBus
	ownsBus     bool

	clock  clock.Clock
	logger *slog.Logger
	tracer trace.Tracer

	scaling formation.Scaling
}

type settings struct {
	clock            clock.Clock
	logger           *slog.Logger
	tracer           trace.Tracer
	bus              *events.DefaultEventBus
	metrics          events.MetricsRecorder
	scaling          formation.Scaling
	rollout          formation.RolloutConfig
	profiles         []profile.Profile
	classifier       requirement.Classifier
	alwaysCompliance bool
	reconcileOpts    []reconcile.Option
	deploymentOpts   []deployment.Option
}

// Option configures an Orchestrator.
type Option func(*settings)

// WithClock sets the clock shared by every component.
func WithClock(c clock.Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer sets the tracer shared by every component.
func WithTracer(t trace.Tracer) Option {
	return func(s *settings) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithEventBus makes the orchestrator publish on bus instead of a bus of its
// own. The caller keeps ownership: Shutdown does not close it.
func WithEventBus(bus *events.DefaultEventBus) Option {
	return func(s *settings) {
		s.bus = bus
	}
}

// WithMetrics sets the recorder for event bus metrics. It is ignored when
// WithEventBus is used.
func WithMetrics(m events.MetricsRecorder) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithScaling sets the membership policy of new formations. Default: fixed.
func WithScaling(sc formation.Scaling) Option {
	return func(s *settings) {
		if sc != "" {
			s.scaling = sc
		}
	}
}

// WithRolloutConfig sets rollout pacing.
func WithRolloutConfig(cfg formation.RolloutConfig) Option {
	return func(s *settings) {
		s.rollout = cfg
	}
}

// WithProfiles registers personas in addition to the seed set.
func WithProfiles(p ...profile.Profile) Option {
	return func(s *settings) {
		s.profiles = append(s.profiles, p...)
	}
}

// WithClassifier replaces the keyword classifier used by situation analysis.
func WithClassifier(c requirement.Classifier) Option {
	return func(s *settings) {
		s.classifier = c
	}
}

// WithAlwaysRequireCompliance makes every analyzed requirement demand compliance.
func WithAlwaysRequireCompliance(v bool) Option {
	return func(s *settings) {
		s.alwaysCompliance = v
	}
}

// WithReconcileOptions passes options through to the reconciliation loop.
func WithReconcileOptions(opts ...reconcile.Option) Option {
	return func(s *settings) {
		s.reconcileOpts = append(s.reconcileOpts, opts...)
	}
}

// WithDeploymentOptions passes options through to the deployment manager.
func WithDeploymentOptions(opts ...deployment.Option) Option {
	return func(s *settings) {
		s.deploymentOpts = append(s.deploymentOpts, opts...)
	}
}

// New creates an Orchestrator with an empty registry, the seed personas and a
// stopped reconciliation loop.
func New(opts ...Option) (*Orchestrator, error) {
	s := settings{
		clock:   clock.Real(),
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
		scaling: formation.ScalingFixed,
		rollout: formation.DefaultRolloutConfig(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	bus, ownsBus := s.bus, false
	if bus == nil {
		busOpts := []events.Option{events.WithLogger(s.logger)}
		if s.metrics != nil {
			busOpts = append(busOpts, events.WithMetrics(s.metrics))
		}
		bus, ownsBus = events.NewEventBus(busOpts...), true
	}

	adapter, err := profile.NewAdapter(s.profiles,
		profile.WithLogger(s.logger),
		profile.WithPublisher(bus),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile adapter: %w", err)
	}

	analyzerOpts := []requirement.AnalyzerOption{
		requirement.WithAnalyzerClock(s.clock),
		requirement.WithAnalyzerLogger(s.logger),
		requirement.WithAlwaysRequireCompliance(s.alwaysCompliance),
	}
	if s.classifier != nil {
		analyzerOpts = append(analyzerOpts, requirement.WithClassifier(s.classifier))
	}

	registry := provider.NewRegistry(provider.WithClock(s.clock), provider.WithLogger(s.logger))
	store := formation.NewStore()

	builder := formation.NewBuilder(registry, store,
		formation.WithClock(s.clock),
		formation.WithLogger(s.logger),
		formation.WithTracer(s.tracer),
		formation.WithPublisher(bus),
		formation.WithRolloutConfig(s.rollout),
	)

	deployments := deployment.NewManager(registry, append([]deployment.Option{
		deployment.WithClock(s.clock),
		deployment.WithLogger(s.logger),
		deployment.WithTracer(s.tracer),
		deployment.WithPublisher(bus),
	}, s.deploymentOpts...)...)

	loop := reconcile.NewLoop(registry, store, deployments, append([]reconcile.Option{
		reconcile.WithClock(s.clock),
		reconcile.WithLogger(s.logger),
		reconcile.WithTracer(s.tracer),
		reconcile.WithPublisher(bus),
	}, s.reconcileOpts...)...)

	return &Orchestrator{
		registry:    registry,
		analyzer:    requirement.NewAnalyzer(analyzerOpts...),
		adapter:     adapter,
		store:       store,
		builder:     builder,
		deployments: deployments,
		loop:        loop,
		bus:         bus,
		ownsBus:     ownsBus,
		clock:       s.clock,
		logger:      s.logger,
		tracer:      s.tracer,
		scaling:     s.scaling,
	}, nil
}

// RegisterProvider adds p to the registry and returns its id. An empty id is
// generated; a duplicate id fails with an error matching types.ErrInvalidInput.
func (o *Orchestrator) RegisterProvider(p provider.Provider) (string, error) {
	id, err := o.registry.Register(p)
	if err != nil {
		return "", err
	}
	o.publish(events.Event{Type: events.EventProviderRegistered, ProviderID: id})
	return id, nil
}

// DeregisterProvider removes a provider. Formations keep the id as a member;
// reconciliation counts it against their health.
func (o *Orchestrator) DeregisterProvider(id string) error {
	if err := o.registry.Deregister(id); err != nil {
		return err
	}
	o.publish(events.Event{Type: events.EventProviderDeregistered, ProviderID: id})
	return nil
}

// LoadCatalog registers every provider listed in the YAML catalog at path and
// returns how many were registered before the first failure.
func (o *Orchestrator) LoadCatalog(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read provider catalog: %w", err)
	}
	catalog, err := provider.ParseCatalog(data)
	if err != nil {
		return 0, types.WrapError(types.INVALID_INPUT, "invalid provider catalog", err)
	}
	for i, p := range catalog.Providers {
		if _, err := o.RegisterProvider(p); err != nil {
			return i, fmt.Errorf("catalog entry %d (%s): %w", i, p.ID, err)
		}
	}
	o.logger.Info("provider catalog loaded", "path", path, "providers", len(catalog.Providers))
	return len(catalog.Providers), nil
}

// Provider returns a registered provider.
func (o *Orchestrator) Provider(id string) (provider.Provider, error) {
	p, ok := o.registry.Get(id)
	if !ok {
		return provider.Provider{}, types.NotFound("provider", id)
	}
	return p, nil
}

// Providers lists registered providers in registration order.
func (o *Orchestrator) Providers() []provider.Provider {
	return o.registry.List(provider.Filter{})
}

// AnalyzeSituation turns a description and optional hints into a requirement
// profile. Recognized hints are urgency, technical_depth, systems, complexity,
// constraints and tags; anything else fails with types.ErrInvalidInput.
func (o *Orchestrator) AnalyzeSituation(description string, hints map[string]any) (requirement.Profile, error) {
	return o.analyzer.AnalyzeMap(description, hints)
}

// BuildFormation adapts the active persona to r, then builds and starts
// rolling out a formation for it. Zero matching providers is not an error:
// the formation is returned empty and healthy.
func (o *Orchestrator) BuildFormation(ctx context.Context, r requirement.Profile) (formation.Formation, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.BuildFormation",
		trace.WithAttributes(attribute.String("requirement.id", r.ID.String())))
	defer span.End()

	persona := o.adapter.AdaptToRequirement(r)
	span.SetAttributes(attribute.String("profile.name", persona.Name))

	f, err := o.builder.Build(ctx, r, formation.BuildOptions{
		ProfileName: persona.Name,
		MinTier:     persona.MinTier,
		Scaling:     o.scaling,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return f, err
}

// Formation returns a formation by id.
func (o *Orchestrator) Formation(id types.ID) (formation.Formation, error) {
	return o.store.Get(id)
}

// Formations lists live formations, oldest first.
func (o *Orchestrator) Formations() []formation.Formation {
	return o.store.List()
}

// WaitFormation blocks until the formation's rollout finishes or ctx is done.
func (o *Orchestrator) WaitFormation(ctx context.Context, id types.ID) error {
	return o.builder.Wait(ctx, id)
}

// DissolveFormation aborts the formation's rollout, releases its members'
// load and forgets it.
func (o *Orchestrator) DissolveFormation(ctx context.Context, id types.ID) error {
	return o.builder.Dissolve(ctx, id)
}

// CreateManifest stores a named component bundle. Every component must be a
// registered provider.
func (o *Orchestrator) CreateManifest(name, description string, components []string, env deployment.Environment, config map[string]any) (types.ID, error) {
	return o.deployments.CreateManifest(name, description, components, env, config)
}

// Manifest returns a stored manifest.
func (o *Orchestrator) Manifest(id types.ID) (deployment.Manifest, error) {
	return o.deployments.Manifest(id)
}

// Deploy starts an instance of a manifest and returns its id.
func (o *Orchestrator) Deploy(ctx context.Context, manifestID types.ID) (types.ID, error) {
	return o.deployments.Deploy(ctx, manifestID)
}

// Stop stops a running instance.
func (o *Orchestrator) Stop(ctx context.Context, instanceID types.ID) error {
	return o.deployments.Stop(ctx, instanceID)
}

// Instance returns a deployment instance.
func (o *Orchestrator) Instance(id types.ID) (deployment.Instance, error) {
	return o.deployments.Instance(id)
}

// Profiles lists the known personas in registration order.
func (o *Orchestrator) Profiles() []profile.Profile {
	return o.adapter.List()
}

// ActivateProfile makes the named persona active.
func (o *Orchestrator) ActivateProfile(name string) error {
	return o.adapter.Activate(name)
}

// Reconcile runs one reconciliation pass immediately.
func (o *Orchestrator) Reconcile(ctx context.Context) reconcile.Report {
	return o.loop.Tick(ctx)
}

// Start launches the reconciliation loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.loop.Start(ctx)
}

// Shutdown stops the reconciliation loop, aborts running rollouts and closes
// the event bus if the orchestrator created it. Formations, manifests and
// instances stay readable.
func (o *Orchestrator) Shutdown() {
	o.loop.Stop()
	o.builder.Shutdown()
	if o.ownsBus {
		_ = o.bus.Close()
	}
	o.logger.Info("orchestrator shut down")
}

// Events subscribes to orchestrator events matching filter. The returned
// function unsubscribes; the channel also closes when ctx is done.
func (o *Orchestrator) Events(ctx context.Context, filter events.Filter, bufferSize int) (<-chan events.Event, func()) {
	return o.bus.Subscribe(ctx, filter, bufferSize)
}

func (o *Orchestrator) publish(e events.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = o.clock.Now()
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := o.bus.Publish(ctx, e); err != nil {
		o.logger.Debug("event not published", "event_type", e.Type, "error", err)
	}
}
