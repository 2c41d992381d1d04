// Package reconcile runs the background loop that keeps formations and
// deployment instances healthy.
//
// Every tick recomputes each formation's metrics and health, rebalances load
// between overloaded and underloaded members, applies adaptive scaling and
// probes every live instance. A failure or panic while handling one formation
// is logged and the tick moves on.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/clock"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/deployment"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/events"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/formation"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// Defaults.
const (
	DefaultInterval         = 10 * time.Second
	DefaultScaleInterval    = 30 * time.Second
	DefaultProbeConcurrency = 8
)

const tracerName = "github.com/chosen8823/ghost-in-the-shell-sub000/internal/reconcile"

// Report summarizes one tick.
type Report struct {
	Formations int
	Rebalanced int
	ScaledUp   int
	ScaledDown int
	Failed     int
	Probed     int
	Unhealthy  []types.ID
}

// TickRecorder receives the duration of every pass.
type TickRecorder interface {
	RecordTick(seconds float64, failed int)
}

// Loop is the supervised reconciliation loop.
type Loop struct {
	registry    *provider.Registry
	store       *formation.Store
	deployments *deployment.Manager

	interval         time.Duration
	scaleInterval    time.Duration
	probeConcurrency int
	clock            clock.Clock
	logger           *slog.Logger
	tracer           trace.Tracer
	publisher        events.Publisher
	recorder         TickRecorder

	limitersMu sync.Mutex
	limiters   map[types.ID]*rate.Limiter

	// tickMu serializes ticks so a manual Tick never overlaps the loop's.
	tickMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithInterval sets the tick interval. Default: 10s.
func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithScaleInterval sets the minimum time between two scaling actions on the
// same formation. Default: 30s.
func WithScaleInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.scaleInterval = d
		}
	}
}

// WithProbeConcurrency bounds the number of instance probes run at once.
func WithProbeConcurrency(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.probeConcurrency = n
		}
	}
}

// WithClock sets the clock driving the ticker and the scaling throttle.
func WithClock(c clock.Clock) Option {
	return func(l *Loop) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithLogger sets the loop logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Loop) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// WithTracer sets the tracer used for tick spans.
func WithTracer(t trace.Tracer) Option {
	return func(l *Loop) {
		if t != nil {
			l.tracer = t
		}
	}
}

// WithPublisher sets where reconciliation events are sent.
func WithPublisher(p events.Publisher) Option {
	return func(l *Loop) {
		if p != nil {
			l.publisher = p
		}
	}
}

// WithTickRecorder reports each pass's duration and failure count.
func WithTickRecorder(r TickRecorder) Option {
	return func(l *Loop) {
		l.recorder = r
	}
}

// NewLoop creates a stopped Loop.
func NewLoop(registry *provider.Registry, store *formation.Store, deployments *deployment.Manager, opts ...Option) *Loop {
	l := &Loop{
		registry:         registry,
		store:            store,
		deployments:      deployments,
		interval:         DefaultInterval,
		scaleInterval:    DefaultScaleInterval,
		probeConcurrency: DefaultProbeConcurrency,
		clock:            clock.Real(),
		logger:           slog.Default(),
		tracer:           otel.Tracer(tracerName),
		publisher:        events.Discard,
		limiters:         make(map[types.ID]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches the loop goroutine. It fails with INVALID_STATE if the loop
// is already running. The loop stops when ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return types.NewError(types.INVALID_STATE, "reconcile loop already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.running = true

	ticker := l.clock.NewTicker(l.interval)
	go l.run(ctx, ticker, l.done)

	l.logger.Info("reconcile loop started", "interval", l.interval)
	return nil
}

// Stop cancels the loop and waits for the goroutine to exit. Stopping a
// stopped loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	cancel, done := l.cancel, l.done
	l.running = false
	l.mu.Unlock()

	cancel()
	<-done
	l.logger.Info("reconcile loop stopped")
}

// Running reports whether the loop goroutine is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loop) run(ctx context.Context, ticker *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick runs one reconciliation pass. It never panics: a panic anywhere in the
// pass is recovered and logged.
func (l *Loop) Tick(ctx context.Context) (report Report) {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	ctx, span := l.tracer.Start(ctx, "reconcile.Tick")
	defer span.End()

	if l.recorder != nil {
		started := l.clock.Now()
		defer func() {
			l.recorder.RecordTick(l.clock.Now().Sub(started).Seconds(), report.Failed)
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			report.Failed++
			l.logger.Error("reconcile tick panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	ids := l.store.IDs()
	report.Formations = len(ids)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		res, err := l.reconcileFormation(ctx, id)
		if err != nil {
			report.Failed++
			l.logger.Warn("formation reconcile failed", "formation_id", id, "error", err)
			continue
		}
		if res.rebalanced {
			report.Rebalanced++
		}
		switch res.scaled {
		case events.EventFormationScaledUp:
			report.ScaledUp++
		case events.EventFormationScaledDown:
			report.ScaledDown++
		}
	}
	l.forgetDissolved(ids)

	report.Probed, report.Unhealthy = l.probeInstances(ctx)

	span.SetAttributes(
		attribute.Int("reconcile.formations", report.Formations),
		attribute.Int("reconcile.rebalanced", report.Rebalanced),
		attribute.Int("reconcile.failed", report.Failed),
		attribute.Int("reconcile.unhealthy_instances", len(report.Unhealthy)),
	)
	l.logger.Debug("reconcile tick complete",
		"formations", report.Formations,
		"rebalanced", report.Rebalanced,
		"scaled_up", report.ScaledUp,
		"scaled_down", report.ScaledDown,
		"failed", report.Failed,
		"probed", report.Probed,
		"unhealthy", len(report.Unhealthy),
	)
	return report
}

type formationResult struct {
	rebalanced bool
	scaled     events.EventType
}

func (l *Loop) reconcileFormation(ctx context.Context, id types.ID) (res formationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	f, err := l.store.Get(id)
	if err != nil {
		return res, err
	}

	members := formation.Snapshots(l.registry, f.Members)
	metrics := formation.ComputeMetrics(members, f.Requirement, f.Adjacency)

	// Load moves whenever an overloaded member has an underloaded peer,
	// whatever the formation's health.
	if transfers := PlanTransfers(members); len(transfers) > 0 {
		if err := l.rebalance(ctx, id, transfers); err != nil {
			return res, err
		}
		res.rebalanced = true
		members = formation.Snapshots(l.registry, f.Members)
		metrics = formation.ComputeMetrics(members, f.Requirement, f.Adjacency)
	}

	if f.Scaling == formation.ScalingAdaptive {
		scaled, err := l.scale(ctx, f, members, metrics.AverageLoad)
		if err != nil {
			return res, err
		}
		res.scaled = scaled
	}

	return res, l.refresh(ctx, id, f.Health)
}

func (l *Loop) rebalance(ctx context.Context, id types.ID, transfers []events.Transfer) error {
	for _, t := range transfers {
		if _, err := l.registry.UpdateLoad(t.From, -t.Amount); err != nil {
			return fmt.Errorf("rebalance from %s: %w", t.From, err)
		}
		if _, err := l.registry.UpdateLoad(t.To, t.Amount); err != nil {
			return fmt.Errorf("rebalance to %s: %w", t.To, err)
		}
	}

	l.logger.Info("formation rebalanced", "formation_id", id, "transfers", len(transfers))
	l.publish(ctx, events.Event{
		Type:        events.EventFormationRebalanced,
		FormationID: id,
		Payload:     events.RebalancedPayload{Transfers: transfers},
	})
	return nil
}

// scale adds or removes one member of an adaptive formation. It returns the
// event type of the action taken, or "" when nothing changed.
func (l *Loop) scale(ctx context.Context, f formation.Formation, members []provider.Provider, avg float64) (events.EventType, error) {
	var (
		kind   events.EventType
		target provider.Provider
	)

	switch {
	case avg > scaleUpLoad && f.Density != formation.DensitySaturated:
		p, ok := l.scaleUpCandidate(f)
		if !ok {
			return "", nil
		}
		kind, target = events.EventFormationScaledUp, p

	case avg < scaleDownLoad && f.Density != formation.DensitySparse && len(members) > 1:
		kind, target = events.EventFormationScaledDown, lowestLoad(members)

	default:
		return "", nil
	}

	if !l.limiter(f.ID).AllowN(l.clock.Now(), 1) {
		l.logger.Debug("scaling throttled", "formation_id", f.ID, "action", kind)
		return "", nil
	}

	var after formation.Formation
	err := l.store.Update(f.ID, func(cur *formation.Formation) {
		if kind == events.EventFormationScaledUp {
			addMember(cur, target, formation.Snapshots(l.registry, cur.Members))
			cur.Density = cur.Density.Up()
		} else {
			removeMember(cur, target.ID)
			cur.Density = cur.Density.Down()
		}
		after = cur.Clone()
	})
	if err != nil {
		return "", err
	}

	l.logger.Info("formation scaled",
		"formation_id", f.ID,
		"action", kind,
		"provider_id", target.ID,
		"average_load", avg,
		"density", after.Density,
		"members", len(after.Members),
	)
	l.publish(ctx, events.Event{
		Type:        kind,
		FormationID: f.ID,
		ProviderID:  target.ID,
		Payload: events.ScaledPayload{
			ProviderID:  target.ID,
			AverageLoad: avg,
			Density:     after.Density.String(),
			Members:     len(after.Members),
		},
	})
	return kind, nil
}

// scaleUpCandidate returns the first registered non-member with load below
// the candidate threshold.
func (l *Loop) scaleUpCandidate(f formation.Formation) (provider.Provider, bool) {
	exclude := make(map[string]bool, len(f.Members))
	for _, m := range f.Members {
		exclude[m] = true
	}
	for _, p := range l.registry.List(provider.Filter{Exclude: exclude}) {
		if p.Load < scaleCandidateLoad {
			return p, true
		}
	}
	return provider.Provider{}, false
}

func lowestLoad(members []provider.Provider) provider.Provider {
	sorted := append([]provider.Provider(nil), members...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Load != sorted[j].Load {
			return sorted[i].Load < sorted[j].Load
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0]
}

func addMember(f *formation.Formation, p provider.Provider, peers []provider.Provider) {
	n := len(f.Members)
	f.Members = append(f.Members, p.ID)
	if f.Positions == nil {
		f.Positions = make(map[string]provider.Position)
	}
	f.Positions[p.ID] = formation.Place(p, f.Requirement, n, n+1)
	if f.Adjacency == nil {
		f.Adjacency = formation.Adjacency{}
	}
	formation.Connect(f.Adjacency, p, peers)
}

func removeMember(f *formation.Formation, id string) {
	f.Members = remove(f.Members, id)
	f.Active = remove(f.Active, id)
	delete(f.Positions, id)
	formation.Disconnect(f.Adjacency, id)
}

func remove(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// refresh recomputes and stores metrics and health, publishing a
// health-changed event when the state moves.
func (l *Loop) refresh(ctx context.Context, id types.ID, previous types.HealthState) error {
	var current types.HealthState
	var score float64

	err := l.store.Update(id, func(f *formation.Formation) {
		members := formation.Snapshots(l.registry, f.Members)
		f.Metrics = formation.ComputeMetrics(members, f.Requirement, f.Adjacency)
		score = HealthScore(len(f.Members), members, f.Metrics)
		// A failed rollout keeps the formation critical until it is dissolved.
		if f.Rollout != formation.RolloutFailed {
			f.Health = types.HealthFromScore(score)
			f.HealthScore = score
		}
		current = f.Health
	})
	if err != nil {
		return err
	}

	if current != previous {
		l.logger.Info("formation health changed",
			"formation_id", id,
			"previous", previous,
			"current", current,
			"score", score,
		)
		l.publish(ctx, events.Event{
			Type:        events.EventFormationHealthChanged,
			FormationID: id,
			Payload: events.HealthChangedPayload{
				Previous: previous,
				Current:  current,
				Score:    score,
			},
		})
	}
	return nil
}

func (l *Loop) limiter(id types.ID) *rate.Limiter {
	l.limitersMu.Lock()
	defer l.limitersMu.Unlock()

	lim, ok := l.limiters[id]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.scaleInterval), 1)
		l.limiters[id] = lim
	}
	return lim
}

// forgetDissolved drops throttles of formations that no longer exist.
func (l *Loop) forgetDissolved(live []types.ID) {
	keep := make(map[types.ID]bool, len(live))
	for _, id := range live {
		keep[id] = true
	}

	l.limitersMu.Lock()
	defer l.limitersMu.Unlock()
	for id := range l.limiters {
		if !keep[id] {
			delete(l.limiters, id)
		}
	}
}

// probeInstances health-checks every instance that is not stopped, in
// parallel. Unhealthy instances are flagged by the deployment manager; they
// are not restarted.
func (l *Loop) probeInstances(ctx context.Context) (int, []types.ID) {
	if l.deployments == nil {
		return 0, nil
	}

	var live []deployment.Instance
	for _, inst := range l.deployments.Instances() {
		if inst.Status != deployment.StatusStopped {
			live = append(live, inst)
		}
	}

	var (
		mu        sync.Mutex
		unhealthy []types.ID
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.probeConcurrency)

	for _, inst := range live {
		inst := inst
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					l.logger.Error("instance probe panicked", "instance_id", inst.ID, "panic", r)
				}
			}()

			healthy, err := l.deployments.HealthCheck(gctx, inst.ID)
			if err != nil {
				l.logger.Warn("instance probe failed", "instance_id", inst.ID, "error", err)
				return nil
			}
			if !healthy {
				mu.Lock()
				unhealthy = append(unhealthy, inst.ID)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(unhealthy, func(i, j int) bool { return unhealthy[i] < unhealthy[j] })
	return len(live), unhealthy
}

func (l *Loop) publish(ctx context.Context, e events.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = l.clock.Now()
	}
	if err := l.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		l.logger.Debug("event not published", "event_type", e.Type, "error", err)
	}
}
