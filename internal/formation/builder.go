package formation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/clock"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/events"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/fitness"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/requirement"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// Selection and dissolve constants.
const (
	// MinSelectionScore is the score a provider must exceed to be selected.
	MinSelectionScore = 0.3

	// DissolveDecay is subtracted from each member's load on dissolve.
	DissolveDecay = 0.3
)

const tracerName = "github.com/chosen8823/ghost-in-the-shell-sub000/internal/formation"

// BuildOptions carries per-build settings chosen by the caller.
type BuildOptions struct {
	// ProfileName records the persona consulted for this build.
	ProfileName string

	// MinTier raises the required tier used for scoring when it exceeds the
	// requirement's own. The stored requirement is not changed.
	MinTier int

	// Scaling is the membership policy reconciliation applies. Empty means fixed.
	Scaling Scaling

	// Strategy overrides strategy selection when set.
	Strategy Strategy
}

// Builder builds, rolls out and dissolves formations.
type Builder struct {
	registry  *provider.Registry
	store     *Store
	clock     clock.Clock
	logger    *slog.Logger
	tracer    trace.Tracer
	publisher events.Publisher
	rollout   RolloutConfig

	wg sync.WaitGroup
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithClock sets the clock used for timestamps and rollout pacing.
func WithClock(c clock.Clock) BuilderOption {
	return func(b *Builder) {
		if c != nil {
			b.clock = c
		}
	}
}

// WithLogger sets the builder logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithTracer sets the tracer used for build spans.
func WithTracer(t trace.Tracer) BuilderOption {
	return func(b *Builder) {
		if t != nil {
			b.tracer = t
		}
	}
}

// WithPublisher sets where formation and rollout events are sent.
func WithPublisher(p events.Publisher) BuilderOption {
	return func(b *Builder) {
		if p != nil {
			b.publisher = p
		}
	}
}

// WithRolloutConfig sets the rollout pacing.
func WithRolloutConfig(cfg RolloutConfig) BuilderOption {
	return func(b *Builder) {
		b.rollout = cfg
	}
}

// NewBuilder creates a Builder selecting from registry and storing into store.
func NewBuilder(registry *provider.Registry, store *Store, opts ...BuilderOption) *Builder {
	b := &Builder{
		registry:  registry,
		store:     store,
		clock:     clock.Real(),
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		publisher: events.Discard,
		rollout:   DefaultRolloutConfig(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Store returns the store the builder writes to.
func (b *Builder) Store() *Store {
	return b.store
}

// Build selects, places and connects providers for r and starts the rollout.
//
// The returned formation reflects the state right after planning; the rollout
// continues on its own goroutine. An empty provider pool yields an empty,
// healthy formation. If the rollout cannot be planned the formation is stored
// with critical health and returned together with the error.
func (b *Builder) Build(ctx context.Context, r requirement.Profile, opts BuildOptions) (Formation, error) {
	ctx, span := b.tracer.Start(ctx, "formation.Build")
	defer span.End()

	scoring := r.Clone()
	if opts.MinTier > scoring.RequiredTier {
		scoring.RequiredTier = opts.MinTier
	}

	all := b.registry.List(provider.Filter{})
	density := DensityFor(r)
	members := b.selectMembers(all, scoring, density.Capacity(len(all)))

	strategy := opts.Strategy
	if strategy == "" {
		strategy = SelectStrategy(r)
	}
	scaling := opts.Scaling
	if scaling == "" {
		scaling = ScalingFixed
	}

	adj := BuildAdjacency(members)
	f := Formation{
		ID:          types.NewID(),
		Requirement: r.Clone(),
		Strategy:    strategy,
		Density:     density,
		Scaling:     scaling,
		Rollout:     RolloutRunning,
		Members:     ids(members),
		Active:      []string{},
		Positions:   PlaceAll(members, r),
		Adjacency:   adj,
		Metrics:     ComputeMetrics(members, r, adj),
		Health:      types.HealthStateHealthy,
		HealthScore: 1,
		ProfileName: opts.ProfileName,
		CreatedAt:   b.clock.Now(),
	}

	span.SetAttributes(
		attribute.String("formation.id", f.ID.String()),
		attribute.String("formation.strategy", strategy.String()),
		attribute.String("formation.density", density.String()),
		attribute.Int("formation.members", len(members)),
	)

	plan, planErr := planRollout(strategy, members, b.rollout)
	if planErr != nil {
		f.Health = types.HealthStateCritical
		f.HealthScore = 0
		f.Rollout = RolloutFailed
		f.RolloutErr = planErr.Error()
	} else if plan.size() == 0 {
		f.Rollout = RolloutComplete
	}

	if err := b.store.Add(f); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Formation{}, err
	}

	b.publish(ctx, events.Event{
		Type:        events.EventFormationBuilt,
		FormationID: f.ID,
		Payload: events.RolloutPayload{
			Strategy: strategy.String(),
			Total:    len(members),
		},
	})

	if planErr != nil {
		b.logger.Error("formation rollout planning failed",
			"formation_id", f.ID,
			"strategy", strategy,
			"error", planErr,
		)
		span.RecordError(planErr)
		span.SetStatus(codes.Error, planErr.Error())
		return f.Clone(), fmt.Errorf("plan rollout for formation %s: %w", f.ID, planErr)
	}

	b.logger.Info("formation built",
		"formation_id", f.ID,
		"category", r.Category,
		"strategy", strategy,
		"density", density,
		"members", len(members),
		"candidates", len(all),
	)

	if plan.size() > 0 {
		b.startRollout(ctx, f.ID, plan)
	}
	return f.Clone(), nil
}

// selectMembers scores every provider, orders by score then id and keeps up
// to capacity providers scoring above MinSelectionScore.
func (b *Builder) selectMembers(all []provider.Provider, r requirement.Profile, capacity int) []provider.Provider {
	cands := make([]candidate, 0, len(all))
	for _, p := range all {
		cands = append(cands, candidate{p: p, score: fitness.Score(p, r)})
	}
	sortByScore(cands)

	members := make([]provider.Provider, 0, capacity)
	for _, c := range cands {
		if len(members) == capacity {
			break
		}
		if c.score <= MinSelectionScore {
			break
		}
		members = append(members, c.p)
	}
	return members
}

func ids(members []provider.Provider) []string {
	out := make([]string, len(members))
	for i, p := range members {
		out[i] = p.ID
	}
	return out
}

func (b *Builder) startRollout(ctx context.Context, id types.ID, plan rolloutPlan) {
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	b.store.attachRollout(id, cancel, done)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(done)
		defer cancel()
		b.runRollout(rctx, id, plan)
	}()
}

// runRollout applies plan step by step. Cancellation is observed before every
// step and while waiting between steps.
func (b *Builder) runRollout(ctx context.Context, id types.ID, plan rolloutPlan) {
	activated := 0
	for _, s := range plan.steps {
		if err := b.pace(ctx, s.wait); err != nil {
			b.finishRollout(ctx, id, plan, activated, err)
			return
		}

		for _, a := range s.activations {
			err := b.registry.Update(a.providerID, func(p *provider.Provider) {
				p.Load = a.load
				if a.elevate {
					p.Flags[provider.FlagElevated] = true
				}
			})
			if err != nil {
				b.finishRollout(ctx, id, plan, activated, types.WrapError(types.ROLLOUT_FAILED,
					fmt.Sprintf("activate provider %s", a.providerID), err))
				return
			}
			activated++

			_ = b.store.Update(id, func(f *Formation) {
				f.Active = append(f.Active, a.providerID)
			})
		}
	}
	b.finishRollout(ctx, id, plan, activated, nil)
}

func (b *Builder) pace(ctx context.Context, wait time.Duration) error {
	if err := ctx.Err(); err != nil {
		return types.WrapError(types.ROLLOUT_ABORTED, "rollout cancelled", err)
	}
	if wait <= 0 {
		return nil
	}
	select {
	case <-b.clock.After(wait):
		return nil
	case <-ctx.Done():
		return types.WrapError(types.ROLLOUT_ABORTED, "rollout cancelled", ctx.Err())
	}
}

func (b *Builder) finishRollout(ctx context.Context, id types.ID, plan rolloutPlan, activated int, err error) {
	state := RolloutComplete
	eventType := events.EventRolloutCompleted
	switch {
	case errors.Is(err, types.ErrRolloutAborted):
		state = RolloutAborted
		eventType = events.EventRolloutAborted
	case err != nil:
		state = RolloutFailed
		eventType = events.EventRolloutFailed
	}

	members := b.memberSnapshots(id)
	_ = b.store.Update(id, func(f *Formation) {
		f.Rollout = state
		if err != nil {
			f.RolloutErr = err.Error()
		}
		f.Metrics = ComputeMetrics(members, f.Requirement, f.Adjacency)
		if state == RolloutFailed {
			f.Health = types.HealthStateCritical
			f.HealthScore = 0
		}
	})

	payload := events.RolloutPayload{
		Strategy:  plan.strategy.String(),
		Activated: activated,
		Total:     plan.size(),
	}
	if err != nil {
		payload.Error = err.Error()
	}

	logger := b.logger.With("formation_id", id, "strategy", plan.strategy, "activated", activated, "total", plan.size())
	switch state {
	case RolloutComplete:
		logger.Info("formation rollout complete")
	case RolloutAborted:
		logger.Warn("formation rollout aborted")
	default:
		logger.Error("formation rollout failed", "error", err)
	}

	b.publish(ctx, events.Event{Type: eventType, FormationID: id, Payload: payload})
}

// memberSnapshots returns the current registry state of the formation's
// members, skipping any that have been deregistered.
func (b *Builder) memberSnapshots(id types.ID) []provider.Provider {
	f, err := b.store.Get(id)
	if err != nil {
		return nil
	}
	return Snapshots(b.registry, f.Members)
}

// Snapshots looks up ids in registry, skipping unknown ones.
func Snapshots(registry *provider.Registry, ids []string) []provider.Provider {
	out := make([]provider.Provider, 0, len(ids))
	for _, id := range ids {
		if p, ok := registry.Get(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// Wait blocks until the formation's rollout has finished or ctx is done. It
// returns an error matching types.ErrRolloutAborted for an aborted rollout and
// a ROLLOUT_FAILED error for a failed one.
func (b *Builder) Wait(ctx context.Context, id types.ID) error {
	if _, done, ok := b.store.rolloutHandle(id); ok {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f, err := b.store.Get(id)
	if err != nil {
		return err
	}
	switch f.Rollout {
	case RolloutAborted:
		return types.WrapError(types.ROLLOUT_ABORTED, fmt.Sprintf("formation %s rollout aborted", id), errors.New(f.RolloutErr))
	case RolloutFailed:
		return types.WrapError(types.ROLLOUT_FAILED, fmt.Sprintf("formation %s rollout failed", id), errors.New(f.RolloutErr))
	}
	return nil
}

// Dissolve cancels any running rollout, decays every member's load by
// DissolveDecay (floored at zero), clears membership and removes the formation.
func (b *Builder) Dissolve(ctx context.Context, id types.ID) error {
	ctx, span := b.tracer.Start(ctx, "formation.Dissolve",
		trace.WithAttributes(attribute.String("formation.id", id.String())))
	defer span.End()

	if _, err := b.store.Get(id); err != nil {
		return err
	}

	if cancel, done, ok := b.store.rolloutHandle(id); ok {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var members []string
	if err := b.store.Update(id, func(f *Formation) {
		members = f.Members
		f.Members = nil
		f.Active = nil
		f.Positions = map[string]provider.Position{}
		f.Adjacency = Adjacency{}
	}); err != nil {
		return err
	}

	for _, m := range members {
		if _, err := b.registry.UpdateLoad(m, -DissolveDecay); err != nil {
			b.logger.Warn("member gone during dissolve", "formation_id", id, "provider_id", m, "error", err)
		}
	}

	if _, err := b.store.Remove(id); err != nil {
		return err
	}

	b.logger.Info("formation dissolved", "formation_id", id, "members", len(members))
	b.publish(ctx, events.Event{Type: events.EventFormationDissolved, FormationID: id})
	return nil
}

// Shutdown cancels every running rollout and waits for the goroutines to exit.
func (b *Builder) Shutdown() {
	for _, id := range b.store.IDs() {
		if cancel, _, ok := b.store.rolloutHandle(id); ok {
			cancel()
		}
	}
	b.wg.Wait()
}

func (b *Builder) publish(ctx context.Context, e events.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = b.clock.Now()
	}
	if err := b.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		b.logger.Debug("event not published", "event_type", e.Type, "error", err)
	}
}
