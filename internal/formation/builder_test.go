package formation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/clock"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/events"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/fitness"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/requirement"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var testPacing = RolloutConfig{
	StagedDelay:  time.Second,
	LayerDelay:   2 * time.Second,
	GradualDelay: 3 * time.Second,
}

type fixture struct {
	clock    *clock.FakeClock
	registry *provider.Registry
	store    *Store
	bus      *events.DefaultEventBus
	builder  *Builder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fc := clock.Fake(epoch)
	bus := events.NewEventBus()
	registry := provider.NewRegistry(provider.WithClock(fc))
	store := NewStore()
	builder := NewBuilder(registry, store,
		WithClock(fc),
		WithPublisher(bus),
		WithRolloutConfig(testPacing),
	)
	t.Cleanup(func() {
		builder.Shutdown()
		bus.Close()
	})

	return &fixture{clock: fc, registry: registry, store: store, bus: bus, builder: builder}
}

func (fx *fixture) register(t *testing.T, p provider.Provider) {
	t.Helper()
	if p.Name == "" {
		p.Name = "provider " + p.ID
	}
	if p.Tier == 0 {
		p.Tier = 3
	}
	_, err := fx.registry.Register(p)
	require.NoError(t, err)
}

func (fx *fixture) load(t *testing.T, id string) float64 {
	t.Helper()
	p, ok := fx.registry.Get(id)
	require.True(t, ok, id)
	return p.Load
}

func sealed() map[string]bool {
	return map[string]bool{provider.FlagPolicySealed: true}
}

// complianceRequirement maximizes every density factor.
func complianceRequirement() requirement.Profile {
	return requirement.Profile{
		ID:           types.NewID(),
		Category:     requirement.CategoryCompliance,
		Urgency:      10,
		Complexity:   1.0,
		Compliance:   true,
		RequiredTags: []string{"compliance", "audit", "security"},
		RequiredTier: requirement.TierHighest,
	}
}

// quietRequirement is sparse and rolls out gradually.
func quietRequirement() requirement.Profile {
	return requirement.Profile{
		ID:           types.NewID(),
		Category:     requirement.CategoryTechnical,
		Urgency:      1,
		RequiredTags: []string{"technical"},
		RequiredTier: requirement.TierLowest,
	}
}

func registerComplianceProviders(t *testing.T, fx *fixture) {
	fx.register(t, provider.Provider{ID: "p-a", Capabilities: []string{"security", "audit"}, Tier: 6, Flags: sealed()})
	fx.register(t, provider.Provider{ID: "p-b", Capabilities: []string{"compliance"}, Tier: 5, Flags: sealed()})
	fx.register(t, provider.Provider{ID: "p-c", Capabilities: []string{"security"}, Tier: 2})
	fx.register(t, provider.Provider{ID: "p-d", Capabilities: []string{"audit", "compliance", "security"}, Tier: 6, Flags: sealed()})
	// Scores 0.15: below the selection floor.
	fx.register(t, provider.Provider{ID: "p-idle", Capabilities: []string{"gardening"}, Tier: 1, Load: 1})
}

func registerQuietProviders(t *testing.T, fx *fixture) {
	for i := 0; i < 10; i++ {
		p := provider.Provider{ID: fmt.Sprintf("p%d", i), Capabilities: []string{"general"}}
		if i == 5 || i == 7 {
			p.Capabilities = []string{"technical"}
		}
		fx.register(t, p)
	}
}

func TestBuild_SaturatedSelectsEveryQualifyingProvider(t *testing.T) {
	fx := newFixture(t)
	registerComplianceProviders(t, fx)

	f, err := fx.builder.Build(context.Background(), complianceRequirement(), BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, DensitySaturated, f.Density)
	assert.Equal(t, StrategyImmediate, f.Strategy)
	assert.Equal(t, []string{"p-d", "p-a", "p-b", "p-c"}, f.Members)
	assert.False(t, f.HasMember("p-idle"))
	assert.Equal(t, types.HealthStateHealthy, f.Health)
	assert.Equal(t, epoch, f.CreatedAt)

	require.NoError(t, fx.builder.Wait(context.Background(), f.ID))
	for _, id := range f.Members {
		assert.Equal(t, 0.8, fx.load(t, id), id)
	}

	stored, err := fx.store.Get(f.ID)
	require.NoError(t, err)
	assert.Equal(t, RolloutComplete, stored.Rollout)
	assert.ElementsMatch(t, f.Members, stored.Active)
	assert.InDelta(t, 0.8, stored.Metrics.AverageLoad, 1e-9)
	assert.InDelta(t, 0.75, stored.Metrics.ComplianceRatio, 1e-9)
}

func TestBuild_AdjacencyFollowsCompatibility(t *testing.T) {
	fx := newFixture(t)
	registerComplianceProviders(t, fx)

	f, err := fx.builder.Build(context.Background(), complianceRequirement(), BuildOptions{})
	require.NoError(t, err)

	members := Snapshots(fx.registry, f.Members)
	require.Len(t, members, 4)

	for _, a := range members {
		for _, b := range members {
			if a.ID == b.ID {
				assert.False(t, f.Adjacency.Has(a.ID, b.ID), "self edge on %s", a.ID)
				continue
			}
			want := fitness.Compatibility(a, b) > fitness.EdgeThreshold
			assert.Equal(t, want, f.Adjacency.Has(a.ID, b.ID), "%s-%s", a.ID, b.ID)
			assert.Equal(t, f.Adjacency.Has(a.ID, b.ID), f.Adjacency.Has(b.ID, a.ID), "symmetry %s-%s", a.ID, b.ID)
		}
	}
	// p-c is unsealed and two tiers below p-b with no shared tags.
	assert.False(t, f.Adjacency.Has("p-b", "p-c"))
	assert.True(t, f.Adjacency.Has("p-a", "p-d"))
}

func TestBuild_PositionsStayInBounds(t *testing.T) {
	fx := newFixture(t)
	registerComplianceProviders(t, fx)

	f, err := fx.builder.Build(context.Background(), complianceRequirement(), BuildOptions{})
	require.NoError(t, err)

	for id, pos := range f.Positions {
		for d := 0; d < provider.NumDimensions; d++ {
			assert.GreaterOrEqual(t, pos[d], 0.0, "%s %s", id, provider.Dimension(d))
			assert.LessOrEqual(t, pos[d], 1.0, "%s %s", id, provider.Dimension(d))
		}
	}
	// The first member has no perturbation: neutral urgency plus the urgent boost.
	assert.InDelta(t, 0.8, f.Positions["p-d"].Get(provider.DimUrgency), 1e-9)
}

func TestBuild_EmptyPool(t *testing.T) {
	fx := newFixture(t)

	f, err := fx.builder.Build(context.Background(), complianceRequirement(), BuildOptions{})
	require.NoError(t, err)

	assert.Empty(t, f.Members)
	assert.Empty(t, f.Adjacency)
	assert.Equal(t, types.HealthStateHealthy, f.Health)
	assert.Equal(t, RolloutComplete, f.Rollout)
	assert.Equal(t, 1, fx.store.Len())
	assert.NoError(t, fx.builder.Wait(context.Background(), f.ID))
}

func TestBuild_SparseCapacityAndTieBreak(t *testing.T) {
	fx := newFixture(t)
	registerQuietProviders(t, fx)

	f, err := fx.builder.Build(context.Background(), quietRequirement(), BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, DensitySparse, f.Density)
	assert.Equal(t, StrategyGradual, f.Strategy)
	assert.Equal(t, []string{"p5", "p7", "p0"}, f.Members)
}

func TestBuild_MinTierRaisesScoringTier(t *testing.T) {
	fx := newFixture(t)
	fx.register(t, provider.Provider{ID: "junior", Capabilities: []string{"technical"}, Tier: 1})
	fx.register(t, provider.Provider{ID: "senior", Capabilities: []string{"technical"}, Tier: 6})

	r := quietRequirement()
	f, err := fx.builder.Build(context.Background(), r, BuildOptions{MinTier: 6, ProfileName: "architect"})
	require.NoError(t, err)

	// Sparse capacity is one member; without the persona tier the two tie and
	// "junior" would win on id.
	assert.Equal(t, []string{"senior"}, f.Members)
	assert.Equal(t, "architect", f.ProfileName)
	assert.Equal(t, requirement.TierLowest, f.Requirement.RequiredTier)
}

func TestBuild_PlanningFailureMarksCritical(t *testing.T) {
	fx := newFixture(t)
	registerQuietProviders(t, fx)

	f, err := fx.builder.Build(context.Background(), quietRequirement(), BuildOptions{Strategy: "zigzag"})
	require.Error(t, err)
	assert.Equal(t, types.INVALID_STATE, types.CodeOf(err))

	assert.Equal(t, types.HealthStateCritical, f.Health)
	assert.Equal(t, RolloutFailed, f.Rollout)
	assert.NotEmpty(t, f.Members)

	stored, getErr := fx.store.Get(f.ID)
	require.NoError(t, getErr)
	assert.Equal(t, types.HealthStateCritical, stored.Health)
}

func TestBuild_GradualRolloutIsPaced(t *testing.T) {
	fx := newFixture(t)
	registerQuietProviders(t, fx)

	f, err := fx.builder.Build(context.Background(), quietRequirement(), BuildOptions{})
	require.NoError(t, err)

	fx.clock.WaitForWaiters(1)
	assert.Equal(t, 0.2, fx.load(t, "p5"))
	assert.Equal(t, 0.0, fx.load(t, "p7"))

	fx.clock.Advance(testPacing.GradualDelay)
	fx.clock.WaitForWaiters(1)
	assert.InDelta(t, 0.3, fx.load(t, "p7"), 1e-9)
	assert.Equal(t, 0.0, fx.load(t, "p0"))

	fx.clock.Advance(testPacing.GradualDelay)
	require.NoError(t, fx.builder.Wait(context.Background(), f.ID))
	assert.InDelta(t, 0.4, fx.load(t, "p0"), 1e-9)

	stored, err := fx.store.Get(f.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"p5", "p7", "p0"}, stored.Active)
	assert.Equal(t, RolloutComplete, stored.Rollout)
}

func TestBuild_RolloutAbortKeepsPartialState(t *testing.T) {
	fx := newFixture(t)
	registerQuietProviders(t, fx)

	ch, cleanup := fx.bus.Subscribe(context.Background(), events.Filter{
		Types: []events.EventType{events.EventRolloutAborted},
	}, 4)
	defer cleanup()

	f, err := fx.builder.Build(context.Background(), quietRequirement(), BuildOptions{})
	require.NoError(t, err)

	fx.clock.WaitForWaiters(1)
	fx.builder.Shutdown()

	err = fx.builder.Wait(context.Background(), f.ID)
	assert.ErrorIs(t, err, types.ErrRolloutAborted)

	stored, err := fx.store.Get(f.ID)
	require.NoError(t, err)
	assert.Equal(t, RolloutAborted, stored.Rollout)
	assert.Equal(t, []string{"p5"}, stored.Active)
	assert.Equal(t, types.HealthStateHealthy, stored.Health)
	assert.Equal(t, 0.0, fx.load(t, "p7"))

	select {
	case e := <-ch:
		assert.Equal(t, f.ID, e.FormationID)
		payload, ok := e.Payload.(events.RolloutPayload)
		require.True(t, ok)
		assert.Equal(t, 1, payload.Activated)
		assert.Equal(t, 3, payload.Total)
	case <-time.After(time.Second):
		t.Fatal("no rollout.aborted event")
	}
}

func TestBuild_RolloutFailsWhenMemberDeregistered(t *testing.T) {
	fx := newFixture(t)
	registerQuietProviders(t, fx)

	f, err := fx.builder.Build(context.Background(), quietRequirement(), BuildOptions{})
	require.NoError(t, err)

	fx.clock.WaitForWaiters(1)
	require.NoError(t, fx.registry.Deregister("p7"))
	fx.clock.Advance(testPacing.GradualDelay)

	err = fx.builder.Wait(context.Background(), f.ID)
	require.Error(t, err)
	assert.Equal(t, types.ROLLOUT_FAILED, types.CodeOf(err))

	stored, err := fx.store.Get(f.ID)
	require.NoError(t, err)
	assert.Equal(t, RolloutFailed, stored.Rollout)
	assert.Equal(t, types.HealthStateCritical, stored.Health)
}

func TestDissolve(t *testing.T) {
	fx := newFixture(t)
	registerComplianceProviders(t, fx)

	f, err := fx.builder.Build(context.Background(), complianceRequirement(), BuildOptions{})
	require.NoError(t, err)
	require.NoError(t, fx.builder.Wait(context.Background(), f.ID))

	require.NoError(t, fx.builder.Dissolve(context.Background(), f.ID))
	for _, id := range f.Members {
		assert.InDelta(t, 0.5, fx.load(t, id), 1e-9, id)
	}
	assert.Equal(t, 1.0, fx.load(t, "p-idle"))
	assert.Equal(t, 0, fx.store.Len())

	err = fx.builder.Dissolve(context.Background(), f.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDissolve_MidRolloutFloorsAtZero(t *testing.T) {
	fx := newFixture(t)
	registerQuietProviders(t, fx)

	f, err := fx.builder.Build(context.Background(), quietRequirement(), BuildOptions{})
	require.NoError(t, err)
	fx.clock.WaitForWaiters(1)

	require.NoError(t, fx.builder.Dissolve(context.Background(), f.ID))
	assert.Equal(t, 0.0, fx.load(t, "p5"))
	assert.Equal(t, 0.0, fx.load(t, "p7"))

	_, err = fx.store.Get(f.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}
