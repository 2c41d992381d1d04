package formation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/requirement"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// RolloutConfig holds the pacing delays between rollout steps.
type RolloutConfig struct {
	// StagedDelay separates members of a staged rollout.
	StagedDelay time.Duration

	// LayerDelay separates the buckets of a layered rollout.
	LayerDelay time.Duration

	// GradualDelay separates members of a gradual rollout.
	GradualDelay time.Duration
}

// DefaultRolloutConfig returns the default pacing.
func DefaultRolloutConfig() RolloutConfig {
	return RolloutConfig{
		StagedDelay:  500 * time.Millisecond,
		LayerDelay:   time.Second,
		GradualDelay: 2 * time.Second,
	}
}

// Activation loads.
const (
	immediateLoad    = 0.8
	waveLoad         = 0.7
	layerLoad        = 0.6
	stagedBaseLoad   = 0.6
	stagedMaxLoad    = 1.0
	gradualBaseLoad  = 0.2
	gradualMaxLoad   = 0.8
	activationStride = 0.1
)

// layerOrder is the fixed bucket order of a layered rollout. Members carrying
// none of these categories' tags form a final bucket.
var layerOrder = [...]requirement.Category{
	requirement.CategoryTechnical,
	requirement.CategoryAnalytical,
	requirement.CategoryCreative,
}

type activation struct {
	providerID string
	load       float64
	elevate    bool
}

// step is one paced unit of a rollout. wait elapses before the step runs.
type step struct {
	wait        time.Duration
	activations []activation
}

type rolloutPlan struct {
	strategy Strategy
	steps    []step
}

func (p rolloutPlan) size() int {
	n := 0
	for _, s := range p.steps {
		n += len(s.activations)
	}
	return n
}

// planRollout orders members and assigns activation loads for strategy.
// members are expected in selection order.
func planRollout(strategy Strategy, members []provider.Provider, cfg RolloutConfig) (rolloutPlan, error) {
	plan := rolloutPlan{strategy: strategy}

	switch strategy {
	case StrategyImmediate:
		plan.steps = []step{{activations: uniform(members, immediateLoad, false)}}

	case StrategyWeightedWave:
		plan.steps = []step{{activations: uniform(members, waveLoad, true)}}

	case StrategyStaged:
		ordered := append([]provider.Provider(nil), members...)
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].Tier != ordered[j].Tier {
				return ordered[i].Tier > ordered[j].Tier
			}
			return ordered[i].ID < ordered[j].ID
		})
		plan.steps = sequential(ordered, stagedBaseLoad, stagedMaxLoad, cfg.StagedDelay)

	case StrategyGradual:
		plan.steps = sequential(members, gradualBaseLoad, gradualMaxLoad, cfg.GradualDelay)

	case StrategyLayered:
		for _, bucket := range layers(members) {
			if len(bucket) == 0 {
				continue
			}
			var wait time.Duration
			if len(plan.steps) > 0 {
				wait = cfg.LayerDelay
			}
			plan.steps = append(plan.steps, step{wait: wait, activations: uniform(bucket, layerLoad, false)})
		}

	default:
		return rolloutPlan{}, types.NewError(types.INVALID_STATE, fmt.Sprintf("unknown rollout strategy %q", strategy))
	}

	if len(members) == 0 {
		plan.steps = nil
	}
	return plan, nil
}

func uniform(members []provider.Provider, load float64, elevate bool) []activation {
	out := make([]activation, len(members))
	for i, p := range members {
		out[i] = activation{providerID: p.ID, load: load, elevate: elevate}
	}
	return out
}

// sequential activates one member per step with load base+0.1i capped at ceiling.
func sequential(members []provider.Provider, base, ceiling float64, delay time.Duration) []step {
	steps := make([]step, len(members))
	for i, p := range members {
		var wait time.Duration
		if i > 0 {
			wait = delay
		}
		steps[i] = step{
			wait: wait,
			activations: []activation{{
				providerID: p.ID,
				load:       math.Min(base+activationStride*float64(i), ceiling),
			}},
		}
	}
	return steps
}

// layers splits members into the technical, analytical and creative buckets
// followed by everything else. A member joins the first bucket whose category
// tags it carries.
func layers(members []provider.Provider) [][]provider.Provider {
	buckets := make([][]provider.Provider, len(layerOrder)+1)
	for _, p := range members {
		idx := len(layerOrder)
		for i, c := range layerOrder {
			if hasAny(p, requirement.TagsFor(c)) {
				idx = i
				break
			}
		}
		buckets[idx] = append(buckets[idx], p)
	}
	return buckets
}

func hasAny(p provider.Provider, tags []string) bool {
	for _, t := range tags {
		if p.HasCapability(t) {
			return true
		}
	}
	return false
}
