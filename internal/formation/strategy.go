package formation

import "github.com/chosen8823/ghost-in-the-shell-sub000/internal/requirement"

// Strategy selection thresholds.
const (
	immediateUrgency  = 8
	layeredComplexity = 0.8
)

// SelectStrategy picks the rollout strategy for r. Rules are checked in order:
// urgency ≥ 8 is immediate, compliance is weighted-wave, complexity ≥ 0.8 is
// layered, a required tier at or above the high tier is staged, otherwise gradual.
func SelectStrategy(r requirement.Profile) Strategy {
	switch {
	case r.Urgency >= immediateUrgency:
		return StrategyImmediate
	case r.Compliance:
		return StrategyWeightedWave
	case r.Complexity >= layeredComplexity:
		return StrategyLayered
	case r.RequiredTier >= requirement.TierHigh:
		return StrategyStaged
	default:
		return StrategyGradual
	}
}
