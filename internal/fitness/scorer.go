// Package fitness scores providers against requirement profiles and against
// each other.
//
// Score is the selection primitive used by the formation builder;
// Compatibility decides which members of a formation are connected;
// WeightedScore is the same primitive applied to a persona's declared weights.
package fitness

import (
	"math"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/requirement"
)

// Score weights.
const (
	WeightCapability = 0.4
	WeightTier       = 0.3
	WeightCompliance = 0.2
	WeightLoad       = 0.1
)

// Compatibility weights and edge threshold.
const (
	CompatWeightOverlap    = 0.4
	CompatWeightTier       = 0.3
	CompatWeightCompliance = 0.3

	// EdgeThreshold is the compatibility a pair must exceed to be connected.
	EdgeThreshold = 0.5
)

// unsealedComplianceScore is the compliance term for a provider lacking the
// policy-sealed flag when the requirement demands compliance.
const unsealedComplianceScore = 0.5

// Score rates how well p fits r, in [0,1].
func Score(p provider.Provider, r requirement.Profile) float64 {
	overlap := float64(countOverlap(p.Capabilities, r.RequiredTags)) / math.Max(float64(len(r.RequiredTags)), 1)
	return combine(overlap, p.Tier, r.RequiredTier, p.Sealed(), r.Compliance, p.Load)
}

// WeightedScore is Score for a persona: the capability term is the sum of the
// declared weights of the required tags divided by the number of required tags.
// Personas carry no load, so the load term is always full.
func WeightedScore(weights map[string]float64, minTier int, sealed bool, r requirement.Profile) float64 {
	var sum float64
	for _, tag := range r.RequiredTags {
		sum += provider.Clamp01(weights[tag])
	}
	overlap := sum / math.Max(float64(len(r.RequiredTags)), 1)
	return combine(overlap, minTier, r.RequiredTier, sealed, r.Compliance, 0)
}

func combine(overlap float64, tier, requiredTier int, sealed, complianceRequired bool, load float64) float64 {
	return provider.Clamp01(
		WeightCapability*overlap +
			WeightTier*TierMatch(tier, requiredTier) +
			WeightCompliance*complianceMatch(sealed, complianceRequired) +
			WeightLoad*(1-provider.Clamp01(load)),
	)
}

// TierMatch is min(tier/required, 1), or 1 when nothing is required.
func TierMatch(tier, required int) float64 {
	if required <= 0 {
		return 1
	}
	return math.Min(float64(tier)/float64(required), 1)
}

func complianceMatch(sealed, required bool) float64 {
	if !required || sealed {
		return 1
	}
	return unsealedComplianceScore
}

// Compatibility rates how well two providers can work together, in [0,1].
func Compatibility(a, b provider.Provider) float64 {
	union := len(a.Capabilities) + len(b.Capabilities) - countOverlap(a.Capabilities, b.Capabilities)
	overlap := float64(countOverlap(a.Capabilities, b.Capabilities)) / math.Max(float64(union), 1)

	closeness := 1 - math.Abs(float64(a.Tier-b.Tier))/float64(provider.TierSpan)

	flags := unsealedComplianceScore
	if a.Sealed() == b.Sealed() {
		flags = 1
	}

	return provider.Clamp01(
		CompatWeightOverlap*overlap +
			CompatWeightTier*provider.Clamp01(closeness) +
			CompatWeightCompliance*flags,
	)
}

// Connected reports whether a and b should share an adjacency edge.
func Connected(a, b provider.Provider) bool {
	return Compatibility(a, b) > EdgeThreshold
}

// countOverlap counts tags of a present in b. Both are expected normalized.
func countOverlap(a, b []string) int {
	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		set[provider.NormalizeTag(t)] = struct{}{}
	}
	n := 0
	for _, t := range a {
		if _, ok := set[provider.NormalizeTag(t)]; ok {
			n++
		}
	}
	return n
}
