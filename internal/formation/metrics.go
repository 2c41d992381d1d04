package formation

import (
	"math"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/requirement"
)

// ComputeMetrics derives formation metrics from the current member snapshots.
func ComputeMetrics(members []provider.Provider, r requirement.Profile, adj Adjacency) Metrics {
	m := Metrics{
		Coverage:        coverage(members, r.RequiredTags),
		ComplianceRatio: 1,
		LoadBalance:     1,
	}
	if len(members) == 0 {
		return m
	}

	var sum, sealed float64
	for _, p := range members {
		sum += p.Load
		if p.Sealed() {
			sealed++
		}
	}
	n := float64(len(members))
	m.AverageLoad = sum / n

	var variance float64
	for _, p := range members {
		d := p.Load - m.AverageLoad
		variance += d * d
	}
	m.LoadBalance = provider.Clamp01(1 - 2*math.Sqrt(variance/n))

	if r.Compliance {
		m.ComplianceRatio = sealed / n
	}

	if len(members) > 1 {
		pairs := n * (n - 1) / 2
		m.ConnectionDensity = float64(adj.Edges()) / pairs
	}
	return m
}

func coverage(members []provider.Provider, tags []string) float64 {
	if len(tags) == 0 {
		return 1
	}
	covered := 0
	for _, t := range tags {
		for _, p := range members {
			if p.HasCapability(t) {
				covered++
				break
			}
		}
	}
	return float64(covered) / float64(len(tags))
}
