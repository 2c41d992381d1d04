package formation

import (
	"math"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/requirement"
)

// Placement adjustments.
const (
	urgentThreshold  = 7
	urgencyBoost     = 0.3
	complianceBoost  = 0.2
	perturbationSize = 0.1
)

// Place computes the formation position of the i-th of n members.
//
// The stored position is raised on the urgency axis for urgent requirements
// and on the compliance-intensity axis for compliance requirements. A
// deterministic per-index offset is then added to every axis so members with
// identical tags do not share a point.
func Place(p provider.Provider, r requirement.Profile, i, n int) provider.Position {
	pos := p.Position
	if r.Urgency >= urgentThreshold {
		pos = pos.Add(provider.DimUrgency, urgencyBoost)
	}
	if r.Compliance {
		pos = pos.Add(provider.DimComplianceIntensity, complianceBoost)
	}
	return pos.Shift(perturbation(i, n))
}

func perturbation(i, n int) float64 {
	if n <= 0 {
		n = 1
	}
	return math.Sin(2*math.Pi*float64(i)/float64(n)+float64(i)) * perturbationSize
}

// PlaceAll positions members in order.
func PlaceAll(members []provider.Provider, r requirement.Profile) map[string]provider.Position {
	out := make(map[string]provider.Position, len(members))
	for i, p := range members {
		out[p.ID] = Place(p, r, i, len(members))
	}
	return out
}
