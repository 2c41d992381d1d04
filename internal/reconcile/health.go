package reconcile

import (
	"sort"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/events"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/formation"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
)

// Load thresholds.
const (
	// OverloadedLoad is the load above which a member is overloaded and
	// counted as unhealthy.
	OverloadedLoad = 0.8

	// UnderloadedLoad is the load below which a member can take transfers.
	UnderloadedLoad = 0.4

	// TransferAmount is moved from each overloaded member to its partner.
	TransferAmount = 0.2
)

// Health score weights.
const (
	weightHealthyRatio = 0.4
	weightHeadroom     = 0.3
	weightCompliance   = 0.3
)

// Scaling thresholds.
const (
	scaleUpLoad        = 0.7
	scaleDownLoad      = 0.3
	scaleCandidateLoad = 0.5
)

// HealthScore combines the healthy-member ratio, load headroom and compliance
// ratio. memberCount is the formation's membership size; members holds the
// snapshots of those still registered. An empty formation scores 1.
func HealthScore(memberCount int, members []provider.Provider, m formation.Metrics) float64 {
	if memberCount == 0 {
		return 1
	}
	healthy := 0
	for _, p := range members {
		if p.Load <= OverloadedLoad {
			healthy++
		}
	}
	ratio := float64(healthy) / float64(memberCount)
	return provider.Clamp01(weightHealthyRatio*ratio +
		weightHeadroom*(1-m.AverageLoad) +
		weightCompliance*m.ComplianceRatio)
}

// PlanTransfers pairs overloaded members with underloaded ones, both in
// registration order, and returns one transfer per pair.
func PlanTransfers(members []provider.Provider) []events.Transfer {
	ordered := append([]provider.Provider(nil), members...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })

	var over, under []string
	for _, p := range ordered {
		switch {
		case p.Load > OverloadedLoad:
			over = append(over, p.ID)
		case p.Load < UnderloadedLoad:
			under = append(under, p.ID)
		}
	}

	n := len(over)
	if len(under) < n {
		n = len(under)
	}
	transfers := make([]events.Transfer, n)
	for i := 0; i < n; i++ {
		transfers[i] = events.Transfer{From: over[i], To: under[i], Amount: TransferAmount}
	}
	return transfers
}
