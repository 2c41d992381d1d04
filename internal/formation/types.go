package formation

import (
	"sort"
	"time"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/requirement"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// Strategy is the rollout strategy a formation is activated with.
type Strategy string

const (
	StrategyImmediate    Strategy = "immediate"
	StrategyStaged       Strategy = "staged"
	StrategyLayered      Strategy = "layered"
	StrategyGradual      Strategy = "gradual"
	StrategyWeightedWave Strategy = "weighted-wave"
)

// String returns the string representation of the strategy.
func (s Strategy) String() string {
	return string(s)
}

// IsValid reports whether s is a known strategy.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyImmediate, StrategyStaged, StrategyLayered, StrategyGradual, StrategyWeightedWave:
		return true
	default:
		return false
	}
}

// Scaling is the membership policy applied by reconciliation.
type Scaling string

const (
	// ScalingFixed keeps membership as built.
	ScalingFixed Scaling = "fixed"

	// ScalingAdaptive lets reconciliation add and remove members with load.
	ScalingAdaptive Scaling = "adaptive"
)

// RolloutState tracks the progress of a formation's rollout goroutine.
type RolloutState string

const (
	RolloutPending  RolloutState = "pending"
	RolloutRunning  RolloutState = "running"
	RolloutComplete RolloutState = "complete"
	RolloutAborted  RolloutState = "aborted"
	RolloutFailed   RolloutState = "failed"
)

// Done reports whether the rollout has reached a terminal state.
func (s RolloutState) Done() bool {
	return s == RolloutComplete || s == RolloutAborted || s == RolloutFailed
}

// Metrics summarizes a formation's membership.
type Metrics struct {
	// Coverage is the fraction of required tags carried by at least one member.
	Coverage float64 `json:"coverage"`

	// AverageLoad is the mean member load.
	AverageLoad float64 `json:"average_load"`

	// LoadBalance is 1 minus twice the standard deviation of member loads.
	LoadBalance float64 `json:"load_balance"`

	// ComplianceRatio is the fraction of policy-sealed members, or 1 when the
	// requirement does not demand compliance.
	ComplianceRatio float64 `json:"compliance_ratio"`

	// ConnectionDensity is the number of adjacency edges over the number of
	// possible member pairs.
	ConnectionDensity float64 `json:"connection_density"`
}

// Adjacency maps a member id to the ids it shares a compatibility edge with.
// The relation is symmetric.
type Adjacency map[string][]string

// Has reports whether an edge a-b exists.
func (a Adjacency) Has(from, to string) bool {
	for _, id := range a[from] {
		if id == to {
			return true
		}
	}
	return false
}

// Edges returns the number of undirected edges.
func (a Adjacency) Edges() int {
	n := 0
	for _, peers := range a {
		n += len(peers)
	}
	return n / 2
}

// Clone returns a deep copy.
func (a Adjacency) Clone() Adjacency {
	out := make(Adjacency, len(a))
	for k, v := range a {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Formation is a live grouping of providers serving one requirement.
// Values returned by the Store and Builder are copies.
type Formation struct {
	ID          types.ID                     `json:"id"`
	Requirement requirement.Profile          `json:"requirement"`
	Strategy    Strategy                     `json:"strategy"`
	Density     Density                      `json:"density"`
	Scaling     Scaling                      `json:"scaling"`
	Rollout     RolloutState                 `json:"rollout"`
	RolloutErr  string                       `json:"rollout_error,omitempty"`
	Members     []string                     `json:"members"`
	Active      []string                     `json:"active"`
	Positions   map[string]provider.Position `json:"positions"`
	Adjacency   Adjacency                    `json:"adjacency"`
	Metrics     Metrics                      `json:"metrics"`
	Health      types.HealthState            `json:"health"`
	HealthScore float64                      `json:"health_score"`
	ProfileName string                       `json:"profile_name,omitempty"`
	CreatedAt   time.Time                    `json:"created_at"`
}

// HasMember reports whether id is a member.
func (f Formation) HasMember(id string) bool {
	for _, m := range f.Members {
		if m == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the formation.
func (f Formation) Clone() Formation {
	out := f
	out.Requirement = f.Requirement.Clone()
	out.Members = append([]string(nil), f.Members...)
	out.Active = append([]string(nil), f.Active...)
	out.Positions = make(map[string]provider.Position, len(f.Positions))
	for k, v := range f.Positions {
		out.Positions[k] = v
	}
	out.Adjacency = f.Adjacency.Clone()
	return out
}

// sortByScore orders candidates by descending score, breaking ties by id.
func sortByScore(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].p.ID < cands[j].p.ID
	})
}

type candidate struct {
	p     provider.Provider
	score float64
}
