// Package profile maintains personas: named weight vectors over capability
// tags that bias formation building toward a tier and a skill mix.
package profile

import (
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/fitness"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/requirement"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// Profile is a persona.
type Profile struct {
	Name    string             `json:"name" yaml:"name" mapstructure:"name"`
	Weights map[string]float64 `json:"weights" yaml:"weights" mapstructure:"weights"`
	MinTier int                `json:"min_tier" yaml:"min_tier" mapstructure:"min_tier"`

	// ComplianceSealed marks a persona suited to compliance-bound work.
	ComplianceSealed bool `json:"compliance_sealed" yaml:"compliance_sealed" mapstructure:"compliance_sealed"`

	// Synthesized is set on personas created by AdaptToRequirement.
	Synthesized bool `json:"synthesized" yaml:"synthesized" mapstructure:"-"`
}

// Score rates the persona against r with the fitness weighted-score primitive.
func (p Profile) Score(r requirement.Profile) float64 {
	return fitness.WeightedScore(p.Weights, p.MinTier, p.ComplianceSealed, r)
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	out := p
	out.Weights = make(map[string]float64, len(p.Weights))
	for k, v := range p.Weights {
		out.Weights[k] = v
	}
	return out
}

// Validate checks the persona's name, tier and weights.
func (p Profile) Validate() error {
	if p.Name == "" {
		return types.InvalidInput("profile name cannot be empty")
	}
	if p.MinTier < 0 || p.MinTier > provider.MaxTier {
		return types.InvalidInput("profile %q min tier %d outside [0,%d]", p.Name, p.MinTier, provider.MaxTier)
	}
	for tag, w := range p.Weights {
		if w < 0 || w > 1 {
			return types.InvalidInput("profile %q weight for %q is %.2f, want [0,1]", p.Name, tag, w)
		}
	}
	return nil
}

// normalized returns p with lower-cased weight keys.
func (p Profile) normalized() Profile {
	out := p.Clone()
	out.Weights = make(map[string]float64, len(p.Weights))
	for k, v := range p.Weights {
		if k = provider.NormalizeTag(k); k != "" {
			out.Weights[k] = v
		}
	}
	return out
}

// Seeds returns the personas every Adapter starts with.
func Seeds() []Profile {
	return []Profile{
		{
			Name:    "engineer",
			Weights: map[string]float64{"technical": 1.0, "engineering": 1.0, "implementation": 0.9},
			MinTier: 3,
		},
		{
			Name:    "designer",
			Weights: map[string]float64{"creative": 1.0, "design": 1.0, "content": 0.8},
			MinTier: 2,
		},
		{
			Name:    "analyst",
			Weights: map[string]float64{"analytical": 1.0, "analysis": 1.0, "research": 0.9},
			MinTier: 3,
		},
		{
			Name:             "auditor",
			Weights:          map[string]float64{"compliance": 1.0, "audit": 1.0, "security": 0.9},
			MinTier:          5,
			ComplianceSealed: true,
		},
		{
			Name:    "operator",
			Weights: map[string]float64{"operations": 1.0, "monitoring": 1.0, "infrastructure": 0.9},
			MinTier: 3,
		},
		{
			Name:    "generalist",
			Weights: map[string]float64{"general": 1.0},
			MinTier: 1,
		},
	}
}
