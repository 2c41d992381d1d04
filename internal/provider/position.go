package provider

import (
	"encoding/json"
	"fmt"
)

// Dimension names one axis of the solution space.
type Dimension int

const (
	DimTechnical Dimension = iota
	DimCreative
	DimAnalytical
	DimComplianceIntensity
	DimTierNormalized
	DimUrgency

	NumDimensions = 6
)

var dimensionNames = [NumDimensions]string{
	DimTechnical:           "technical",
	DimCreative:            "creative",
	DimAnalytical:          "analytical",
	DimComplianceIntensity: "compliance-intensity",
	DimTierNormalized:      "tier-normalized",
	DimUrgency:             "urgency",
}

func (d Dimension) String() string {
	if d < 0 || int(d) >= NumDimensions {
		return "unknown"
	}
	return dimensionNames[d]
}

// NeutralUrgency is the urgency coordinate every provider starts with.
const NeutralUrgency = 0.5

// dimensionKeywords are the tag sets counted for the keyword-driven dimensions.
var dimensionKeywords = map[Dimension][]string{
	DimTechnical: {
		"technical", "engineering", "code", "coding", "programming", "backend",
		"frontend", "infrastructure", "devops", "api", "system", "systems",
		"implementation", "build",
	},
	DimCreative: {
		"creative", "design", "art", "writing", "ux", "ui", "storytelling",
		"ideation", "visual", "content",
	},
	DimAnalytical: {
		"analytical", "analysis", "data", "research", "statistics", "metrics",
		"modeling", "evaluation", "reasoning", "analytics",
	},
	DimComplianceIntensity: {
		"compliance", "security", "audit", "legal", "policy", "privacy",
		"governance", "regulation", "risk",
	},
}

// tierNormalized maps a tier to its tier-normalized coordinate.
var tierNormalized = [MaxTier + 1]float64{0, 0.2, 0.35, 0.5, 0.65, 0.8, 1.0}

// TierNormalized returns the normalized coordinate for tier, clamping out-of-range tiers.
func TierNormalized(tier int) float64 {
	if tier < 0 {
		tier = 0
	}
	if tier > MaxTier {
		tier = MaxTier
	}
	return tierNormalized[tier]
}

// Position is a point in the solution space; every coordinate is in [0,1].
type Position [NumDimensions]float64

// Get returns the coordinate for d.
func (p Position) Get(d Dimension) float64 { return p[d] }

// Add returns p with delta added to d, clamped.
func (p Position) Add(d Dimension, delta float64) Position {
	p[d] = Clamp01(p[d] + delta)
	return p
}

// Shift returns p with delta added to every coordinate, clamped.
func (p Position) Shift(delta float64) Position {
	for i := range p {
		p[i] = Clamp01(p[i] + delta)
	}
	return p
}

// Map returns the position keyed by dimension name.
func (p Position) Map() map[string]float64 {
	m := make(map[string]float64, NumDimensions)
	for i, v := range p {
		m[dimensionNames[i]] = v
	}
	return m
}

// MarshalJSON encodes the position as a name-keyed object.
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Map())
}

// UnmarshalJSON decodes a name-keyed object. Unknown dimension names are
// rejected; missing ones are zero.
func (p *Position) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var out Position
	for name, v := range m {
		d, ok := dimensionByName(name)
		if !ok {
			return fmt.Errorf("unknown position dimension %q", name)
		}
		out[d] = Clamp01(v)
	}
	*p = out
	return nil
}

func dimensionByName(name string) (Dimension, bool) {
	for i, n := range dimensionNames {
		if n == name {
			return Dimension(i), true
		}
	}
	return 0, false
}

// ComputePosition derives a provider's initial position from its capability
// tags and tier. Each keyword dimension counts matching tags, divided by 10
// and clamped; urgency starts neutral.
func ComputePosition(capabilities []string, tier int) Position {
	var pos Position
	for dim, keywords := range dimensionKeywords {
		pos[dim] = Clamp01(float64(countMatches(capabilities, keywords)) / 10)
	}
	pos[DimTierNormalized] = TierNormalized(tier)
	pos[DimUrgency] = NeutralUrgency
	return pos
}

func countMatches(tags, keywords []string) int {
	n := 0
	for _, t := range tags {
		for _, k := range keywords {
			if t == k {
				n++
				break
			}
		}
	}
	return n
}
