package formation

import (
	"fmt"
	"math"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/requirement"
)

// Density is the fraction of eligible providers a formation includes.
type Density int

const (
	DensitySparse Density = iota
	DensityModerate
	DensityDense
	DensitySaturated
)

var densityNames = [...]string{
	DensitySparse:    "sparse",
	DensityModerate:  "moderate",
	DensityDense:     "dense",
	DensitySaturated: "saturated",
}

// densityFractions holds the share of registered providers selected per density.
var densityFractions = [...]float64{
	DensitySparse:    0.3,
	DensityModerate:  0.5,
	DensityDense:     0.8,
	DensitySaturated: 1.0,
}

// Density score thresholds.
const (
	saturatedThreshold = 0.8
	denseThreshold     = 0.6
	moderateThreshold  = 0.4
)

func (d Density) String() string {
	if d < DensitySparse || d > DensitySaturated {
		return "unknown"
	}
	return densityNames[d]
}

// Fraction returns the share of registered providers this density selects.
func (d Density) Fraction() float64 {
	if d < DensitySparse || d > DensitySaturated {
		return densityFractions[DensitySparse]
	}
	return densityFractions[d]
}

// Up returns the next denser level, or d when already saturated.
func (d Density) Up() Density {
	if d >= DensitySaturated {
		return DensitySaturated
	}
	return d + 1
}

// Down returns the next sparser level, or d when already sparse.
func (d Density) Down() Density {
	if d <= DensitySparse {
		return DensitySparse
	}
	return d - 1
}

// Capacity returns max(1, floor(total × fraction)).
func (d Density) Capacity(total int) int {
	n := int(math.Floor(float64(total) * d.Fraction()))
	if n < 1 {
		return 1
	}
	return n
}

// MarshalText implements encoding.TextMarshaler.
func (d Density) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Density) UnmarshalText(text []byte) error {
	for i, name := range densityNames {
		if name == string(text) {
			*d = Density(i)
			return nil
		}
	}
	return fmt.Errorf("unknown density %q", text)
}

// DensityScore is 0.4·urgency/10 + 0.4·complexity + 0.2·compliance.
func DensityScore(r requirement.Profile) float64 {
	score := 0.4*float64(r.Urgency)/requirement.MaxUrgency + 0.4*r.Complexity
	if r.Compliance {
		score += 0.2
	}
	return score
}

// DensityFor maps a requirement to its density level.
func DensityFor(r requirement.Profile) Density {
	switch score := DensityScore(r); {
	case score >= saturatedThreshold:
		return DensitySaturated
	case score >= denseThreshold:
		return DensityDense
	case score >= moderateThreshold:
		return DensityModerate
	default:
		return DensitySparse
	}
}
