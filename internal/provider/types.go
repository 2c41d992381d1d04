package provider

import (
	"strings"
	"time"
)

// Tier bounds. Tiers are ordinal seniority ranks used for compatibility and
// requirement matching.
const (
	MinTier  = 1
	MaxTier  = 6
	TierSpan = MaxTier - MinTier
)

// Compliance flag names.
const (
	// FlagPolicySealed marks a provider as cleared for compliance-bound work.
	FlagPolicySealed = "policy-sealed"

	// FlagElevated is raised by the weighted-wave rollout on activated members.
	FlagElevated = "elevated"
)

// Provider is a registered capability unit.
type Provider struct {
	ID           string          `yaml:"id" json:"id"`
	Name         string          `yaml:"name" json:"name"`
	Category     string          `yaml:"category" json:"category"`
	Capabilities []string        `yaml:"capabilities" json:"capabilities"`
	Load         float64         `yaml:"load" json:"load"`
	Tier         int             `yaml:"tier" json:"tier"`
	Flags        map[string]bool `yaml:"flags,omitempty" json:"flags,omitempty"`
	Position     Position        `yaml:"-" json:"position"`
	LastActive   time.Time       `yaml:"-" json:"last_active"`

	// Sequence is the registration order assigned by the Registry.
	Sequence uint64 `yaml:"-" json:"sequence"`
}

// Sealed reports whether the provider carries the policy-sealed compliance flag.
func (p Provider) Sealed() bool {
	return p.Flags[FlagPolicySealed]
}

// HasCapability reports whether the provider has tag (case-insensitive).
func (p Provider) HasCapability(tag string) bool {
	tag = NormalizeTag(tag)
	for _, c := range p.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the provider.
func (p Provider) Clone() Provider {
	out := p
	out.Capabilities = append([]string(nil), p.Capabilities...)
	if p.Flags != nil {
		out.Flags = make(map[string]bool, len(p.Flags))
		for k, v := range p.Flags {
			out.Flags[k] = v
		}
	}
	return out
}

// NormalizeTag lower-cases and trims a capability tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeTags normalizes every tag, drops empties and removes duplicates
// while keeping first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = NormalizeTag(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
