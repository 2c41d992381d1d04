package fitness

import (
	"testing"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/requirement"
	"github.com/stretchr/testify/assert"
)

func prov(tier int, load float64, sealed bool, tags ...string) provider.Provider {
	return provider.Provider{
		Capabilities: tags,
		Tier:         tier,
		Load:         load,
		Flags:        map[string]bool{provider.FlagPolicySealed: sealed},
	}
}

func TestScore_Components(t *testing.T) {
	req := requirement.Profile{
		RequiredTags: []string{"technical", "engineering", "design", "content"},
		RequiredTier: 4,
		Compliance:   true,
	}

	testCases := []struct {
		name     string
		provider provider.Provider
		want     float64
	}{
		{
			name:     "perfect fit",
			provider: prov(6, 0, true, "technical", "engineering", "design", "content"),
			want:     1.0,
		},
		{
			name:     "half overlap, half tier, unsealed, half load",
			provider: prov(2, 0.5, false, "technical", "design", "other"),
			want:     0.4*0.5 + 0.3*0.5 + 0.2*0.5 + 0.1*0.5,
		},
		{
			name:     "nothing in common, fully loaded",
			provider: prov(1, 1, false),
			want:     0.3*0.25 + 0.2*0.5,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Score(tc.provider, req), 1e-9)
		})
	}
}

func TestScore_NoComplianceRequired(t *testing.T) {
	req := requirement.Profile{RequiredTags: []string{"a"}, RequiredTier: 0}
	assert.InDelta(t, 0.3+0.2+0.1, Score(prov(1, 0, false), req), 1e-9)
}

func TestScore_EmptyRequiredTags(t *testing.T) {
	req := requirement.Profile{RequiredTier: 1}
	score := Score(prov(1, 0, false, "x"), req)
	assert.InDelta(t, 0.6, score, 1e-9)
}

func TestTierMatch(t *testing.T) {
	assert.Equal(t, 1.0, TierMatch(3, 0))
	assert.Equal(t, 1.0, TierMatch(6, 3))
	assert.InDelta(t, 0.5, TierMatch(3, 6), 1e-9)
}

func TestWeightedScore(t *testing.T) {
	req := requirement.Profile{RequiredTags: []string{"a", "b"}, RequiredTier: 3}

	full := WeightedScore(map[string]float64{"a": 1, "b": 1}, 3, false, req)
	assert.InDelta(t, 1.0, full, 1e-9)

	partial := WeightedScore(map[string]float64{"a": 0.5}, 3, false, req)
	assert.InDelta(t, 0.4*0.25+0.3+0.2+0.1, partial, 1e-9)

	clamped := WeightedScore(map[string]float64{"a": 9, "b": 9}, 3, false, req)
	assert.InDelta(t, 1.0, clamped, 1e-9)
}

func TestCompatibility(t *testing.T) {
	a := prov(3, 0, true, "x", "y")
	b := prov(3, 0, true, "x", "y")
	assert.InDelta(t, 1.0, Compatibility(a, b), 1e-9)
	assert.True(t, Connected(a, b))

	// No overlap, tiers 1 and 6, flags differ: 0 + 0 + 0.15.
	c := prov(1, 0, false, "p")
	d := prov(6, 0, true, "q")
	assert.InDelta(t, 0.15, Compatibility(c, d), 1e-9)
	assert.False(t, Connected(c, d))

	// Symmetric.
	e := prov(2, 0, false, "x", "z")
	assert.Equal(t, Compatibility(a, e), Compatibility(e, a))
}

func TestCompatibility_ThresholdIsStrict(t *testing.T) {
	// No overlap, same tier, same flags: 0 + 0.3 + 0.3 = 0.6 > 0.5.
	assert.True(t, Connected(prov(2, 0, false, "a"), prov(2, 0, false, "b")))

	// No overlap, tier gap 5, same flags: 0 + 0 + 0.3 = 0.3.
	assert.False(t, Connected(prov(1, 0, false, "a"), prov(6, 0, false, "b")))
}
