package provider

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePosition(t *testing.T) {
	pos := ComputePosition([]string{"code", "api", "design", "audit"}, 6)

	assert.InDelta(t, 0.2, pos.Get(DimTechnical), 1e-9)
	assert.InDelta(t, 0.1, pos.Get(DimCreative), 1e-9)
	assert.Equal(t, 0.0, pos.Get(DimAnalytical))
	assert.InDelta(t, 0.1, pos.Get(DimComplianceIntensity), 1e-9)
	assert.Equal(t, 1.0, pos.Get(DimTierNormalized))
	assert.Equal(t, NeutralUrgency, pos.Get(DimUrgency))
}

func TestComputePosition_ClampsKeywordCount(t *testing.T) {
	tags := dimensionKeywords[DimTechnical]
	require.Greater(t, len(tags), 10)

	pos := ComputePosition(tags, 1)
	assert.Equal(t, 1.0, pos.Get(DimTechnical))
}

func TestTierNormalized(t *testing.T) {
	assert.Equal(t, 0.2, TierNormalized(1))
	assert.Equal(t, 0.5, TierNormalized(3))
	assert.Equal(t, 1.0, TierNormalized(42))
	assert.Equal(t, 0.0, TierNormalized(-1))
}

func TestPosition_AddAndShiftClamp(t *testing.T) {
	var p Position
	p = p.Add(DimUrgency, 0.7).Add(DimUrgency, 0.7)
	assert.Equal(t, 1.0, p.Get(DimUrgency))

	p = p.Shift(-2)
	for i := range p {
		assert.Equal(t, 0.0, p[i])
	}
}

func TestPosition_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(ComputePosition(nil, 3))
	require.NoError(t, err)

	var m map[string]float64
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, 0.5, m["tier-normalized"])
	assert.Equal(t, 0.5, m["urgency"])
	assert.Len(t, m, NumDimensions)
}

func TestPosition_UnmarshalJSON(t *testing.T) {
	want := ComputePosition([]string{"technical", "audit"}, 5)
	data, err := json.Marshal(want)
	require.NoError(t, err)

	var got Position
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, want, got)

	assert.Error(t, json.Unmarshal([]byte(`{"altitude":0.4}`), &got))
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, NormalizeTags([]string{" A", "b", "a", "", "B "}))
}
