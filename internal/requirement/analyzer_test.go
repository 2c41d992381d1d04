package requirement

import (
	"testing"
	"time"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/clock"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_FirstMatchWins(t *testing.T) {
	analyzer := NewAnalyzer()

	profile, err := analyzer.Analyze("build and design a creative technical tool", Hints{Urgency: 5})
	require.NoError(t, err)

	assert.Equal(t, CategoryTechnical, profile.Category, "technical precedes creative in the table")
	assert.Equal(t, []Category{CategoryTechnical, CategoryCreative}, profile.MatchedCategories)
	assert.True(t, profile.Matched(CategoryCreative))
	assert.Equal(t,
		[]string{"technical", "engineering", "implementation", "creative", "design", "content"},
		profile.RequiredTags)
	assert.False(t, profile.Compliance)
	assert.Equal(t, 5, profile.Urgency)
	assert.Equal(t, TierLowest, profile.RequiredTier)
}

func TestAnalyze_DefaultCategory(t *testing.T) {
	analyzer := NewAnalyzer()

	profile, err := analyzer.Analyze("something entirely unrelated happened", Hints{})
	require.NoError(t, err)

	assert.Equal(t, CategoryGeneral, profile.Category)
	assert.Empty(t, profile.MatchedCategories)
	assert.Equal(t, []string{"general"}, profile.RequiredTags)
	assert.Equal(t, DefaultUrgency, profile.Urgency)
}

func TestAnalyze_Compliance(t *testing.T) {
	analyzer := NewAnalyzer()

	profile, err := analyzer.Analyze("prepare the GDPR audit", Hints{})
	require.NoError(t, err)
	assert.True(t, profile.Compliance)
	assert.Equal(t, CategoryCompliance, profile.Category)
	assert.Equal(t, TierHigh, profile.RequiredTier)

	always := NewAnalyzer(WithAlwaysRequireCompliance(true))
	profile, err = always.Analyze("paint a mural", Hints{})
	require.NoError(t, err)
	assert.True(t, profile.Compliance)
}

func TestAnalyze_ComplexityFactors(t *testing.T) {
	analyzer := NewAnalyzer()

	profile, err := analyzer.Analyze("migrate the api, database and cloud storage for compliance", Hints{
		Urgency:        10,
		TechnicalDepth: 5,
		Constraints:    map[string]string{"budget": "low", "region": "eu"},
	})
	require.NoError(t, err)

	// 4 systems capped at 0.3, depth 0.5 capped at 0.3, urgency capped at 0.2,
	// two constraints 0.4 capped at 0.2.
	assert.InDelta(t, 1.0, profile.Complexity, 1e-9)
	assert.True(t, profile.Compliance)
	assert.Equal(t, TierHighest, profile.RequiredTier)
	assert.Equal(t, "eu", profile.Constraints["region"])
}

func TestAnalyze_ExplicitComplexityAndTags(t *testing.T) {
	analyzer := NewAnalyzer()
	c := 0.55

	profile, err := analyzer.Analyze("analyze churn data", Hints{Complexity: &c, Tags: []string{"SQL", "analysis"}})
	require.NoError(t, err)
	assert.Equal(t, 0.55, profile.Complexity)
	assert.Equal(t, TierMid, profile.RequiredTier)
	assert.Equal(t, []string{"analytical", "analysis", "research", "sql"}, profile.RequiredTags)
}

func TestAnalyze_TagsWithoutDescription(t *testing.T) {
	profile, err := NewAnalyzer().Analyze("", Hints{Tags: []string{"design"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"general", "design"}, profile.RequiredTags)
}

func TestAnalyze_InvalidInput(t *testing.T) {
	analyzer := NewAnalyzer()

	_, err := analyzer.Analyze("   ", Hints{})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = analyzer.Analyze("build it", Hints{Urgency: 11})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestAnalyzeMap_MalformedHints(t *testing.T) {
	analyzer := NewAnalyzer()

	testCases := []struct {
		name string
		raw  map[string]any
	}{
		{"non-numeric urgency", map[string]any{"urgency": "very"}},
		{"urgency out of range", map[string]any{"urgency": 0.5e2}},
		{"negative depth", map[string]any{"technical_depth": -1}},
		{"unknown key", map[string]any{"priority": 3}},
		{"complexity above one", map[string]any{"complexity": "1.5"}},
		{"boolean urgency", map[string]any{"urgency": true}},
		{"fractional urgency", map[string]any{"urgency": 7.9}},
		{"empty urgency", map[string]any{"urgency": ""}},
		{"boolean depth", map[string]any{"technical_depth": false}},
		{"fractional systems", map[string]any{"systems": 2.5}},
		{"empty complexity", map[string]any{"complexity": ""}},
		{"boolean complexity", map[string]any{"complexity": true}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := analyzer.AnalyzeMap("build a thing", tc.raw)
			assert.ErrorIs(t, err, types.ErrInvalidInput)
		})
	}
}

func TestAnalyzeMap_NumericStrings(t *testing.T) {
	profile, err := NewAnalyzer().AnalyzeMap("build a thing", map[string]any{
		"urgency":     "8",
		"tags":        []string{"go"},
		"constraints": map[string]string{"deadline": "friday"},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, profile.Urgency)
	assert.Contains(t, profile.RequiredTags, "go")
	assert.Equal(t, "friday", profile.Constraints["deadline"])
}

func TestDecodeHints_NumericForms(t *testing.T) {
	h, err := DecodeHints(map[string]any{
		"urgency":         9.0,
		"technical_depth": " 4 ",
		"systems":         int64(3),
		"complexity":      "0.25",
	})
	require.NoError(t, err)
	assert.Equal(t, 9, h.Urgency)
	assert.Equal(t, 4, h.TechnicalDepth)
	assert.Equal(t, 3, h.Systems)
	require.NotNil(t, h.Complexity)
	assert.InDelta(t, 0.25, *h.Complexity, 1e-9)
}

func TestAnalyze_UsesClock(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	analyzer := NewAnalyzer(WithAnalyzerClock(clock.Fake(now)))

	profile, err := analyzer.Analyze("build", Hints{})
	require.NoError(t, err)
	assert.Equal(t, now, profile.CreatedAt)
	assert.False(t, profile.ID.IsZero())
}

type fixedClassifier []Category

func (f fixedClassifier) Classify(string) []Category { return f }

func TestAnalyze_PluggableClassifier(t *testing.T) {
	analyzer := NewAnalyzer(WithClassifier(fixedClassifier{CategoryOperational}))

	profile, err := analyzer.Analyze("anything", Hints{})
	require.NoError(t, err)
	assert.Equal(t, CategoryOperational, profile.Category)
	assert.Equal(t, TagsFor(CategoryOperational), profile.RequiredTags)
}

func TestRequiredTier(t *testing.T) {
	assert.Equal(t, TierHighest, RequiredTier(true, 0.8))
	assert.Equal(t, TierHigh, RequiredTier(true, 0.1))
	assert.Equal(t, TierHigh, RequiredTier(false, 0.7))
	assert.Equal(t, TierMid, RequiredTier(false, 0.5))
	assert.Equal(t, TierLowest, RequiredTier(false, 0.49))
}

func TestComputeComplexity(t *testing.T) {
	assert.InDelta(t, 0.2, ComputeComplexity(0, 0, 5, 0), 1e-9)
	assert.InDelta(t, 0.1+0.2+0.1+0.2, ComputeComplexity(1, 2, 1, 3), 1e-9)
	assert.Equal(t, 1.0, ComputeComplexity(100, 100, 100, 100))
}

func TestProfile_Clone(t *testing.T) {
	p := Profile{RequiredTags: []string{"a"}, Constraints: map[string]string{"k": "v"}}
	c := p.Clone()
	c.RequiredTags[0] = "b"
	c.Constraints["k"] = "x"
	assert.Equal(t, "a", p.RequiredTags[0])
	assert.Equal(t, "v", p.Constraints["k"])
}
