package requirement

import (
	"log/slog"
	"math"
	"strings"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/clock"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// Complexity sub-factor caps. They sum to 1.0.
const (
	systemsCap     = 0.3
	depthCap       = 0.3
	urgencyCap     = 0.2
	constraintsCap = 0.2
)

// Analyzer converts situation descriptions into requirement profiles.
type Analyzer struct {
	classifier              Classifier
	alwaysRequireCompliance bool
	clock                   clock.Clock
	logger                  *slog.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithClassifier replaces the default keyword classifier.
func WithClassifier(c Classifier) AnalyzerOption {
	return func(a *Analyzer) {
		if c != nil {
			a.classifier = c
		}
	}
}

// WithAlwaysRequireCompliance forces every profile to require compliance.
func WithAlwaysRequireCompliance(v bool) AnalyzerOption {
	return func(a *Analyzer) {
		a.alwaysRequireCompliance = v
	}
}

// WithAnalyzerClock sets the clock used for profile timestamps.
func WithAnalyzerClock(c clock.Clock) AnalyzerOption {
	return func(a *Analyzer) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithAnalyzerLogger sets the analyzer logger.
func WithAnalyzerLogger(l *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAnalyzer creates an Analyzer with the keyword classifier.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		classifier: NewKeywordClassifier(),
		clock:      clock.Real(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeMap decodes raw hints and analyzes the description.
func (a *Analyzer) AnalyzeMap(description string, raw map[string]any) (Profile, error) {
	hints, err := DecodeHints(raw)
	if err != nil {
		return Profile{}, err
	}
	return a.Analyze(description, hints)
}

// Analyze builds a requirement profile. It fails only on invalid hints or when
// neither a description nor explicit tags are given; unknown description
// content falls back to CategoryGeneral.
func (a *Analyzer) Analyze(description string, hints Hints) (Profile, error) {
	description = strings.TrimSpace(description)
	if description == "" && len(hints.Tags) == 0 {
		return Profile{}, types.InvalidInput("description cannot be empty")
	}
	if err := hints.Validate(); err != nil {
		return Profile{}, err
	}

	urgency := hints.Urgency
	if urgency == 0 {
		urgency = DefaultUrgency
	}

	matched := a.classifier.Classify(description)
	category := CategoryGeneral
	if len(matched) > 0 {
		category = matched[0]
	}

	words := tokenize(description)
	systems := hints.Systems
	if systems == 0 {
		systems = countKeywords(words, systemKeywords)
	}

	complexity := ComputeComplexity(systems, hints.TechnicalDepth, urgency, len(hints.Constraints))
	if hints.Complexity != nil {
		complexity = *hints.Complexity
	}

	compliance := a.alwaysRequireCompliance || containsAny(words, complianceKeywords)

	profile := Profile{
		ID:                types.NewID(),
		Description:       description,
		Category:          category,
		MatchedCategories: append([]Category(nil), matched...),
		Urgency:           urgency,
		Complexity:        complexity,
		RequiredTags:      requiredTags(matched, hints.Tags),
		RequiredTier:      RequiredTier(compliance, complexity),
		Compliance:        compliance,
		Constraints:       copyConstraints(hints.Constraints),
		CreatedAt:         a.clock.Now(),
	}

	a.logger.Debug("situation analyzed",
		"requirement_id", profile.ID,
		"category", profile.Category,
		"urgency", profile.Urgency,
		"complexity", profile.Complexity,
		"compliance", profile.Compliance,
		"required_tier", profile.RequiredTier,
	)

	return profile, nil
}

// ComputeComplexity sums the four capped sub-factors and clamps to 1.0.
func ComputeComplexity(systems, depth, urgency, constraints int) float64 {
	score := math.Min(float64(systems)/10, systemsCap) +
		math.Min(float64(depth)/10, depthCap) +
		math.Min(float64(urgency)/10, urgencyCap) +
		math.Min(float64(constraints)/5, constraintsCap)
	return math.Min(score, 1.0)
}

// RequiredTier maps compliance and complexity to the tier a situation needs.
func RequiredTier(compliance bool, complexity float64) int {
	switch {
	case compliance && complexity >= 0.8:
		return TierHighest
	case compliance || complexity >= 0.7:
		return TierHigh
	case complexity >= 0.5:
		return TierMid
	default:
		return TierLowest
	}
}

// requiredTags unions the tag lists of every matched category, in order, then
// appends explicit tags. The general list is used when nothing matched.
func requiredTags(matched []Category, explicit []string) []string {
	var tags []string
	if len(matched) == 0 {
		tags = TagsFor(CategoryGeneral)
	}
	for _, c := range matched {
		tags = append(tags, categoryTags[c]...)
	}
	tags = append(tags, explicit...)
	return provider.NormalizeTags(tags)
}

func copyConstraints(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
