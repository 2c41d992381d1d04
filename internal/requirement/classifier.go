package requirement

import (
	"strings"
	"unicode"
)

// Classifier maps a description to the categories it matches, in priority
// order. The first element is the primary category.
type Classifier interface {
	Classify(description string) []Category
}

type categoryKeywords struct {
	category Category
	keywords []string
}

// categoryTable is ordered: when several categories match, the earliest entry
// becomes the primary category.
var categoryTable = []categoryKeywords{
	{CategoryTechnical, []string{"build", "code", "develop", "implement", "technical", "engineer", "api", "software", "integrat"}},
	{CategoryCreative, []string{"design", "creative", "write", "story", "brand", "visual", "content", "illustrat"}},
	{CategoryAnalytical, []string{"analy", "data", "research", "measure", "forecast", "evaluat", "investigat"}},
	{CategoryCompliance, complianceKeywords},
	{CategoryOperational, []string{"deploy", "operat", "monitor", "incident", "outage", "maintain", "scale", "support", "rollout"}},
}

// complianceKeywords also drive the compliance requirement flag.
var complianceKeywords = []string{"complian", "audit", "regulat", "legal", "policy", "gdpr", "hipaa", "privacy", "certif"}

// systemKeywords are counted to estimate how many systems a description touches.
var systemKeywords = []string{"api", "database", "service", "frontend", "backend", "network", "cloud", "pipeline", "queue", "cache", "storage", "cluster"}

// categoryTags lists the capability tags each category requires.
var categoryTags = map[Category][]string{
	CategoryTechnical:   {"technical", "engineering", "implementation"},
	CategoryCreative:    {"creative", "design", "content"},
	CategoryAnalytical:  {"analytical", "analysis", "research"},
	CategoryCompliance:  {"compliance", "audit", "security"},
	CategoryOperational: {"operations", "monitoring", "infrastructure"},
	CategoryGeneral:     {"general"},
}

// TagsFor returns a copy of the capability tags required by category c.
func TagsFor(c Category) []string {
	return append([]string(nil), categoryTags[c]...)
}

// KeywordClassifier matches description words against fixed keyword prefixes.
type KeywordClassifier struct{}

// NewKeywordClassifier returns the default keyword classifier.
func NewKeywordClassifier() KeywordClassifier {
	return KeywordClassifier{}
}

// Classify returns every category with at least one keyword present, in table order.
func (KeywordClassifier) Classify(description string) []Category {
	words := tokenize(description)
	var out []Category
	for _, entry := range categoryTable {
		if containsAny(words, entry.keywords) {
			out = append(out, entry.category)
		}
	}
	return out
}

// tokenize lower-cases s and splits it on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsAny reports whether any word starts with any keyword.
func containsAny(words, keywords []string) bool {
	return countKeywords(words, keywords) > 0
}

// countKeywords returns how many distinct keywords appear as a word prefix.
func countKeywords(words, keywords []string) int {
	n := 0
	for _, k := range keywords {
		for _, w := range words {
			if strings.HasPrefix(w, k) {
				n++
				break
			}
		}
	}
	return n
}
