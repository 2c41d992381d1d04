// Package requirement turns a free-form situation description plus structured
// hints into an immutable requirement Profile.
package requirement

import (
	"time"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// Category is the closed set of situation categories.
type Category string

const (
	CategoryTechnical   Category = "technical"
	CategoryCreative    Category = "creative"
	CategoryAnalytical  Category = "analytical"
	CategoryCompliance  Category = "compliance"
	CategoryOperational Category = "operational"
	CategoryGeneral     Category = "general"
)

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryTechnical, CategoryCreative, CategoryAnalytical,
		CategoryCompliance, CategoryOperational, CategoryGeneral:
		return true
	default:
		return false
	}
}

// Required tier levels produced by the tier lookup.
const (
	TierLowest  = 1
	TierMid     = 3
	TierHigh    = 5
	TierHighest = 6
)

// Urgency bounds.
const (
	MinUrgency     = 1
	MaxUrgency     = 10
	DefaultUrgency = 5
)

// Profile is the normalized description of what a situation needs.
// It is created once per request and never mutated afterwards.
//
// MatchedCategories lists every category whose keywords matched, in
// classification table order. Category is its first element, or
// CategoryGeneral when nothing matched.
type Profile struct {
	ID                types.ID          `json:"id"`
	Description       string            `json:"description"`
	Category          Category          `json:"category"`
	MatchedCategories []Category        `json:"matched_categories"`
	Urgency           int               `json:"urgency"`
	Complexity        float64           `json:"complexity"`
	RequiredTags      []string          `json:"required_tags"`
	RequiredTier      int               `json:"required_tier"`
	Compliance        bool              `json:"compliance"`
	Constraints       map[string]string `json:"constraints,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// Matched reports whether c was among the matched categories.
func (p Profile) Matched(c Category) bool {
	for _, m := range p.MatchedCategories {
		if m == c {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	out := p
	out.MatchedCategories = append([]Category(nil), p.MatchedCategories...)
	out.RequiredTags = append([]string(nil), p.RequiredTags...)
	if p.Constraints != nil {
		out.Constraints = make(map[string]string, len(p.Constraints))
		for k, v := range p.Constraints {
			out.Constraints[k] = v
		}
	}
	return out
}
