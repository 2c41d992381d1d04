package requirement

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// Hints are optional structured inputs that refine analysis.
type Hints struct {
	// Urgency in [1,10]; zero means DefaultUrgency.
	Urgency int `mapstructure:"urgency"`

	// TechnicalDepth is the caller-declared complexity on a 0 to 10 scale.
	TechnicalDepth int `mapstructure:"technical_depth"`

	// Systems overrides the number of systems detected in the description.
	Systems int `mapstructure:"systems"`

	// Complexity, when set, replaces the computed complexity score.
	Complexity *float64 `mapstructure:"complexity"`

	Constraints map[string]string `mapstructure:"constraints"`
	Tags        []string          `mapstructure:"tags"`
}

// DecodeHints converts loosely typed hints (CLI flags, JSON bodies) into Hints.
// Numeric strings are accepted; booleans, empty strings and fractional values
// for integer fields fail with types.ErrInvalidInput.
func DecodeHints(raw map[string]any) (Hints, error) {
	var h Hints
	if len(raw) == 0 {
		return h, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &h,
		TagName:     "mapstructure",
		DecodeHook:  mapstructure.DecodeHookFuncType(strictNumberHook),
		ErrorUnused: true,
	})
	if err != nil {
		return h, types.WrapError(types.INVALID_INPUT, "failed to create hint decoder", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return h, types.WrapError(types.INVALID_INPUT, "malformed hints", err)
	}

	return h, h.Validate()
}

// strictNumberHook admits numeric strings for number fields and refuses the
// conversions weak typing would perform silently.
func strictNumberHook(from, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch from.Kind() {
		case reflect.Bool:
			return nil, fmt.Errorf("expected an integer, got %v", data)
		case reflect.String:
			n, err := strconv.Atoi(strings.TrimSpace(data.(string)))
			if err != nil {
				return nil, fmt.Errorf("expected an integer, got %q", data)
			}
			return n, nil
		case reflect.Float32, reflect.Float64:
			f := reflect.ValueOf(data).Float()
			if f != math.Trunc(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("expected an integer, got %v", f)
			}
			return int64(f), nil
		}
	case reflect.Float32, reflect.Float64:
		switch from.Kind() {
		case reflect.Bool:
			return nil, fmt.Errorf("expected a number, got %v", data)
		case reflect.String:
			f, err := strconv.ParseFloat(strings.TrimSpace(data.(string)), 64)
			if err != nil {
				return nil, fmt.Errorf("expected a number, got %q", data)
			}
			return f, nil
		}
	}
	return data, nil
}

// Validate checks hint ranges.
func (h Hints) Validate() error {
	if h.Urgency != 0 && (h.Urgency < MinUrgency || h.Urgency > MaxUrgency) {
		return types.InvalidInput("urgency %d outside [%d,%d]", h.Urgency, MinUrgency, MaxUrgency)
	}
	if h.TechnicalDepth < 0 {
		return types.InvalidInput("technical_depth cannot be negative")
	}
	if h.Systems < 0 {
		return types.InvalidInput("systems cannot be negative")
	}
	if h.Complexity != nil && (*h.Complexity < 0 || *h.Complexity > 1) {
		return types.InvalidInput("complexity %.2f outside [0,1]", *h.Complexity)
	}
	return nil
}
