package types

import (
	"encoding/json"
	"fmt"
)

// HealthState represents the health of a formation.
type HealthState string

const (
	HealthStateHealthy  HealthState = "healthy"
	HealthStateDegraded HealthState = "degraded"
	HealthStateCritical HealthState = "critical"
)

// Health score thresholds. A score at or above HealthyThreshold is healthy,
// at or above DegradedThreshold is degraded, anything lower is critical.
const (
	HealthyThreshold  = 0.8
	DegradedThreshold = 0.6
)

// String returns the string representation of HealthState
func (s HealthState) String() string {
	return string(s)
}

// IsValid checks if the HealthState is a valid value
func (s HealthState) IsValid() bool {
	switch s {
	case HealthStateHealthy, HealthStateDegraded, HealthStateCritical:
		return true
	default:
		return false
	}
}

// HealthFromScore maps a weighted health score in [0,1] to a HealthState.
func HealthFromScore(score float64) HealthState {
	switch {
	case score >= HealthyThreshold:
		return HealthStateHealthy
	case score >= DegradedThreshold:
		return HealthStateDegraded
	default:
		return HealthStateCritical
	}
}

// MarshalJSON implements json.Marshaler
func (s HealthState) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler
func (s *HealthState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	state := HealthState(str)
	if !state.IsValid() {
		return fmt.Errorf("invalid health state: %s", str)
	}

	*s = state
	return nil
}
