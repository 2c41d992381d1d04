package events

import (
	"time"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// EventType identifies the category and nature of an orchestrator event.
type EventType string

// Provider events
const (
	EventProviderRegistered   EventType = "provider.registered"
	EventProviderDeregistered EventType = "provider.deregistered"
)

// Formation lifecycle events
const (
	EventFormationBuilt         EventType = "formation.built"
	EventFormationDissolved     EventType = "formation.dissolved"
	EventFormationHealthChanged EventType = "formation.health_changed"
	EventFormationRebalanced    EventType = "formation.rebalanced"
	EventFormationScaledUp      EventType = "formation.scaled_up"
	EventFormationScaledDown    EventType = "formation.scaled_down"
)

// Rollout events
const (
	EventRolloutCompleted EventType = "rollout.completed"
	EventRolloutAborted   EventType = "rollout.aborted"
	EventRolloutFailed    EventType = "rollout.failed"
)

// Deployment events
const (
	EventManifestCreated   EventType = "deployment.manifest_created"
	EventInstanceStarted   EventType = "deployment.instance_started"
	EventInstanceStopped   EventType = "deployment.instance_stopped"
	EventInstanceUnhealthy EventType = "deployment.instance_unhealthy"
)

// Profile events
const (
	EventProfileSwitched    EventType = "profile.switched"
	EventProfileSynthesized EventType = "profile.synthesized"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// Event is a single orchestrator notification delivered to subscribers.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// FormationID associates the event with a formation (empty otherwise).
	FormationID types.ID `json:"formation_id,omitempty"`

	// InstanceID associates the event with a deployment instance (empty otherwise).
	InstanceID types.ID `json:"instance_id,omitempty"`

	// ProviderID names the provider the event is about, if any.
	ProviderID string `json:"provider_id,omitempty"`

	// Payload contains event-specific typed data (use type assertion to access).
	Payload any `json:"payload,omitempty"`
}

// Filter defines criteria for filtering events in subscriptions.
// All fields use AND logic; empty fields match everything.
type Filter struct {
	Types       []EventType `json:"types,omitempty"`
	FormationID types.ID    `json:"formation_id,omitempty"`
	InstanceID  types.ID    `json:"instance_id,omitempty"`
}

// Matches determines if the given event matches this filter's criteria.
func (f *Filter) Matches(event Event) bool {
	if len(f.Types) > 0 {
		matched := false
		for _, t := range f.Types {
			if event.Type == t {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.FormationID != "" && event.FormationID != f.FormationID {
		return false
	}

	if f.InstanceID != "" && event.InstanceID != f.InstanceID {
		return false
	}

	return true
}

// HealthChangedPayload contains data for formation.health_changed events.
type HealthChangedPayload struct {
	Previous types.HealthState `json:"previous"`
	Current  types.HealthState `json:"current"`
	Score    float64           `json:"score"`
}

// RebalancedPayload contains data for formation.rebalanced events.
type RebalancedPayload struct {
	Transfers []Transfer `json:"transfers"`
}

// Transfer records one load transfer between two members.
type Transfer struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// ScaledPayload contains data for formation.scaled_up and scaled_down events.
type ScaledPayload struct {
	ProviderID  string  `json:"provider_id"`
	AverageLoad float64 `json:"average_load"`
	Density     string  `json:"density"`
	Members     int     `json:"members"`
}

// RolloutPayload contains data for rollout events.
type RolloutPayload struct {
	Strategy  string `json:"strategy"`
	Activated int    `json:"activated"`
	Total     int    `json:"total"`
	Error     string `json:"error,omitempty"`
}

// ManifestPayload contains data for deployment.manifest_created events.
type ManifestPayload struct {
	ManifestID  types.ID `json:"manifest_id"`
	Name        string   `json:"name"`
	Environment string   `json:"environment"`
}

// InstanceHealthPayload contains data for deployment.instance_unhealthy events.
type InstanceHealthPayload struct {
	Endpoint string `json:"endpoint"`
	Error    string `json:"error,omitempty"`
}

// ProfileSwitchedPayload contains data for profile.switched events.
type ProfileSwitchedPayload struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Switches uint64 `json:"switches"`
}
