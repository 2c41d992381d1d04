package orchestrator

import (
	"time"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/deployment"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/formation"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// Status is a point-in-time snapshot of the orchestrator.
type Status struct {
	Providers        int               `json:"providers"`
	Formations       int               `json:"formations"`
	Manifests        int               `json:"manifests"`
	Instances        int               `json:"instances"`
	RunningInstances int               `json:"running_instances"`
	ActiveProfile    string            `json:"active_profile,omitempty"`
	ProfileSwitches  uint64            `json:"profile_switches"`
	Reconciling      bool              `json:"reconciling"`
	FormationHealth  []FormationStatus `json:"formation_health"`
	InstanceHealth   []InstanceStatus  `json:"instance_health"`
}

// FormationStatus summarizes one formation.
type FormationStatus struct {
	ID          types.ID               `json:"id"`
	Health      types.HealthState      `json:"health"`
	HealthScore float64                `json:"health_score"`
	Strategy    formation.Strategy     `json:"strategy"`
	Density     formation.Density      `json:"density"`
	Rollout     formation.RolloutState `json:"rollout"`
	Members     int                    `json:"members"`
	Active      int                    `json:"active"`
	Profile     string                 `json:"profile,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// InstanceStatus summarizes one deployment instance.
type InstanceStatus struct {
	ID              types.ID          `json:"id"`
	ManifestID      types.ID          `json:"manifest_id"`
	Status          deployment.Status `json:"status"`
	Endpoint        string            `json:"endpoint"`
	Healthy         bool              `json:"healthy"`
	LastHealthCheck time.Time         `json:"last_health_check,omitempty"`
}

// GetStatus reports counts and per-formation and per-instance health.
// Formations are ordered oldest first and instances by port, so two calls
// with no change in between return equal values. It never mutates state.
func (o *Orchestrator) GetStatus() Status {
	formations := o.store.List()
	instances := o.deployments.Instances()

	st := Status{
		Providers:       o.registry.Len(),
		Formations:      len(formations),
		Manifests:       len(o.deployments.Manifests()),
		Instances:       len(instances),
		ProfileSwitches: o.adapter.Switches(),
		Reconciling:     o.loop.Running(),
		FormationHealth: make([]FormationStatus, 0, len(formations)),
		InstanceHealth:  make([]InstanceStatus, 0, len(instances)),
	}
	if active, ok := o.adapter.Active(); ok {
		st.ActiveProfile = active.Name
	}

	for _, f := range formations {
		st.FormationHealth = append(st.FormationHealth, FormationStatus{
			ID:          f.ID,
			Health:      f.Health,
			HealthScore: f.HealthScore,
			Strategy:    f.Strategy,
			Density:     f.Density,
			Rollout:     f.Rollout,
			Members:     len(f.Members),
			Active:      len(f.Active),
			Profile:     f.ProfileName,
			CreatedAt:   f.CreatedAt,
		})
	}

	for _, inst := range instances {
		if inst.Status == deployment.StatusRunning {
			st.RunningInstances++
		}
		st.InstanceHealth = append(st.InstanceHealth, InstanceStatus{
			ID:              inst.ID,
			ManifestID:      inst.ManifestID,
			Status:          inst.Status,
			Endpoint:        inst.Endpoint,
			Healthy:         inst.Healthy,
			LastHealthCheck: inst.LastHealthCheck,
		})
	}
	return st
}
