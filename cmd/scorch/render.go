package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chosen8823/ghost-in-the-shell-sub000/cmd/scorch/internal/cli"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/deployment"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/formation"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/orchestrator"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/profile"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/requirement"
)

func renderRequirement(w io.Writer, r requirement.Profile) {
	matched := make([]string, len(r.MatchedCategories))
	for i, c := range r.MatchedCategories {
		matched[i] = c.String()
	}
	pairs := [][2]string{
		{"ID", r.ID.String()},
		{"Category", r.Category.String()},
		{"Matched", joinOrDash(matched)},
		{"Urgency", fmt.Sprintf("%d", r.Urgency)},
		{"Complexity", fmt.Sprintf("%.3f", r.Complexity)},
		{"Required tier", fmt.Sprintf("%d", r.RequiredTier)},
		{"Required tags", joinOrDash(r.RequiredTags)},
		{"Compliance", cli.Bool(r.Compliance)},
	}
	if len(r.Constraints) > 0 {
		pairs = append(pairs, [2]string{"Constraints", formatStringMap(r.Constraints)})
	}
	fmt.Fprintln(w, cli.KeyValues("Requirement", pairs))
}

// formationLookup resolves member ids; unknown members render as ids only.
type formationLookup func(id string) (provider.Provider, error)

func renderFormation(w io.Writer, f formation.Formation, lookup formationLookup) {
	pairs := [][2]string{
		{"ID", f.ID.String()},
		{"Situation", f.Requirement.Description},
		{"Strategy", f.Strategy.String()},
		{"Density", f.Density.String()},
		{"Scaling", string(f.Scaling)},
		{"Rollout", string(f.Rollout)},
		{"Health", fmt.Sprintf("%s (%.2f)", cli.Health(f.Health), f.HealthScore)},
		{"Coverage", fmt.Sprintf("%.2f", f.Metrics.Coverage)},
		{"Average load", fmt.Sprintf("%.2f", f.Metrics.AverageLoad)},
	}
	if f.ProfileName != "" {
		pairs = append(pairs, [2]string{"Persona", f.ProfileName})
	}
	if f.RolloutErr != "" {
		pairs = append(pairs, [2]string{"Rollout error", f.RolloutErr})
	}
	fmt.Fprintln(w, cli.KeyValues("Formation", pairs))

	if len(f.Members) == 0 {
		fmt.Fprintln(w, "No providers selected.")
		return
	}

	active := make(map[string]bool, len(f.Active))
	for _, id := range f.Active {
		active[id] = true
	}
	rows := make([][]string, 0, len(f.Members))
	for _, id := range f.Members {
		name, tier, load := "-", "-", "-"
		if p, err := lookup(id); err == nil {
			name, tier, load = p.Name, fmt.Sprintf("%d", p.Tier), fmt.Sprintf("%.2f", p.Load)
		}
		rows = append(rows, []string{id, name, tier, load, cli.Bool(active[id]), fmt.Sprintf("%d", len(f.Adjacency[id]))})
	}
	fmt.Fprint(w, cli.Table([]string{"id", "name", "tier", "load", "active", "peers"}, rows))
}

func renderProviders(w io.Writer, providers []provider.Provider) {
	if len(providers) == 0 {
		fmt.Fprintln(w, "No providers registered.")
		return
	}
	rows := make([][]string, 0, len(providers))
	for _, p := range providers {
		rows = append(rows, []string{
			p.ID,
			p.Name,
			p.Category,
			fmt.Sprintf("%d", p.Tier),
			fmt.Sprintf("%.2f", p.Load),
			cli.Bool(p.Sealed()),
			strings.Join(p.Capabilities, ","),
		})
	}
	fmt.Fprint(w, cli.Table([]string{"id", "name", "category", "tier", "load", "sealed", "capabilities"}, rows))
}

func renderProfiles(w io.Writer, profiles []profile.Profile) {
	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, []string{
			p.Name,
			fmt.Sprintf("%d", p.MinTier),
			cli.Bool(p.ComplianceSealed),
			formatWeights(p.Weights),
		})
	}
	fmt.Fprint(w, cli.Table([]string{"name", "min tier", "sealed", "weights"}, rows))
}

func renderInstance(w io.Writer, inst deployment.Instance) {
	fmt.Fprintln(w, cli.KeyValues("Instance", [][2]string{
		{"ID", inst.ID.String()},
		{"Manifest", inst.ManifestID.String()},
		{"Status", inst.Status.String()},
		{"Endpoint", inst.Endpoint},
		{"Components", joinOrDash(inst.ActiveComponents)},
		{"Started", inst.StartedAt.Format("2006-01-02 15:04:05")},
	}))
}

func renderStatus(w io.Writer, s orchestrator.Status) {
	active := s.ActiveProfile
	if active == "" {
		active = "-"
	}
	fmt.Fprintln(w, cli.KeyValues("Orchestrator", [][2]string{
		{"Providers", fmt.Sprintf("%d", s.Providers)},
		{"Formations", fmt.Sprintf("%d", s.Formations)},
		{"Manifests", fmt.Sprintf("%d", s.Manifests)},
		{"Instances", fmt.Sprintf("%d (%d running)", s.Instances, s.RunningInstances)},
		{"Persona", fmt.Sprintf("%s (%d switches)", active, s.ProfileSwitches)},
		{"Reconciling", cli.Bool(s.Reconciling)},
	}))

	if len(s.FormationHealth) > 0 {
		rows := make([][]string, 0, len(s.FormationHealth))
		for _, f := range s.FormationHealth {
			rows = append(rows, []string{
				f.ID.Short(),
				cli.Health(f.Health),
				fmt.Sprintf("%.2f", f.HealthScore),
				f.Strategy.String(),
				string(f.Rollout),
				fmt.Sprintf("%d/%d", f.Active, f.Members),
			})
		}
		fmt.Fprintln(w, cli.Title("Formations"))
		fmt.Fprint(w, cli.Table([]string{"id", "health", "score", "strategy", "rollout", "active"}, rows))
	}

	if len(s.InstanceHealth) > 0 {
		rows := make([][]string, 0, len(s.InstanceHealth))
		for _, i := range s.InstanceHealth {
			rows = append(rows, []string{i.ID.Short(), i.Status.String(), i.Endpoint, cli.Bool(i.Healthy)})
		}
		fmt.Fprintln(w, cli.Title("Instances"))
		fmt.Fprint(w, cli.Table([]string{"id", "status", "endpoint", "healthy"}, rows))
	}
}

func formatWeights(weights map[string]float64) string {
	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.2f", k, weights[k])
	}
	return strings.Join(parts, " ")
}

func formatStringMap(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, " ")
}

func joinOrDash(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ", ")
}
