package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/chosen8823/ghost-in-the-shell-sub000/cmd/scorch/internal/cli"
)

// hintFlags are the situation hints shared by analyze and form.
type hintFlags struct {
	urgency     int
	depth       int
	systems     int
	complexity  float64
	tags        []string
	constraints []string
}

func (h *hintFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&h.urgency, "urgency", 0, "Urgency from 1 to 10 (default 5)")
	cmd.Flags().IntVar(&h.depth, "depth", 0, "Technical depth from 0 to 10")
	cmd.Flags().IntVar(&h.systems, "systems", 0, "Number of systems involved (default: detected from the description)")
	cmd.Flags().Float64Var(&h.complexity, "complexity", 0, "Complexity in [0,1], replacing the computed score")
	cmd.Flags().StringSliceVar(&h.tags, "tag", nil, "Additional required capability tag (repeatable)")
	cmd.Flags().StringSliceVar(&h.constraints, "constraint", nil, "Constraint as key=value (repeatable)")
}

// hints returns only the hints whose flags were set, so analysis applies its
// own defaults to the rest.
func (h *hintFlags) hints(cmd *cobra.Command) (map[string]any, error) {
	raw := map[string]any{}
	if cmd.Flags().Changed("urgency") {
		raw["urgency"] = h.urgency
	}
	if cmd.Flags().Changed("depth") {
		raw["technical_depth"] = h.depth
	}
	if cmd.Flags().Changed("systems") {
		raw["systems"] = h.systems
	}
	if cmd.Flags().Changed("complexity") {
		raw["complexity"] = h.complexity
	}
	if len(h.tags) > 0 {
		raw["tags"] = h.tags
	}
	if len(h.constraints) > 0 {
		constraints := make(map[string]string, len(h.constraints))
		for _, c := range h.constraints {
			key, value, ok := strings.Cut(c, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return nil, cli.WrapError(cli.ExitInvalidInput, "constraint must be key=value: "+c, nil)
			}
			constraints[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
		raw["constraints"] = constraints
	}
	return raw, nil
}
