package main

import (
	"github.com/spf13/cobra"

	"github.com/chosen8823/ghost-in-the-shell-sub000/cmd/scorch/internal/cli"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/formation"
)

var analyzeHints hintFlags

var analyzeCmd = &cobra.Command{
	Use:   "analyze DESCRIPTION",
	Short: "Analyze a situation into a requirement profile",
	Long: `Classify a free-text situation and print the requirement profile that
formation building would use: matched categories, complexity, required tier,
required tags and compliance.`,
	Example: `  scorch analyze "audit the privacy policy" --urgency 9
  scorch analyze "migrate the billing service" --depth 7 --constraint region=eu`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var formFlags struct {
	hints hintFlags
	wait  bool
}

var formCmd = &cobra.Command{
	Use:   "form DESCRIPTION",
	Short: "Build a formation for a situation against the provider catalog",
	Long: `Analyze a situation, select providers from the catalog and print the
resulting formation. With --wait the command blocks until the rollout has
finished, honoring the configured rollout delays.`,
	Example: `  scorch form "design a new landing page" --catalog providers.yaml
  scorch form "research the market data" --catalog providers.yaml --wait -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runForm,
}

func init() {
	analyzeHints.register(analyzeCmd)
	formFlags.hints.register(formCmd)
	formCmd.Flags().BoolVar(&formFlags.wait, "wait", false, "Wait for the rollout to finish")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	raw, err := analyzeHints.hints(cmd)
	if err != nil {
		return err
	}

	o, err := newOrchestrator(appConfig, appLogger)
	if err != nil {
		return err
	}
	defer o.Shutdown()

	r, err := o.AnalyzeSituation(args[0], raw)
	if err != nil {
		return err
	}

	if globalFlags.Format() == cli.FormatJSON {
		return cli.PrintJSON(cmd.OutOrStdout(), r)
	}
	renderRequirement(cmd.OutOrStdout(), r)
	return nil
}

func runForm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	raw, err := formFlags.hints.hints(cmd)
	if err != nil {
		return err
	}

	o, err := newOrchestrator(appConfig, appLogger)
	if err != nil {
		return err
	}
	defer o.Shutdown()

	r, err := o.AnalyzeSituation(args[0], raw)
	if err != nil {
		return err
	}

	f, err := o.BuildFormation(ctx, r)
	if err != nil {
		return err
	}

	if formFlags.wait {
		if err := o.WaitFormation(ctx, f.ID); err != nil {
			return cli.WrapError(cli.ExitRolloutError, "rollout did not complete", err)
		}
		if f, err = o.Formation(f.ID); err != nil {
			return err
		}
	}

	if globalFlags.Format() == cli.FormatJSON {
		return cli.PrintJSON(cmd.OutOrStdout(), formationView{Formation: f, Providers: members(o.Provider, f)})
	}
	renderFormation(cmd.OutOrStdout(), f, o.Provider)
	return nil
}

// formationView is the JSON shape of form output: the formation plus a
// snapshot of each member.
type formationView struct {
	Formation formation.Formation `json:"formation"`
	Providers []providerSnapshot  `json:"providers"`
}

type providerSnapshot struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Tier   int     `json:"tier"`
	Load   float64 `json:"load"`
	Sealed bool    `json:"sealed"`
}

func members(lookup formationLookup, f formation.Formation) []providerSnapshot {
	out := make([]providerSnapshot, 0, len(f.Members))
	for _, id := range f.Members {
		p, err := lookup(id)
		if err != nil {
			continue
		}
		out = append(out, providerSnapshot{ID: p.ID, Name: p.Name, Tier: p.Tier, Load: p.Load, Sealed: p.Sealed()})
	}
	return out
}
