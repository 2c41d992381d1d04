package main

import (
	"github.com/spf13/cobra"

	"github.com/chosen8823/ghost-in-the-shell-sub000/cmd/scorch/internal/cli"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/profile"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the providers in the catalog",
	Args:  cobra.NoArgs,
	RunE:  runProviders,
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the built-in and configured personas",
	Args:  cobra.NoArgs,
	RunE:  runProfiles,
}

func runProviders(cmd *cobra.Command, args []string) error {
	if appConfig.Orchestrator.Catalog == "" {
		return cli.WrapError(cli.ExitInvalidInput, "no catalog configured (use --catalog or orchestrator.catalog)", nil)
	}

	o, err := newOrchestrator(appConfig, appLogger)
	if err != nil {
		return err
	}
	defer o.Shutdown()

	providers := o.Providers()
	if globalFlags.Format() == cli.FormatJSON {
		return cli.PrintJSON(cmd.OutOrStdout(), providers)
	}
	renderProviders(cmd.OutOrStdout(), providers)
	return nil
}

func runProfiles(cmd *cobra.Command, args []string) error {
	o, err := newOrchestrator(appConfig, appLogger)
	if err != nil {
		return err
	}
	defer o.Shutdown()

	profiles := o.Profiles()
	if globalFlags.Format() == cli.FormatJSON {
		if profiles == nil {
			profiles = []profile.Profile{}
		}
		return cli.PrintJSON(cmd.OutOrStdout(), profiles)
	}
	renderProfiles(cmd.OutOrStdout(), profiles)
	return nil
}
