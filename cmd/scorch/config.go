package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chosen8823/ghost-in-the-shell-sub000/cmd/scorch/internal/cli"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and SCORCH_*
environment overrides have been applied.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [PATH]",
	Short: "Validate a configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if globalFlags.Format() == cli.FormatJSON {
		return cli.PrintJSON(cmd.OutOrStdout(), appConfig)
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(appConfig); err != nil {
		return err
	}
	return enc.Close()
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := globalFlags.ConfigFile
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		path = config.DefaultConfigPath(homeDir(globalFlags))
	}

	if _, err := config.NewConfigLoader(config.NewValidator()).Load(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
	return nil
}
