package main

import (
	"github.com/spf13/cobra"

	"github.com/chosen8823/ghost-in-the-shell-sub000/cmd/scorch/internal/cli"
)

// GlobalFlags holds flags available to all commands.
type GlobalFlags struct {
	Verbose      bool
	Quiet        bool
	OutputFormat string
	ConfigFile   string
	HomeDir      string
	Catalog      string
}

var globalFlags = &GlobalFlags{}

// RegisterGlobalFlags registers persistent flags on the root command.
func RegisterGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "Only log errors")
	cmd.PersistentFlags().StringVarP(&globalFlags.OutputFormat, "output", "o", "text", "Output format (text|json)")
	cmd.PersistentFlags().StringVar(&globalFlags.ConfigFile, "config", "", "Path to config file (default: $SCORCH_HOME/config.yaml)")
	cmd.PersistentFlags().StringVar(&globalFlags.HomeDir, "home", "", "Scorch home directory (default: ~/.scorch)")
	cmd.PersistentFlags().StringVar(&globalFlags.Catalog, "catalog", "", "Provider catalog to register (overrides orchestrator.catalog)")
}

// ParseGlobalFlags validates the global flags.
func ParseGlobalFlags(cmd *cobra.Command) (*GlobalFlags, error) {
	if _, err := cli.ParseOutputFormat(globalFlags.OutputFormat); err != nil {
		return nil, err
	}
	if globalFlags.Verbose && globalFlags.Quiet {
		return nil, cli.WrapError(cli.ExitInvalidInput, "--verbose and --quiet cannot be used together", nil)
	}
	return globalFlags, nil
}

// Format returns the parsed output format.
func (f *GlobalFlags) Format() cli.OutputFormat {
	format, err := cli.ParseOutputFormat(f.OutputFormat)
	if err != nil {
		return cli.FormatText
	}
	return format
}

// IsVerbose returns true if verbose mode is enabled.
func (f *GlobalFlags) IsVerbose() bool {
	return f.Verbose && !f.Quiet
}
