package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chosen8823/ghost-in-the-shell-sub000/cmd/scorch/internal/cli"
	"github.com/chosen8823/ghost-in-the-shell-sub000/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if globalFlags.Format() == cli.FormatJSON {
			return cli.PrintJSON(cmd.OutOrStdout(), version.Get())
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
		return nil
	},
}
