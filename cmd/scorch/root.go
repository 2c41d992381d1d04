package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chosen8823/ghost-in-the-shell-sub000/cmd/scorch/internal/cli"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/config"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "scorch",
	Short: "Scorch - situational capability orchestrator",
	Long: `Scorch assembles formations of capability providers around a described
situation, rolls them out with a pacing strategy and keeps them balanced.

Use 'scorch serve' to run the orchestrator with its reconciliation loop, or
'scorch analyze' and 'scorch form' to try situations against a catalog.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Loaded by loadConfig before any subcommand runs.
var (
	appConfig *config.Config
	appLogger *slog.Logger
)

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// loadConfig resolves the config file, loads it and builds the logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return err
	}

	// validate loads the file itself so it can report on a broken config.
	if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "validate" {
		return nil
	}

	// An explicit --config must exist; the default path may be absent.
	var cfg *config.Config
	loader := config.NewConfigLoader(config.NewValidator())
	if flags.ConfigFile != "" {
		cfg, err = loader.Load(flags.ConfigFile)
	} else {
		cfg, err = loader.LoadWithDefaults(config.DefaultConfigPath(homeDir(flags)))
	}
	if err != nil {
		return err
	}

	if flags.Catalog != "" {
		cfg.Orchestrator.Catalog = flags.Catalog
	}
	switch {
	case flags.IsVerbose():
		cfg.Logging.Level = "debug"
	case flags.Quiet:
		cfg.Logging.Level = "error"
	}

	logger, err := observability.NewLogger(cmd.ErrOrStderr(), cfg.Logging)
	if err != nil {
		return cli.WrapError(cli.ExitConfigError, "failed to create logger", err)
	}

	appConfig, appLogger = cfg, logger
	return nil
}

// homeDir resolves the scorch home from --home, SCORCH_HOME or the default.
func homeDir(flags *GlobalFlags) string {
	if flags.HomeDir != "" {
		return flags.HomeDir
	}
	if home := os.Getenv("SCORCH_HOME"); home != "" {
		return home
	}
	return config.DefaultHomeDir()
}

func init() {
	RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(formCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
