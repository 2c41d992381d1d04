package main

import (
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chosen8823/ghost-in-the-shell-sub000/cmd/scorch/internal/cli"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/deployment"
)

var deployFlags struct {
	description string
	components  []string
	env         string
	settings    []string
}

var deployCmd = &cobra.Command{
	Use:   "deploy NAME",
	Short: "Create a manifest from catalog providers and deploy it",
	Long: `Create a deployment manifest naming catalog providers as components,
deploy it on the next free port and probe it once. Values passed with --set
are parsed as YAML scalars, so numbers and booleans keep their type.`,
	Example: `  scorch deploy edge --catalog providers.yaml --component coder,artist --env staging --set replicas=2`,
	Args:    cobra.ExactArgs(1),
	RunE:    runDeploy,
}

func init() {
	deployCmd.Flags().StringVar(&deployFlags.description, "description", "", "Manifest description")
	deployCmd.Flags().StringSliceVar(&deployFlags.components, "component", nil, "Provider id to include (repeatable)")
	deployCmd.Flags().StringVar(&deployFlags.env, "env", string(deployment.EnvironmentDev), "Target environment (dev|staging|prod|test|cloud|local)")
	deployCmd.Flags().StringSliceVar(&deployFlags.settings, "set", nil, "Manifest config value as key=value (repeatable)")
	_ = deployCmd.MarkFlagRequired("component")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	env, err := deployment.ParseEnvironment(deployFlags.env)
	if err != nil {
		return err
	}
	settings, err := parseSettings(deployFlags.settings)
	if err != nil {
		return err
	}

	o, err := newOrchestrator(appConfig, appLogger)
	if err != nil {
		return err
	}
	defer o.Shutdown()

	manifestID, err := o.CreateManifest(args[0], deployFlags.description, deployFlags.components, env, settings)
	if err != nil {
		return err
	}
	instanceID, err := o.Deploy(ctx, manifestID)
	if err != nil {
		return err
	}

	// One pass probes the new instance.
	o.Reconcile(ctx)

	inst, err := o.Instance(instanceID)
	if err != nil {
		return err
	}
	if globalFlags.Format() == cli.FormatJSON {
		return cli.PrintJSON(cmd.OutOrStdout(), inst)
	}
	renderInstance(cmd.OutOrStdout(), inst)
	return nil
}

// parseSettings turns key=value pairs into manifest config.
func parseSettings(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, cli.WrapError(cli.ExitInvalidInput, "setting must be key=value: "+pair, nil)
		}
		var v any
		if err := yaml.Unmarshal([]byte(value), &v); err != nil || v == nil {
			v = value
		}
		out[key] = v
	}
	return out, nil
}
