package main

import (
	"log/slog"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/config"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/deployment"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/formation"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/orchestrator"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/profile"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/reconcile"
)

// orchestratorOptions maps the loaded configuration onto orchestrator options.
func orchestratorOptions(cfg *config.Config, logger *slog.Logger) []orchestrator.Option {
	oc := cfg.Orchestrator

	profiles := make([]profile.Profile, 0, len(oc.Profiles))
	for _, pc := range oc.Profiles {
		profiles = append(profiles, profile.Profile{
			Name:             pc.Name,
			Weights:          pc.Weights,
			MinTier:          pc.MinTier,
			ComplianceSealed: pc.ComplianceSealed,
		})
	}

	return []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithScaling(formation.Scaling(oc.Scaling)),
		orchestrator.WithAlwaysRequireCompliance(oc.AlwaysRequireCompliance),
		orchestrator.WithProfiles(profiles...),
		orchestrator.WithRolloutConfig(formation.RolloutConfig{
			StagedDelay:  cfg.Rollout.StagedDelay,
			LayerDelay:   cfg.Rollout.LayerDelay,
			GradualDelay: cfg.Rollout.GradualDelay,
		}),
		orchestrator.WithReconcileOptions(
			reconcile.WithInterval(oc.ReconcileInterval),
			reconcile.WithScaleInterval(oc.ScaleInterval),
			reconcile.WithProbeConcurrency(oc.ProbeConcurrency),
		),
		orchestrator.WithDeploymentOptions(
			deployment.WithHost(cfg.Deployment.Host),
			deployment.WithBasePort(cfg.Deployment.BasePort),
			deployment.WithProber(newProber(cfg.Deployment)),
		),
	}
}

func newProber(dc config.DeploymentConfig) deployment.InstanceProber {
	if dc.Prober == "grpc" {
		return deployment.NewGRPCProber(
			deployment.WithProbeTimeout(dc.ProbeTimeout),
			deployment.WithServiceName(dc.HealthService),
		)
	}
	return deployment.StatusProber{}
}

// newOrchestrator builds an orchestrator from cfg and registers the
// configured catalog, if any.
func newOrchestrator(cfg *config.Config, logger *slog.Logger, extra ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	o, err := orchestrator.New(append(orchestratorOptions(cfg, logger), extra...)...)
	if err != nil {
		return nil, err
	}

	if cfg.Orchestrator.Catalog != "" {
		n, err := o.LoadCatalog(cfg.Orchestrator.Catalog)
		if err != nil {
			o.Shutdown()
			return nil, err
		}
		logger.Info("provider catalog loaded", "path", cfg.Orchestrator.Catalog, "providers", n)
	}
	return o, nil
}
