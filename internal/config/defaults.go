package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			Scaling:           "fixed",
			ReconcileInterval: 10 * time.Second,
			ScaleInterval:     30 * time.Second,
			ProbeConcurrency:  8,
		},
		Deployment: DeploymentConfig{
			Host:         "127.0.0.1",
			BasePort:     9000,
			Prober:       "status",
			ProbeTimeout: 5 * time.Second,
		},
		Rollout: RolloutConfig{
			StagedDelay:  500 * time.Millisecond,
			LayerDelay:   time.Second,
			GradualDelay: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:    false,
			SampleRate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
		},
	}
}

// setDefaults registers every scalar key with viper so SCORCH_* variables
// override keys absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("orchestrator.catalog", cfg.Orchestrator.Catalog)
	v.SetDefault("orchestrator.scaling", cfg.Orchestrator.Scaling)
	v.SetDefault("orchestrator.reconcile_interval", cfg.Orchestrator.ReconcileInterval)
	v.SetDefault("orchestrator.scale_interval", cfg.Orchestrator.ScaleInterval)
	v.SetDefault("orchestrator.probe_concurrency", cfg.Orchestrator.ProbeConcurrency)
	v.SetDefault("orchestrator.always_require_compliance", cfg.Orchestrator.AlwaysRequireCompliance)

	v.SetDefault("deployment.host", cfg.Deployment.Host)
	v.SetDefault("deployment.base_port", cfg.Deployment.BasePort)
	v.SetDefault("deployment.prober", cfg.Deployment.Prober)
	v.SetDefault("deployment.probe_timeout", cfg.Deployment.ProbeTimeout)
	v.SetDefault("deployment.health_service", cfg.Deployment.HealthService)

	v.SetDefault("rollout.staged_delay", cfg.Rollout.StagedDelay)
	v.SetDefault("rollout.layer_delay", cfg.Rollout.LayerDelay)
	v.SetDefault("rollout.gradual_delay", cfg.Rollout.GradualDelay)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", cfg.Tracing.Endpoint)
	v.SetDefault("tracing.insecure", cfg.Tracing.Insecure)
	v.SetDefault("tracing.sample_rate", cfg.Tracing.SampleRate)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.address", cfg.Metrics.Address)
}

// DefaultHomeDir returns ~/.scorch, or a directory under the system temp dir
// when the user home cannot be determined.
func DefaultHomeDir() string {
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".scorch")
	}
	return filepath.Join(userHome, ".scorch")
}

// DefaultConfigPath returns the config file path inside homeDir.
func DefaultConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}
