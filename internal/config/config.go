package config

import (
	"time"
)

// Config is the root configuration for scorch.
type Config struct {
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	Deployment   DeploymentConfig   `mapstructure:"deployment" yaml:"deployment"`
	Rollout      RolloutConfig      `mapstructure:"rollout" yaml:"rollout"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Tracing      TracingConfig      `mapstructure:"tracing" yaml:"tracing"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
}

// OrchestratorConfig contains registry, persona and reconciliation settings.
type OrchestratorConfig struct {
	// Catalog is an optional YAML provider catalog registered at start-up.
	Catalog string `mapstructure:"catalog" yaml:"catalog,omitempty"`

	// Scaling is the membership policy of new formations: fixed or adaptive.
	Scaling string `mapstructure:"scaling" yaml:"scaling" validate:"oneof=fixed adaptive"`

	ReconcileInterval time.Duration `mapstructure:"reconcile_interval" yaml:"reconcile_interval" validate:"min=100ms"`
	ScaleInterval     time.Duration `mapstructure:"scale_interval" yaml:"scale_interval" validate:"min=1s"`
	ProbeConcurrency  int           `mapstructure:"probe_concurrency" yaml:"probe_concurrency" validate:"min=1,max=256"`

	// AlwaysRequireCompliance marks every analyzed requirement compliance-bound.
	AlwaysRequireCompliance bool `mapstructure:"always_require_compliance" yaml:"always_require_compliance"`

	// Profiles are registered after the built-in personas.
	Profiles []ProfileConfig `mapstructure:"profiles" yaml:"profiles,omitempty" validate:"dive"`
}

// ProfileConfig declares an additional persona.
type ProfileConfig struct {
	Name             string             `mapstructure:"name" yaml:"name" validate:"required"`
	Weights          map[string]float64 `mapstructure:"weights" yaml:"weights" validate:"required,min=1,dive,min=0,max=1"`
	MinTier          int                `mapstructure:"min_tier" yaml:"min_tier" validate:"min=1,max=6"`
	ComplianceSealed bool               `mapstructure:"compliance_sealed" yaml:"compliance_sealed"`
}

// DeploymentConfig contains instance addressing and probing settings.
type DeploymentConfig struct {
	Host     string `mapstructure:"host" yaml:"host" validate:"required"`
	BasePort int    `mapstructure:"base_port" yaml:"base_port" validate:"min=1024,max=65535"`

	// Prober selects how instances are health-checked: status trusts the
	// recorded lifecycle state, grpc calls the standard health service.
	Prober        string        `mapstructure:"prober" yaml:"prober" validate:"oneof=status grpc"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout" validate:"min=100ms"`
	HealthService string        `mapstructure:"health_service" yaml:"health_service,omitempty"`
}

// RolloutConfig contains the pause between rollout steps per strategy.
type RolloutConfig struct {
	StagedDelay  time.Duration `mapstructure:"staged_delay" yaml:"staged_delay" validate:"min=0"`
	LayerDelay   time.Duration `mapstructure:"layer_delay" yaml:"layer_delay" validate:"min=0"`
	GradualDelay time.Duration `mapstructure:"gradual_delay" yaml:"gradual_delay" validate:"min=0"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json text"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate" validate:"min=0,max=1"`
}

// MetricsConfig contains metrics export configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address" validate:"required"`
}
