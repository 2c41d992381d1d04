package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "fixed", cfg.Orchestrator.Scaling)
	assert.Equal(t, 10*time.Second, cfg.Orchestrator.ReconcileInterval)
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.ScaleInterval)
	assert.Equal(t, 8, cfg.Orchestrator.ProbeConcurrency)

	assert.Equal(t, "127.0.0.1", cfg.Deployment.Host)
	assert.Equal(t, 9000, cfg.Deployment.BasePort)
	assert.Equal(t, "status", cfg.Deployment.Prober)

	assert.Equal(t, 500*time.Millisecond, cfg.Rollout.StagedDelay)
	assert.Equal(t, time.Second, cfg.Rollout.LayerDelay)
	assert.Equal(t, 2*time.Second, cfg.Rollout.GradualDelay)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Tracing.Enabled)
	assert.False(t, cfg.Metrics.Enabled)

	require.NoError(t, NewValidator().Validate(cfg))
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
orchestrator:
  catalog: /etc/scorch/providers.yaml
  scaling: adaptive
  reconcile_interval: 2s
  scale_interval: 1m
  probe_concurrency: 4
  profiles:
    - name: quant
      min_tier: 4
      weights:
        analytical: 1.0
        research: 0.7

deployment:
  host: 0.0.0.0
  base_port: 7000
  prober: grpc
  probe_timeout: 750ms
  health_service: scorch.Component

rollout:
  staged_delay: 100ms
  layer_delay: 200ms
  gradual_delay: 300ms

logging:
  level: debug
  format: text

tracing:
  enabled: true
  endpoint: collector:4317
  insecure: true
  sample_rate: 0.25
`)

	cfg, err := NewConfigLoader(NewValidator()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/etc/scorch/providers.yaml", cfg.Orchestrator.Catalog)
	assert.Equal(t, "adaptive", cfg.Orchestrator.Scaling)
	assert.Equal(t, 2*time.Second, cfg.Orchestrator.ReconcileInterval)
	assert.Equal(t, time.Minute, cfg.Orchestrator.ScaleInterval)
	assert.Equal(t, 4, cfg.Orchestrator.ProbeConcurrency)
	require.Len(t, cfg.Orchestrator.Profiles, 1)
	assert.Equal(t, "quant", cfg.Orchestrator.Profiles[0].Name)
	assert.Equal(t, 4, cfg.Orchestrator.Profiles[0].MinTier)
	assert.Equal(t, map[string]float64{"analytical": 1.0, "research": 0.7}, cfg.Orchestrator.Profiles[0].Weights)

	assert.Equal(t, "0.0.0.0", cfg.Deployment.Host)
	assert.Equal(t, 7000, cfg.Deployment.BasePort)
	assert.Equal(t, "grpc", cfg.Deployment.Prober)
	assert.Equal(t, 750*time.Millisecond, cfg.Deployment.ProbeTimeout)
	assert.Equal(t, "scorch.Component", cfg.Deployment.HealthService)

	assert.Equal(t, 300*time.Millisecond, cfg.Rollout.GradualDelay)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "collector:4317", cfg.Tracing.Endpoint)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRate)

	// Sections absent from the file keep their defaults.
	assert.Equal(t, ":9090", cfg.Metrics.Address)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewConfigLoader(NewValidator()).Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_LOAD_FAILED, types.CodeOf(err))
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "logging: [unterminated")
	_, err := NewConfigLoader(NewValidator()).Load(path)
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_LOAD_FAILED, types.CodeOf(err))
}

func TestLoadWithDefaults_MissingFile(t *testing.T) {
	cfg, err := NewConfigLoader(NewValidator()).LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SCORCH_LOGGING_LEVEL", "warn")
	t.Setenv("SCORCH_DEPLOYMENT_BASE_PORT", "9500")
	t.Setenv("SCORCH_ORCHESTRATOR_RECONCILE_INTERVAL", "3s")

	path := writeConfig(t, `
logging:
  level: debug
`)
	cfg, err := NewConfigLoader(NewValidator()).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 9500, cfg.Deployment.BasePort)
	assert.Equal(t, 3*time.Second, cfg.Orchestrator.ReconcileInterval)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_Interpolation(t *testing.T) {
	t.Setenv("COLLECTOR_HOST", "otel.internal")
	t.Setenv("QUANT_PERSONA", "quant-desk")

	path := writeConfig(t, `
orchestrator:
  catalog: ${SCORCH_TEST_UNSET_DIR}/providers.yaml
  profiles:
    - name: ${QUANT_PERSONA}
      min_tier: 2
      weights: {analytical: 1}
tracing:
  enabled: true
  endpoint: ${COLLECTOR_HOST}:4317
`)
	cfg, err := NewConfigLoader(NewValidator()).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "otel.internal:4317", cfg.Tracing.Endpoint)
	assert.Equal(t, "quant-desk", cfg.Orchestrator.Profiles[0].Name)
	assert.Equal(t, "${SCORCH_TEST_UNSET_DIR}/providers.yaml", cfg.Orchestrator.Catalog)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown scaling",
			mutate:  func(c *Config) { c.Orchestrator.Scaling = "elastic" },
			wantErr: "orchestrator.scaling must be one of",
		},
		{
			name:    "reconcile interval too short",
			mutate:  func(c *Config) { c.Orchestrator.ReconcileInterval = time.Millisecond },
			wantErr: "orchestrator.reconcile_interval",
		},
		{
			name:    "privileged base port",
			mutate:  func(c *Config) { c.Deployment.BasePort = 80 },
			wantErr: "deployment.base_port must be at least 1024",
		},
		{
			name:    "unknown prober",
			mutate:  func(c *Config) { c.Deployment.Prober = "icmp" },
			wantErr: "deployment.prober",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "sample rate above one",
			mutate:  func(c *Config) { c.Tracing.SampleRate = 1.5 },
			wantErr: "tracing.sample_rate must be at most 1",
		},
		{
			name:    "tracing without endpoint",
			mutate:  func(c *Config) { c.Tracing.Enabled = true },
			wantErr: "tracing.endpoint is required",
		},
		{
			name: "persona weight out of range",
			mutate: func(c *Config) {
				c.Orchestrator.Profiles = []ProfileConfig{{Name: "x", MinTier: 1, Weights: map[string]float64{"a": 2}}}
			},
			wantErr: "must be at most 1",
		},
		{
			name: "persona without weights",
			mutate: func(c *Config) {
				c.Orchestrator.Profiles = []ProfileConfig{{Name: "x", MinTier: 1}}
			},
			wantErr: "weights",
		},
		{
			name: "duplicate persona",
			mutate: func(c *Config) {
				p := ProfileConfig{Name: "x", MinTier: 1, Weights: map[string]float64{"a": 1}}
				c.Orchestrator.Profiles = []ProfileConfig{p, p}
			},
			wantErr: `duplicate name "x"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := NewValidator().Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.Error(t, NewValidator().Validate(nil))
}

func TestValidate_ReportsConfigKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Deployment.BasePort = 80
	cfg.Logging.Format = "xml"
	cfg.Orchestrator.Profiles = []ProfileConfig{{Name: "x", MinTier: 1, Weights: map[string]float64{}}}

	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "deployment.base_port must be at least 1024 (got: 80)")
	assert.Contains(t, msg, "logging.format must be one of [json text] (got: xml)")
	assert.Contains(t, msg, "orchestrator.profiles[0].weights has too few entries (min 1)")
	assert.NotContains(t, msg, "Config.")
	assert.NotContains(t, msg, "BasePort")
}

func TestValidate_CollectsCrossFieldProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracing.Enabled = true
	p := ProfileConfig{Name: "x", MinTier: 1, Weights: map[string]float64{"a": 1}}
	cfg.Orchestrator.Profiles = []ProfileConfig{p, p}

	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	assert.Equal(t, "configuration validation failed:\n"+
		"  - tracing.endpoint is required when tracing is enabled\n"+
		`  - orchestrator.profiles has duplicate name "x"`, err.Error())
}

func TestLoad_ValidationFailureCode(t *testing.T) {
	path := writeConfig(t, `
deployment:
  prober: icmp
`)
	_, err := NewConfigLoader(NewValidator()).Load(path)
	require.Error(t, err)

	var cfgErr *types.Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, types.CONFIG_VALIDATION_FAILED, cfgErr.Code)
}

func TestDefaultConfigPath(t *testing.T) {
	home := DefaultHomeDir()
	assert.Contains(t, home, ".scorch")
	assert.Equal(t, filepath.Join(home, "config.yaml"), DefaultConfigPath(home))
}
