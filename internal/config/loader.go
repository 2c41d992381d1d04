package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// EnvPrefix prefixes environment overrides: SCORCH_LOGGING_LEVEL overrides
// logging.level.
const EnvPrefix = "SCORCH"

// ConfigLoader handles loading configuration from files.
type ConfigLoader interface {
	Load(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

// viperConfigLoader implements ConfigLoader using Viper.
type viperConfigLoader struct {
	validator ConfigValidator
}

// NewConfigLoader creates a new ConfigLoader instance.
func NewConfigLoader(validator ConfigValidator) ConfigLoader {
	return &viperConfigLoader{
		validator: validator,
	}
}

// Load reads the YAML file at path, applies SCORCH_* environment overrides
// and ${VAR} interpolation, then validates the result. A missing file is an
// error.
func (l *viperConfigLoader) Load(path string) (*Config, error) {
	return l.load(path)
}

// LoadWithDefaults is Load, except that a missing file (or an empty path)
// yields the defaults with environment overrides applied.
func (l *viperConfigLoader) LoadWithDefaults(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return l.load(path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to stat config file", err)
		}
	}
	return l.load("")
}

func (l *viperConfigLoader) load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to read config file", err)
		}
	}

	for _, key := range v.AllKeys() {
		if s, ok := v.Get(key).(string); ok && strings.Contains(s, "${") {
			v.Set(key, interpolateString(s))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to unmarshal config", err)
	}
	interpolateProfiles(&cfg)

	if err := l.validator.Validate(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_VALIDATION_FAILED, "configuration validation failed", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolateString replaces ${VAR_NAME} with the variable's value. Unset
// variables are left as written.
func interpolateString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if value := os.Getenv(name); value != "" {
			return value
		}
		return match
	})
}

// interpolateProfiles covers persona names, which sit inside a list viper
// does not expose as individual keys.
func interpolateProfiles(cfg *Config) {
	for i := range cfg.Orchestrator.Profiles {
		cfg.Orchestrator.Profiles[i].Name = interpolateString(cfg.Orchestrator.Profiles[i].Name)
	}
}

// Load is shorthand for NewConfigLoader(NewValidator()).LoadWithDefaults(path).
func Load(path string) (*Config, error) {
	cfg, err := NewConfigLoader(NewValidator()).LoadWithDefaults(path)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}
	return cfg, nil
}
