package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ConfigValidator validates configuration values.
type ConfigValidator interface {
	Validate(cfg *Config) error
}

// validatorImpl implements ConfigValidator using go-playground/validator.
type validatorImpl struct {
	validate *validator.Validate
}

// NewValidator creates a ConfigValidator that reports fields by their
// configuration keys (deployment.base_port) rather than Go names.
func NewValidator() ConfigValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		key, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		return key
	})
	return &validatorImpl{validate: v}
}

// Validate checks struct tags first, then the rules that span fields.
func (v *validatorImpl) Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}

	var problems []string
	if err := v.validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validation error: %w", err)
		}
		for _, fe := range fieldErrs {
			problems = append(problems, describe(fe))
		}
		return problemList(problems)
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		problems = append(problems, "tracing.endpoint is required when tracing is enabled")
	}

	seen := make(map[string]bool, len(cfg.Orchestrator.Profiles))
	for _, p := range cfg.Orchestrator.Profiles {
		if seen[p.Name] {
			problems = append(problems, fmt.Sprintf("orchestrator.profiles has duplicate name %q", p.Name))
		}
		seen[p.Name] = true
	}

	return problemList(problems)
}

func problemList(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
}

// ruleText maps a validator tag to the phrase that follows the key. %s is
// the rule parameter.
var ruleText = map[string]string{
	"min":   "must be at least %s",
	"max":   "must be at most %s",
	"oneof": "must be one of [%s]",
}

// describe renders one field failure as "<key> <rule> (got: <value>)".
func describe(fe validator.FieldError) string {
	key := configKey(fe.Namespace())
	if fe.Tag() == "required" {
		return key + " is required"
	}

	switch fe.Kind() {
	case reflect.Map, reflect.Slice:
		// Length rules on collections.
		switch fe.Tag() {
		case "min":
			return fmt.Sprintf("%s has too few entries (min %s)", key, fe.Param())
		case "max":
			return fmt.Sprintf("%s has too many entries (max %s)", key, fe.Param())
		}
	}

	text, ok := ruleText[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s fails rule %q (got: %v)", key, fe.Tag(), fe.Value())
	}
	return fmt.Sprintf("%s %s (got: %v)", key, fmt.Sprintf(text, fe.Param()), fe.Value())
}

// configKey drops the root type from a validator namespace, leaving the
// dotted key: "Config.deployment.base_port" becomes "deployment.base_port".
func configKey(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
