package deployment

import (
	"fmt"
	"strings"
	"time"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// Environment is the target environment of a manifest.
type Environment string

const (
	EnvironmentDev     Environment = "dev"
	EnvironmentStaging Environment = "staging"
	EnvironmentProd    Environment = "prod"
	EnvironmentTest    Environment = "test"
	EnvironmentCloud   Environment = "cloud"
	EnvironmentLocal   Environment = "local"
)

// String returns the string representation of the environment.
func (e Environment) String() string {
	return string(e)
}

// IsValid reports whether e is a known environment.
func (e Environment) IsValid() bool {
	switch e {
	case EnvironmentDev, EnvironmentStaging, EnvironmentProd,
		EnvironmentTest, EnvironmentCloud, EnvironmentLocal:
		return true
	default:
		return false
	}
}

// ParseEnvironment parses s case-insensitively.
func ParseEnvironment(s string) (Environment, error) {
	e := Environment(strings.ToLower(strings.TrimSpace(s)))
	if !e.IsValid() {
		return "", types.InvalidInput("invalid environment %q", s)
	}
	return e, nil
}

// Status is the lifecycle state of an instance.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
	StatusError    Status = "error"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Manifest is a named, validated bundle of components.
type Manifest struct {
	ID          types.ID       `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Components  []string       `json:"components" yaml:"components"`
	Environment Environment    `json:"environment" yaml:"environment"`
	Config      map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	CreatedAt   time.Time      `json:"created_at" yaml:"created_at"`
}

// Clone returns a copy of the manifest. Config values are copied shallowly.
func (m Manifest) Clone() Manifest {
	out := m
	out.Components = append([]string(nil), m.Components...)
	if m.Config != nil {
		out.Config = make(map[string]any, len(m.Config))
		for k, v := range m.Config {
			out.Config[k] = v
		}
	}
	return out
}

// Instance is one deployment of a manifest.
type Instance struct {
	ID               types.ID  `json:"id" yaml:"id"`
	ManifestID       types.ID  `json:"manifest_id" yaml:"manifest_id"`
	Status           Status    `json:"status" yaml:"status"`
	Port             int       `json:"port" yaml:"port"`
	Endpoint         string    `json:"endpoint" yaml:"endpoint"`
	ActiveComponents []string  `json:"active_components" yaml:"active_components"`
	Healthy          bool      `json:"healthy" yaml:"healthy"`
	LastHealthCheck  time.Time `json:"last_health_check,omitempty" yaml:"last_health_check,omitempty"`
	Error            string    `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt        time.Time `json:"started_at" yaml:"started_at"`
	StoppedAt        time.Time `json:"stopped_at,omitempty" yaml:"stopped_at,omitempty"`
}

// Clone returns a deep copy of the instance.
func (i Instance) Clone() Instance {
	out := i
	out.ActiveComponents = append([]string(nil), i.ActiveComponents...)
	return out
}

func endpoint(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
