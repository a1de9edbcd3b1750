// Package config provides configuration loading for the refinement prover.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	perrors "github.com/orizon-lang/refinement/internal/errors"
)

// Solver kinds.
const (
	SolverNone   = "none"
	SolverSMTLib = "smtlib"
	SolverRemote = "remote"
)

// Config is the complete prover configuration.
type Config struct {
	Solver   SolverConfig   `yaml:"solver"`
	Registry RegistryConfig `yaml:"registry"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// SolverConfig selects the external decision procedure.
type SolverConfig struct {
	// Kind is one of none, smtlib, remote.
	Kind string `yaml:"kind"`
	// Command runs the SMT-LIB solver, e.g. ["z3", "-in", "-smt2"].
	Command []string `yaml:"command"`
	// Timeout bounds each solver call.
	Timeout time.Duration `yaml:"timeout"`
	// Endpoint is the remote prover URL for kind remote.
	Endpoint string `yaml:"endpoint"`
	// Insecure skips TLS verification of the remote endpoint.
	Insecure bool `yaml:"insecure"`
}

// RegistryConfig lists seed packs loaded at startup.
type RegistryConfig struct {
	// Seeds are doublestar globs of YAML seed packs.
	Seeds []string `yaml:"seeds"`
	// Watch reloads packs when their files change.
	Watch bool `yaml:"watch"`
}

// ServerConfig configures the HTTP/3 proof service.
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	// SelfSigned shapes the generated certificate used when no cert_file
	// is configured.
	SelfSigned SelfSignedConfig `yaml:"self_signed"`
}

// SelfSignedConfig configures the generated server certificate.
type SelfSignedConfig struct {
	// Hosts are extra SANs on top of the listen address host.
	Hosts []string `yaml:"hosts,omitempty"`
	// ValidFor is the certificate lifetime.
	ValidFor time.Duration `yaml:"valid_for"`
	// KeyType is ecdsa, ed25519 or rsa.
	KeyType string `yaml:"key_type"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with defaults.
func DefaultConfig() *Config {
	return &Config{
		Solver: SolverConfig{
			Kind:    SolverNone,
			Timeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8443",
			SelfSigned: SelfSignedConfig{
				ValidFor: 30 * 24 * time.Hour,
				KeyType:  "ecdsa",
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Solver.Kind {
	case SolverNone, SolverSMTLib:
	case SolverRemote:
		if c.Solver.Endpoint == "" {
			return perrors.InvalidConfig("solver.endpoint", "required for the remote solver")
		}
	default:
		return perrors.InvalidConfig("solver.kind", fmt.Sprintf("unknown kind %q", c.Solver.Kind))
	}
	if c.Solver.Timeout <= 0 {
		return perrors.InvalidConfig("solver.timeout", "must be positive")
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return perrors.InvalidConfig("server.addr", err.Error())
	}
	if (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		return perrors.InvalidConfig("server.cert_file", "cert_file and key_file must be set together")
	}
	switch c.Server.SelfSigned.KeyType {
	case "ecdsa", "ed25519", "rsa":
	default:
		return perrors.InvalidConfig("server.self_signed.key_type", fmt.Sprintf("unknown key type %q", c.Server.SelfSigned.KeyType))
	}
	if c.Server.SelfSigned.ValidFor <= 0 {
		return perrors.InvalidConfig("server.self_signed.valid_for", "must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return perrors.InvalidConfig("log.level", fmt.Sprintf("unknown level %q", c.Log.Level))
	}
	return nil
}

// LoadFromFile reads a YAML file. Fields the file leaves out stay zero so
// the result can be merged over another layer.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Merge copies the non-zero fields of other over c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Solver.Kind != "" {
		c.Solver.Kind = other.Solver.Kind
	}
	if len(other.Solver.Command) > 0 {
		c.Solver.Command = other.Solver.Command
	}
	if other.Solver.Timeout != 0 {
		c.Solver.Timeout = other.Solver.Timeout
	}
	if other.Solver.Endpoint != "" {
		c.Solver.Endpoint = other.Solver.Endpoint
	}
	if other.Solver.Insecure {
		c.Solver.Insecure = true
	}

	if len(other.Registry.Seeds) > 0 {
		c.Registry.Seeds = append(c.Registry.Seeds, other.Registry.Seeds...)
	}
	if other.Registry.Watch {
		c.Registry.Watch = true
	}

	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.CertFile != "" {
		c.Server.CertFile = other.Server.CertFile
	}
	if other.Server.KeyFile != "" {
		c.Server.KeyFile = other.Server.KeyFile
	}
	if len(other.Server.SelfSigned.Hosts) > 0 {
		c.Server.SelfSigned.Hosts = other.Server.SelfSigned.Hosts
	}
	if other.Server.SelfSigned.ValidFor != 0 {
		c.Server.SelfSigned.ValidFor = other.Server.SelfSigned.ValidFor
	}
	if other.Server.SelfSigned.KeyType != "" {
		c.Server.SelfSigned.KeyType = other.Server.SelfSigned.KeyType
	}

	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}
