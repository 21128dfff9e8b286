package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileConfig represents the configuration file structure.
// The same shape is read from YAML and TOML.
type FileConfig struct {
	Logging *FileLoggingConfig `yaml:"logging,omitempty" toml:"logging"`

	Server *FileServerConfig `yaml:"server,omitempty" toml:"server"`

	// Per-type provider settings, e.g. providers.hetzner.endpoint.
	Providers map[string]map[string]any `yaml:"providers,omitempty" toml:"providers"`

	Users []FileUserConfig `yaml:"users" toml:"users"`
}

// FileLoggingConfig holds logging settings.
type FileLoggingConfig struct {
	Level  string `yaml:"level,omitempty" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format,omitempty" toml:"format"` // json, text
}

// FileServerConfig holds listener and request handling settings.
type FileServerConfig struct {
	Listen               string `yaml:"listen,omitempty" toml:"listen"`
	HealthPort           *int   `yaml:"health_port,omitempty" toml:"health_port"` // 0 disables
	RequestTimeout       string `yaml:"request_timeout,omitempty" toml:"request_timeout"`
	MaxConcurrentUpdates int    `yaml:"max_concurrent_updates,omitempty" toml:"max_concurrent_updates"`
}

// FileUserConfig is one user entry. The json tags describe the legacy
// single-user JSON format.
type FileUserConfig struct {
	Name     string             `yaml:"name" toml:"name" json:"name"`
	Password string             `yaml:"password" toml:"password" json:"password"`
	Domains  []FileDomainConfig `yaml:"domains" toml:"domains" json:"domains"`
}

// FileDomainConfig binds a host to a provider account and zone.
type FileDomainConfig struct {
	Provider     string         `yaml:"provider" toml:"provider" json:"provider"`
	APIToken     string         `yaml:"api_token,omitempty" toml:"api_token" json:"apitoken"`
	APITokenFile string         `yaml:"api_token_file,omitempty" toml:"api_token_file" json:"apitoken_file,omitempty"`
	Host         string         `yaml:"host" toml:"host" json:"host"`
	Zone         FileZoneConfig `yaml:"zone" toml:"zone" json:"zone"`
}

// FileZoneConfig identifies a provider-side zone.
type FileZoneConfig struct {
	ID   string `yaml:"id" toml:"id" json:"id"`
	Name string `yaml:"name" toml:"name" json:"name"`
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnvVars replaces ${VAR} patterns with environment variable values.
// Supports ${VAR:-default} syntax for default values.
func InterpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if value := getEnv(groups[1]); value != "" {
			return value
		}
		return groups[2]
	})
}

func (c *FileConfig) interpolateEnvVars() {
	if c.Logging != nil {
		c.Logging.Level = InterpolateEnvVars(c.Logging.Level)
		c.Logging.Format = InterpolateEnvVars(c.Logging.Format)
	}

	if c.Server != nil {
		c.Server.Listen = InterpolateEnvVars(c.Server.Listen)
		c.Server.RequestTimeout = InterpolateEnvVars(c.Server.RequestTimeout)
	}

	for _, settings := range c.Providers {
		for k, v := range settings {
			if s, ok := v.(string); ok {
				settings[k] = InterpolateEnvVars(s)
			}
		}
	}

	for i := range c.Users {
		u := &c.Users[i]
		u.Name = InterpolateEnvVars(u.Name)
		u.Password = InterpolateEnvVars(u.Password)
		for j := range u.Domains {
			d := &u.Domains[j]
			d.Provider = InterpolateEnvVars(d.Provider)
			d.APIToken = InterpolateEnvVars(d.APIToken)
			d.APITokenFile = InterpolateEnvVars(d.APITokenFile)
			d.Host = InterpolateEnvVars(d.Host)
			d.Zone.ID = InterpolateEnvVars(d.Zone.ID)
			d.Zone.Name = InterpolateEnvVars(d.Zone.Name)
		}
	}
}

// LoadFile reads and parses a configuration file. The format follows the
// extension: .yaml/.yml, .toml, or .json for the legacy single-user format.
// Environment variables in ${VAR} format are interpolated.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML config: %w", err)
		}
	case ".json":
		var user FileUserConfig
		if err := json.Unmarshal(data, &user); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
		cfg.Users = []FileUserConfig{user}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q (use .yaml, .yml, .toml or .json)", ext)
	}

	cfg.interpolateEnvVars()

	return &cfg, nil
}
