// Package config handles loading and validation of dyndns configuration.
//
// Configuration comes from a YAML, TOML or legacy JSON file, with ${VAR}
// interpolation in string values and DYNDNS_* environment overrides for the
// global settings.
package config

import (
	"log/slog"
	"os"
	"sort"
	"strings"

	"gitlab.bluewillows.net/root/dyndns/internal/auth"
	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// DefaultConfigPath is used when neither the -config flag nor DYNDNS_CONFIG is set.
const DefaultConfigPath = "config.yaml"

// Config holds the complete application configuration.
type Config struct {
	Global *GlobalConfig

	// Providers holds per-type backend settings, keyed by lowercase type.
	Providers map[string]*ProviderSettings

	Users []UserConfig
}

// UserConfig is an account allowed to update its own hosts.
type UserConfig struct {
	Name     string
	Password string // plain text or bcrypt hash
	Domains  []provider.DomainConfig
}

// FilePath resolves the config file path: flag value, then DYNDNS_CONFIG, then the default.
func FilePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := getEnv("DYNDNS_CONFIG"); v != "" {
		return v
	}
	return DefaultConfigPath
}

// Load reads the config file at path, applies environment overrides and
// validates the result. knownTypes lists the provider types the binary can build.
// All problems are reported together in a *ValidationError.
func Load(path string, knownTypes []string) (*Config, error) {
	fileCfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	var errs []string

	global, globalErrs := fileCfg.ToGlobalConfig()
	errs = append(errs, globalErrs...)

	errs = append(errs, applyEnvOverrides(global)...)

	providers, providerErrs := convertProviderSettings(fileCfg.Providers)
	errs = append(errs, providerErrs...)

	users, userErrs := convertUsers(fileCfg.Users)
	errs = append(errs, userErrs...)

	cfg := &Config{
		Global:    global,
		Providers: providers,
		Users:     users,
	}

	errs = append(errs, validateConfig(cfg, knownTypes)...)

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	slog.Debug("loaded configuration",
		slog.String("path", path),
		slog.Int("users", len(users)),
		slog.Any("provider_types", cfg.ProviderTypes()),
	)

	return cfg, nil
}

// ProviderTypes returns the distinct provider types referenced by any domain, sorted.
func (c *Config) ProviderTypes() []string {
	seen := make(map[string]bool)
	for _, u := range c.Users {
		for _, d := range u.Domains {
			seen[d.Provider] = true
		}
	}

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// FactoryConfig builds the registry input for one provider type.
func (c *Config) FactoryConfig(typeName string, logger *slog.Logger) provider.FactoryConfig {
	fc := provider.FactoryConfig{
		Type:     typeName,
		Settings: map[string]string{},
		HTTP:     provider.HTTPConfig{Logger: logger},
	}

	if s, ok := c.Providers[typeName]; ok {
		fc.Settings = s.Settings
		fc.HTTP.Timeout = s.Timeout
		fc.HTTP.TLSSkipVerify = s.TLSSkipVerify
		fc.HTTP.UserAgent = s.UserAgent
	}

	return fc
}

// AuthUsers converts the configured users for the authenticator.
func (c *Config) AuthUsers() []auth.User {
	users := make([]auth.User, 0, len(c.Users))
	for _, u := range c.Users {
		users = append(users, auth.User{
			Name:     u.Name,
			Password: u.Password,
			Domains:  u.Domains,
		})
	}
	return users
}

// Domains returns every configured domain across all users.
func (c *Config) Domains() []provider.DomainConfig {
	var all []provider.DomainConfig
	for _, u := range c.Users {
		all = append(all, u.Domains...)
	}
	return all
}

// normalizeProviderType maps legacy spellings to type tags.
func normalizeProviderType(s string) string {
	switch strings.TrimSpace(s) {
	case "HetznerProvider":
		return "hetzner"
	case "MockProvider":
		return "mock"
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// getEnv retrieves an environment variable value.
func getEnv(key string) string {
	return os.Getenv(key)
}
