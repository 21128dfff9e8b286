package config

import (
	"fmt"
	"strings"

	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration error: %s", e.Errors[0])
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Provider types that may run without an API token: mock never calls a
// backend, rfc2136 may send unsigned updates, dnsmasq edits a file and a
// webhook endpoint may be unauthenticated.
var tokenOptional = map[string]bool{
	"dnsmasq": true,
	"mock":    true,
	"rfc2136": true,
	"webhook": true,
}

// validateConfig performs cross-field validation on the complete configuration.
// Returns a list of validation errors.
func validateConfig(cfg *Config, knownTypes []string) []string {
	var errs []string

	errs = append(errs, validateGlobal(cfg.Global)...)

	if len(cfg.Users) == 0 {
		errs = append(errs, "users: at least one user is required")
	}

	seenUsers := make(map[string]bool)
	for i, u := range cfg.Users {
		prefix := fmt.Sprintf("users[%d]", i)

		if u.Name == "" {
			errs = append(errs, prefix+": name is required")
		} else if seenUsers[u.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate user name %q", prefix, u.Name))
		}
		seenUsers[u.Name] = true

		if u.Password == "" {
			errs = append(errs, prefix+": password is required")
		}

		seenHosts := make(map[string]bool)
		for j, d := range u.Domains {
			dprefix := fmt.Sprintf("%s.domains[%d]", prefix, j)
			errs = append(errs, validateDomain(dprefix, d, knownTypes)...)

			// Authentication matches hosts case-insensitively without a trailing dot.
			if host := normalizeHost(d.Host); host != "" {
				if seenHosts[host] {
					errs = append(errs, fmt.Sprintf("%s: duplicate host %q", dprefix, d.Host))
				}
				seenHosts[host] = true
			}
		}
	}

	return errs
}

func validateGlobal(g *GlobalConfig) []string {
	var errs []string

	switch g.LogLevel {
	case "debug", "info", "warn", "error":
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("log level: invalid value %q (must be debug, info, warn, or error)", g.LogLevel))
	}

	switch g.LogFormat {
	case "json", "text":
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("log format: invalid value %q (must be json or text)", g.LogFormat))
	}

	if g.Listen == "" {
		errs = append(errs, "listen address is required")
	}
	if g.HealthPort < 0 || g.HealthPort > 65535 {
		errs = append(errs, fmt.Sprintf("health port: must be between 0 and 65535, got %d", g.HealthPort))
	}
	if g.RequestTimeout <= 0 {
		errs = append(errs, "request timeout: must be positive")
	}
	if g.MaxConcurrentUpdates < 1 {
		errs = append(errs, fmt.Sprintf("max concurrent updates: must be at least 1, got %d", g.MaxConcurrentUpdates))
	}

	return errs
}

func validateDomain(prefix string, d provider.DomainConfig, knownTypes []string) []string {
	var errs []string

	if d.Provider == "" {
		errs = append(errs, prefix+": provider is required")
	} else if err := validateProviderType(d.Provider, knownTypes); err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", prefix, err))
	}

	if d.Host == "" {
		errs = append(errs, prefix+": host is required")
	}
	if d.Zone.Name == "" {
		errs = append(errs, prefix+": zone.name is required")
	}

	if d.APIToken == "" && !tokenOptional[d.Provider] {
		errs = append(errs, prefix+": api_token or api_token_file is required")
	}

	// The mock provider accepts any host/zone pairing.
	if d.Host != "" && d.Zone.Name != "" && d.Provider != "mock" && !provider.HostInZone(d.Host, d.Zone.Name) {
		errs = append(errs, fmt.Sprintf("%s: host %q is not in zone %q", prefix, d.Host, d.Zone.Name))
	}

	return errs
}

// validateProviderType checks that the provider type is known.
func validateProviderType(typeName string, knownTypes []string) error {
	for _, known := range knownTypes {
		if typeName == known {
			return nil
		}
	}
	return fmt.Errorf("unknown provider type: %q (known types: %s)", typeName, strings.Join(knownTypes, ", "))
}
