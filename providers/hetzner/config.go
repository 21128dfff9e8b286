package hetzner

import (
	"fmt"
	"net/url"
	"strings"
)

// Config holds Hetzner-specific settings from the providers section.
// HTTP settings (timeout, tls_skip_verify, user_agent) arrive through provider.HTTPConfig.
type Config struct {
	Endpoint string // API base URL (defaults to DefaultAPIEndpoint)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("hetzner config validation failed: endpoint %q must be an http(s) URL", c.Endpoint)
	}
	return nil
}

// LoadConfigFromMap builds a Config from the type-level settings map.
// Keys are matched case-insensitively.
func LoadConfigFromMap(settings map[string]string) (*Config, error) {
	cfg := &Config{Endpoint: DefaultAPIEndpoint}

	for key, value := range settings {
		if strings.EqualFold(key, "endpoint") && strings.TrimSpace(value) != "" {
			cfg.Endpoint = strings.TrimSuffix(strings.TrimSpace(value), "/")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
