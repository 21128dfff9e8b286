package cloudflare

import (
	"fmt"
	"net/url"
	"strings"
)

// Config holds Cloudflare-specific settings from the providers section.
type Config struct {
	Endpoint string // API base URL (defaults to DefaultAPIEndpoint)
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("cloudflare config validation failed: endpoint %q must be an http(s) URL", c.Endpoint)
	}
	return nil
}

// LoadConfigFromMap builds a Config from the type-level settings map.
//
// Supported settings:
//   - endpoint: API base URL (optional, defaults to the public v4 API)
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
