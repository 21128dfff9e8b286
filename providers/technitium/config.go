package technitium

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Config holds Technitium-specific settings from the providers section.
type Config struct {
	URL string // Technitium API URL (e.g., http://dns:5380)
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.URL == "" {
		errs = append(errs, "url is required")
	} else if u, err := url.Parse(c.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Sprintf("url %q must be an http(s) URL", c.URL))
	}

	if len(errs) > 0 {
		return fmt.Errorf("technitium config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// LoadConfigFromMap builds a Config from the type-level settings map.
//
// Supported settings:
//   - url: Technitium API URL (required)
func LoadConfigFromMap(settings map[string]string) (*Config, error) {
	if settings == nil {
		return nil, errors.New("technitium config validation failed: url is required")
	}

	cfg := &Config{}
	for key, value := range settings {
		if strings.EqualFold(key, "url") {
			cfg.URL = strings.TrimSuffix(strings.TrimSpace(value), "/")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
