// Package pihole implements the dyndns provider interface for Pi-hole v6
// local DNS records (the dns.hosts list).
package pihole

import (
	"fmt"
	"strings"
)

// Config holds Pi-hole-specific configuration.
type Config struct {
	URL string // Pi-hole base URL (e.g., "http://pihole.lan")
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("pihole config validation failed: url is required")
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("pihole config validation failed: url must start with http:// or https://")
	}
	return nil
}

// LoadConfigFromMap creates a Config from provider settings. The only key is url.
// The admin web path is accepted and stripped so "http://pihole.lan/admin" works.
func LoadConfigFromMap(settings map[string]string) (*Config, error) {
	config := &Config{}
	for key, value := range settings {
		if strings.EqualFold(key, "url") {
			config.URL = strings.TrimSpace(value)
		}
	}

	config.URL = strings.TrimSuffix(config.URL, "/")
	config.URL = strings.TrimSuffix(config.URL, "/admin")

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
