package webhook

import (
	"fmt"
	"net/http"
	"strings"
)

// DefaultAuthHeader carries the domain's API token as a bearer credential.
const DefaultAuthHeader = "Authorization"

// Config holds webhook-specific configuration.
type Config struct {
	URL        string // Base URL for the webhook endpoint (required)
	AuthHeader string // Header carrying the domain token (default: Authorization)
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.URL == "" {
		errs = append(errs, "url is required")
	} else if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		errs = append(errs, "url must start with http:// or https://")
	}

	if strings.ContainsAny(c.AuthHeader, " :\r\n") {
		errs = append(errs, "auth_header must be a bare header name")
	}

	if len(errs) > 0 {
		return fmt.Errorf("webhook config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// LoadConfigFromMap creates a Config from provider settings.
// Keys: url (required), auth_header (optional).
func LoadConfigFromMap(settings map[string]string) (*Config, error) {
	if settings == nil {
		return nil, fmt.Errorf("webhook config validation failed: url is required")
	}

	config := &Config{AuthHeader: DefaultAuthHeader}
	for key, value := range settings {
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "url":
			config.URL = strings.TrimSuffix(value, "/")
		case "auth_header":
			if value != "" {
				config.AuthHeader = http.CanonicalHeaderKey(value)
			}
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
