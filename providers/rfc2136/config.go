package rfc2136

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/dyndns/pkg/dnsupdate"
)

// DefaultTTL is used when a listed record carries no TTL.
const DefaultTTL = 300

// Config holds the server-level settings shared by every domain of this provider.
type Config struct {
	// Server is the DNS server address in host[:port] format (required).
	Server string

	// TSIGKeyName names the key the domain's token is the secret of.
	TSIGKeyName string

	// TSIGAlgorithm defaults to hmac-sha256.
	TSIGAlgorithm string

	Timeout time.Duration
	UseTCP  bool
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server == "" {
		errs = append(errs, "server is required")
	}

	if c.Timeout < 0 {
		errs = append(errs, "timeout must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("rfc2136 config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ClientConfig builds the dnsupdate configuration for one zone and secret.
func (c *Config) ClientConfig(zone, secret string) *dnsupdate.Config {
	cfg := &dnsupdate.Config{
		Server:        c.Server,
		Zone:          zone,
		TSIGAlgorithm: c.TSIGAlgorithm,
		Timeout:       c.Timeout,
		UseTCP:        c.UseTCP,
	}
	if secret != "" {
		cfg.TSIGKeyName = c.TSIGKeyName
		cfg.TSIGSecret = secret
	}
	return cfg
}

// LoadConfigFromMap builds a Config from the type-level settings map.
//
// Supported settings:
//   - server: DNS server address (required)
//   - tsig_key_name: TSIG key name
//   - tsig_algorithm: hmac-md5, hmac-sha256 or hmac-sha512
//   - timeout: Go duration or whole seconds
//   - use_tcp: boolean
func LoadConfigFromMap(settings map[string]string) (*Config, error) {
	if settings == nil {
		return nil, errors.New("rfc2136 config validation failed: server is required")
	}

	cfg := &Config{}
	for key, value := range settings {
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "server":
			cfg.Server = value
		case "tsig_key_name":
			cfg.TSIGKeyName = value
		case "tsig_algorithm":
			cfg.TSIGAlgorithm = value
		case "timeout":
			d, err := parseTimeout(value)
			if err != nil {
				return nil, fmt.Errorf("invalid timeout value %q: %w", value, err)
			}
			cfg.Timeout = d
		case "use_tcp":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("invalid use_tcp value %q: %w", value, err)
			}
			cfg.UseTCP = b
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Surface algorithm and key-name problems at load time rather than on the first update.
	if err := cfg.ClientConfig("example.", "").Validate(); err != nil {
		return nil, fmt.Errorf("rfc2136 config validation failed: %w", err)
	}

	return cfg, nil
}

func parseTimeout(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(value)
}
