package dnsupdate

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Default configuration values.
const (
	// DefaultPort is the standard DNS port.
	DefaultPort = 53

	// DefaultTimeout is the default timeout for DNS operations.
	DefaultTimeout = 10 * time.Second

	// DefaultTSIGAlgorithm is the default TSIG algorithm if none specified.
	DefaultTSIGAlgorithm = dns.HmacSHA256
)

// Config holds RFC 2136 client configuration for one zone.
type Config struct {
	// Server is the DNS server address in host[:port] format (required).
	Server string

	// Zone is the DNS zone to transfer and update (required).
	Zone string

	// TSIGKeyName and TSIGSecret sign every message when both are set.
	TSIGKeyName string
	TSIGSecret  string

	// TSIGAlgorithm is one of hmac-md5, hmac-sha256, hmac-sha512 (default hmac-sha256).
	TSIGAlgorithm string

	// Timeout bounds each DNS exchange (default 10s).
	Timeout time.Duration

	// UseTCP forces TCP for queries and updates. Transfers always use TCP.
	UseTCP bool
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server == "" {
		errs = append(errs, "server is required")
	}

	if c.Zone == "" {
		errs = append(errs, "zone is required")
	} else if _, ok := dns.IsDomainName(c.Zone); !ok {
		errs = append(errs, fmt.Sprintf("zone %q is not a valid domain name", c.Zone))
	}

	if c.TSIGSecret != "" && c.TSIGKeyName == "" {
		errs = append(errs, "tsig_key_name is required when a TSIG secret is set")
	}

	if c.TSIGAlgorithm != "" && !isValidAlgorithm(normalizeAlgorithm(c.TSIGAlgorithm)) {
		errs = append(errs, fmt.Sprintf("unsupported tsig_algorithm: %s (supported: hmac-md5, hmac-sha256, hmac-sha512)", c.TSIGAlgorithm))
	}

	if c.Timeout < 0 {
		errs = append(errs, "timeout must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("dnsupdate config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ServerAddr returns the server address with port, defaulting to 53.
func (c *Config) ServerAddr() string {
	if c.Server == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(c.Server); err == nil {
		return c.Server
	}
	return net.JoinHostPort(strings.Trim(c.Server, "[]"), strconv.Itoa(DefaultPort))
}

// GetTimeout returns the configured timeout or the default.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// HasTSIG returns true if TSIG authentication is configured.
func (c *Config) HasTSIG() bool {
	return c.TSIGKeyName != "" && c.TSIGSecret != ""
}
