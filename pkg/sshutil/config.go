package sshutil

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Default SSH client configuration values.
const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultSSHTimeout is the default connection timeout.
	DefaultSSHTimeout = 30 * time.Second
)

// Config holds SSH connection configuration.
type Config struct {
	// Host is the SSH server hostname or IP address (required).
	Host string

	// Port is the SSH server port (default: 22).
	Port int

	// User is the SSH username (required).
	User string

	// KeyFile is the path to the SSH private key file.
	// Either KeyFile, KeyData, or Password must be provided.
	KeyFile string

	// KeyData is the SSH private key content directly.
	KeyData string

	// KeyPassphrase is the passphrase for encrypted SSH keys (optional).
	KeyPassphrase string

	// Password is the SSH password for password authentication.
	Password string

	// KnownHostsFile enables host key verification against an OpenSSH known_hosts file.
	KnownHostsFile string

	// Timeout bounds the dial and handshake (default: 30s).
	Timeout time.Duration
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Host == "" {
		errs = append(errs, "host is required")
	}

	if c.User == "" {
		errs = append(errs, "user is required")
	}

	if c.KeyFile == "" && c.KeyData == "" && c.Password == "" {
		errs = append(errs, "at least one authentication method required (key_file, key_data, or password)")
	}

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 0 and 65535")
	}

	if c.Timeout < 0 {
		errs = append(errs, "timeout must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("ssh config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Address returns the SSH server address in host:port format.
func (c *Config) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// GetTimeout returns the configured timeout or the default.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultSSHTimeout
}

// LoadConfigFromMap creates a Config from lowercase settings keys:
// host, port, user, key_file, key_data, key_passphrase, password,
// known_hosts and timeout (seconds or a Go duration).
func LoadConfigFromMap(settings map[string]string) (*Config, error) {
	if settings == nil {
		return nil, errors.New("ssh config validation failed: host is required")
	}

	config := &Config{}
	for key, value := range settings {
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "host":
			config.Host = value
		case "user":
			config.User = value
		case "key_file":
			config.KeyFile = value
		case "key_data":
			config.KeyData = value
		case "key_passphrase":
			config.KeyPassphrase = value
		case "password":
			config.Password = value
		case "known_hosts":
			config.KnownHostsFile = value
		case "port":
			port, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid port value %q: %w", value, err)
			}
			config.Port = port
		case "timeout":
			d, err := parseTimeout(value)
			if err != nil {
				return nil, fmt.Errorf("invalid timeout value %q: %w", value, err)
			}
			config.Timeout = d
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func parseTimeout(value string) (time.Duration, error) {
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}
