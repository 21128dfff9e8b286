// Package dnsmasq updates address= lines in a dnsmasq configuration file,
// either on the local host or on a remote host over SSH.
package dnsmasq

import (
	"fmt"
	"path"
	"strings"

	"gitlab.bluewillows.net/root/dyndns/pkg/sshutil"
)

// DefaultConfigDir is the default directory for dnsmasq configuration files.
const DefaultConfigDir = "/etc/dnsmasq.d"

// DefaultConfigFile is the default filename holding the dynamic records.
const DefaultConfigFile = "dyndns.conf"

// DefaultReloadCommand is the default command to reload dnsmasq configuration.
const DefaultReloadCommand = "systemctl reload dnsmasq"

// noReload disables the reload step when given as reload_command.
const noReload = "none"

// sshPrefix marks settings that belong to the SSH transport.
const sshPrefix = "ssh_"

// Config holds dnsmasq-specific configuration.
type Config struct {
	ConfigDir     string // Directory holding the records file
	ConfigFile    string // Records filename inside ConfigDir
	ReloadCommand string // Shell command run after a write; empty skips it

	// SSH selects remote mode when non-nil.
	SSH *sshutil.Config
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.ConfigDir == "" {
		errs = append(errs, "config_dir is required")
	} else if !path.IsAbs(c.ConfigDir) {
		errs = append(errs, "config_dir must be an absolute path")
	}
	if c.ConfigFile == "" {
		errs = append(errs, "config_file is required")
	} else if strings.Contains(c.ConfigFile, "/") {
		errs = append(errs, "config_file must be a bare filename")
	}
	if c.SSH != nil {
		if err := c.SSH.Validate(); err != nil {
			errs = append(errs, "ssh: "+err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("dnsmasq config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsRemote reports whether the records file lives on an SSH host.
func (c *Config) IsRemote() bool {
	return c.SSH != nil
}

// ConfigFilePath returns the full path to the records file.
// Paths are slash-separated since the file may live on a remote POSIX host.
func (c *Config) ConfigFilePath() string {
	return path.Join(c.ConfigDir, c.ConfigFile)
}

// LoadConfigFromMap creates a Config from provider settings.
//
// Keys are matched case-insensitively:
//   - config_dir (default /etc/dnsmasq.d)
//   - config_file (default dyndns.conf)
//   - reload_command (default "systemctl reload dnsmasq", "none" disables it)
//   - ssh_host, ssh_port, ssh_user, ssh_key_file, ssh_key_data,
//     ssh_key_passphrase, ssh_password, ssh_known_hosts, ssh_timeout
//
// Any ssh_ key switches the provider to remote mode.
func LoadConfigFromMap(settings map[string]string) (*Config, error) {
	lower := make(map[string]string, len(settings))
	for k, v := range settings {
		lower[strings.ToLower(k)] = v
	}

	config := &Config{
		ConfigDir:     getWithDefault(lower, "config_dir", DefaultConfigDir),
		ConfigFile:    getWithDefault(lower, "config_file", DefaultConfigFile),
		ReloadCommand: getWithDefault(lower, "reload_command", DefaultReloadCommand),
	}
	if strings.EqualFold(config.ReloadCommand, noReload) {
		config.ReloadCommand = ""
	}

	sshSettings := make(map[string]string)
	for k, v := range lower {
		if strings.HasPrefix(k, sshPrefix) {
			sshSettings[strings.TrimPrefix(k, sshPrefix)] = v
		}
	}
	if len(sshSettings) > 0 {
		sshConfig, err := sshutil.LoadConfigFromMap(sshSettings)
		if err != nil {
			return nil, fmt.Errorf("ssh: %w", err)
		}
		config.SSH = sshConfig
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func getWithDefault(m map[string]string, key, defaultValue string) string {
	if value := strings.TrimSpace(m[key]); value != "" {
		return value
	}
	return defaultValue
}
