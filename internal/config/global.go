package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Global configuration defaults.
const (
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "json"
	DefaultListen               = ":8000"
	DefaultHealthPort           = 8080
	DefaultRequestTimeout       = 15 * time.Second
	DefaultMaxConcurrentUpdates = 16
)

// GlobalConfig holds application-wide settings.
type GlobalConfig struct {
	// Logging configuration
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	Listen               string        // address of the /update listener
	HealthPort           int           // port for health/metrics endpoints, 0 disables
	RequestTimeout       time.Duration // bound on one provider update
	MaxConcurrentUpdates int           // provider calls in flight across all requests
}

// ToGlobalConfig converts the file's global sections, applying defaults.
func (c *FileConfig) ToGlobalConfig() (*GlobalConfig, []string) {
	var errs []string

	cfg := &GlobalConfig{
		LogLevel:             DefaultLogLevel,
		LogFormat:            DefaultLogFormat,
		Listen:               DefaultListen,
		HealthPort:           DefaultHealthPort,
		RequestTimeout:       DefaultRequestTimeout,
		MaxConcurrentUpdates: DefaultMaxConcurrentUpdates,
	}

	if c.Logging != nil {
		if c.Logging.Level != "" {
			cfg.LogLevel = strings.ToLower(c.Logging.Level)
		}
		if c.Logging.Format != "" {
			cfg.LogFormat = strings.ToLower(c.Logging.Format)
		}
	}

	if c.Server != nil {
		if c.Server.Listen != "" {
			cfg.Listen = c.Server.Listen
		}
		if c.Server.HealthPort != nil {
			cfg.HealthPort = *c.Server.HealthPort
		}
		if c.Server.RequestTimeout != "" {
			d, err := time.ParseDuration(c.Server.RequestTimeout)
			if err != nil {
				errs = append(errs, fmt.Sprintf("server.request_timeout: invalid duration %q (use format like 15s)", c.Server.RequestTimeout))
			} else {
				cfg.RequestTimeout = d
			}
		}
		if c.Server.MaxConcurrentUpdates != 0 {
			cfg.MaxConcurrentUpdates = c.Server.MaxConcurrentUpdates
		}
	}

	return cfg, errs
}

// applyEnvOverrides merges DYNDNS_* environment variables into cfg.
// Environment variables always take precedence over file config.
func applyEnvOverrides(cfg *GlobalConfig) []string {
	var errs []string

	if v := getEnv("DYNDNS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if v := getEnv("DYNDNS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	if v := getEnv("DYNDNS_LISTEN"); v != "" {
		cfg.Listen = v
	}

	if v := getEnv("DYNDNS_HEALTH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("DYNDNS_HEALTH_PORT: invalid integer %q", v))
		} else {
			cfg.HealthPort = port
		}
	}

	if v := getEnv("DYNDNS_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("DYNDNS_REQUEST_TIMEOUT: invalid duration %q (use format like 15s)", v))
		} else {
			cfg.RequestTimeout = d
		}
	}

	if v := getEnv("DYNDNS_MAX_CONCURRENT_UPDATES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("DYNDNS_MAX_CONCURRENT_UPDATES: invalid integer %q", v))
		} else {
			cfg.MaxConcurrentUpdates = n
		}
	}

	return errs
}
