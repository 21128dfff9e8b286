package technitium

import (
	"log/slog"
	"net/http"

	"gitlab.bluewillows.net/root/dyndns/pkg/httputil"
	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// Factory returns a provider.Factory for creating the Technitium provider.
// This is the recommended way to register the Technitium provider with the registry.
func Factory() provider.Factory {
	return func(cfg provider.FactoryConfig) (provider.Provider, error) {
		providerCfg, err := LoadConfigFromMap(cfg.Settings)
		if err != nil {
			return nil, err
		}

		httpClient := httputil.NewClient(&httputil.ClientConfig{
			Timeout:       cfg.HTTP.Timeout,
			TLSSkipVerify: cfg.HTTP.TLSSkipVerify,
			UserAgent:     cfg.HTTP.UserAgent,
			Logger:        cfg.HTTP.Logger,
		})

		// Self-signed certificates are common on LAN Technitium installs.
		if cfg.HTTP.TLSSkipVerify && cfg.HTTP.Logger != nil {
			cfg.HTTP.Logger.Warn("TLS certificate verification disabled for Technitium provider",
				slog.String("url", providerCfg.URL),
			)
		}

		return NewWithHTTPClient(providerCfg, httpClient, cfg.HTTP.Logger)
	}
}

// NewWithHTTPClient creates a new Technitium provider with a pre-configured HTTP client.
// This allows the factory to pass in a properly configured HTTP client with
// timeout, TLS settings, user-agent, and debug logging already applied.
func NewWithHTTPClient(config *Config, httpClient *http.Client, logger *slog.Logger) (*Provider, error) {
	p, err := New(config, WithProviderLogger(logger))
	if err != nil {
		return nil, err
	}
	p.httpClient = httpClient
	return p, nil
}
