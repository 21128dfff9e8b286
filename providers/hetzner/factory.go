package hetzner

import (
	"log/slog"

	"gitlab.bluewillows.net/root/dyndns/pkg/httputil"
	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// Factory returns a provider.Factory for creating the Hetzner provider.
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

		if cfg.HTTP.TLSSkipVerify && cfg.HTTP.Logger != nil {
			cfg.HTTP.Logger.Warn("TLS certificate verification disabled for Hetzner provider",
				slog.String("endpoint", providerCfg.Endpoint),
			)
		}

		return New(providerCfg,
			WithProviderHTTPClient(httpClient),
			WithProviderLogger(cfg.HTTP.Logger),
		)
	}
}
