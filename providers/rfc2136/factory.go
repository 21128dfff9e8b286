package rfc2136

import (
	"log/slog"

	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// Factory returns a provider.Factory for creating the RFC 2136 provider.
func Factory() provider.Factory {
	return func(cfg provider.FactoryConfig) (provider.Provider, error) {
		providerCfg, err := LoadConfigFromMap(cfg.Settings)
		if err != nil {
			return nil, err
		}

		if providerCfg.Timeout == 0 {
			providerCfg.Timeout = cfg.HTTP.Timeout
		}

		logger := cfg.HTTP.Logger
		if logger == nil {
			logger = slog.Default()
		}

		logger.Info("RFC 2136 provider created",
			slog.String("server", providerCfg.Server),
			slog.Bool("tsig", providerCfg.TSIGKeyName != ""),
			slog.Bool("tcp", providerCfg.UseTCP),
		)

		return New(providerCfg, WithProviderLogger(logger))
	}
}
