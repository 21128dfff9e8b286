package dnsmasq

import (
	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// Factory returns a provider.Factory for creating dnsmasq provider instances.
//
// dnsmasq is file-based, so only the logger from the HTTP configuration is used.
func Factory() provider.Factory {
	return func(cfg provider.FactoryConfig) (provider.Provider, error) {
		config, err := LoadConfigFromMap(cfg.Settings)
		if err != nil {
			return nil, err
		}
		return New(config, WithProviderLogger(cfg.HTTP.Logger))
	}
}
