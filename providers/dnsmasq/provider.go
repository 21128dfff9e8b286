package dnsmasq

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"

	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// ProviderType is the type tag that selects this provider in configuration.
const ProviderType = "dnsmasq"

// Provider implements provider.Provider for a dnsmasq records file.
// The file is shared by every domain routed here, so the API token is unused.
type Provider struct {
	client *Client
	engine *provider.Engine
	logger *slog.Logger
}

// ProviderOption is a functional option for configuring the Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets a custom logger for the provider.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a new dnsmasq provider instance.
func New(config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	p := &Provider{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	client, err := NewClient(config, WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	p.client = client
	p.engine = provider.NewEngine(provider.WithEngineLogger(p.logger))

	mode := "local"
	if config.IsRemote() {
		mode = "ssh " + config.SSH.Address()
	}
	p.logger.Info("dnsmasq provider initialized",
		slog.String("path", config.ConfigFilePath()),
		slog.String("mode", mode),
		slog.Bool("reload", config.ReloadCommand != ""),
	)

	return p, nil
}

// Type returns "dnsmasq".
func (p *Provider) Type() string {
	return ProviderType
}

// UpdateIP points the address line of domain.Host at ip.
func (p *Provider) UpdateIP(ctx context.Context, domain provider.DomainConfig, ip netip.Addr) (provider.Outcome, error) {
	outcome, err := p.engine.Update(ctx, p.client, domain, ip)
	if err != nil {
		return provider.Unchanged, provider.WrapError(ProviderType, "update", err)
	}
	return outcome, nil
}

// Ping checks that the records file is reachable.
func (p *Provider) Ping(ctx context.Context, _ provider.DomainConfig) error {
	if err := p.client.Ping(ctx); err != nil {
		return provider.WrapError(ProviderType, "ping", err)
	}
	return nil
}
