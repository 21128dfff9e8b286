package technitium

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"

	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// ProviderType is the type tag that selects this provider in configuration.
const ProviderType = "technitium"

// Provider implements provider.Provider for Technitium DNS Server.
type Provider struct {
	url        string
	httpClient *http.Client
	engine     *provider.Engine
	logger     *slog.Logger
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

// New creates a new Technitium provider instance.
func New(config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		url:    config.URL,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.engine = provider.NewEngine(provider.WithEngineLogger(p.logger))

	return p, nil
}

// Type returns "technitium".
func (p *Provider) Type() string {
	return ProviderType
}

// Client returns an API client authenticated with token.
func (p *Provider) Client(token string) *Client {
	return NewClient(p.url, token, WithHTTPClient(p.httpClient), WithLogger(p.logger))
}

// UpdateIP points the A/AAAA record of domain.Host at ip.
func (p *Provider) UpdateIP(ctx context.Context, domain provider.DomainConfig, ip netip.Addr) (provider.Outcome, error) {
	outcome, err := p.engine.Update(ctx, zoneClient{client: p.Client(domain.APIToken)}, domain, ip)
	if err != nil {
		return provider.Unchanged, provider.WrapError(ProviderType, "update", err)
	}
	return outcome, nil
}

// Ping checks connectivity to the Technitium server with the domain's token.
func (p *Provider) Ping(ctx context.Context, domain provider.DomainConfig) error {
	if err := p.Client(domain.APIToken).Ping(ctx); err != nil {
		return provider.WrapError(ProviderType, "ping", err)
	}
	return nil
}
