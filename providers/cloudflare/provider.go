package cloudflare

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"

	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// ProviderType is the type tag that selects this provider in configuration.
const ProviderType = "cloudflare"

// Provider implements provider.Provider for Cloudflare DNS.
type Provider struct {
	endpoint   string
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

// WithProviderHTTPClient sets the HTTP client shared by all per-call API clients.
func WithProviderHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// New creates a new Cloudflare provider instance.
func New(config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		endpoint: config.Endpoint,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.engine = provider.NewEngine(provider.WithEngineLogger(p.logger))

	return p, nil
}

// Type returns "cloudflare".
func (p *Provider) Type() string {
	return ProviderType
}

// Client returns an API client authenticated with token.
func (p *Provider) Client(token string) *Client {
	return NewClient(token,
		WithAPIEndpoint(p.endpoint),
		WithHTTPClient(p.httpClient),
		WithLogger(p.logger),
	)
}

// UpdateIP points the A/AAAA record of domain.Host at ip.
// A domain configured without a zone ID has it looked up by zone name first.
func (p *Provider) UpdateIP(ctx context.Context, domain provider.DomainConfig, ip netip.Addr) (provider.Outcome, error) {
	client := p.Client(domain.APIToken)

	if domain.Zone.ID == "" {
		id, err := client.GetZoneID(ctx, domain.Zone.Name)
		if err != nil {
			return provider.Unchanged, provider.WrapError(ProviderType, "update", err)
		}
		domain.Zone.ID = id
	}

	outcome, err := p.engine.Update(ctx, client, domain, ip)
	if err != nil {
		return provider.Unchanged, provider.WrapError(ProviderType, "update", err)
	}
	return outcome, nil
}

// Ping verifies the domain's API token.
func (p *Provider) Ping(ctx context.Context, domain provider.DomainConfig) error {
	if err := p.Client(domain.APIToken).Ping(ctx); err != nil {
		return provider.WrapError(ProviderType, "ping", err)
	}
	return nil
}
