package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"

	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// ProviderType is the type tag that selects this provider in configuration.
const ProviderType = "webhook"

// Provider implements provider.Provider for a webhook endpoint.
type Provider struct {
	url        string
	authHeader string
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

// WithProviderHTTPClient sets the HTTP client shared by all per-token clients.
func WithProviderHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// New creates a new webhook provider instance.
func New(config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		url:        config.URL,
		authHeader: config.AuthHeader,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.engine = provider.NewEngine(provider.WithEngineLogger(p.logger))

	return p, nil
}

// Type returns "webhook".
func (p *Provider) Type() string {
	return ProviderType
}

// Client returns a webhook client sending token.
func (p *Provider) Client(token string) *Client {
	return NewClient(p.url, token,
		WithAuthHeader(p.authHeader),
		WithHTTPClient(p.httpClient),
		WithLogger(p.logger),
	)
}

// UpdateIP points the A/AAAA record of domain.Host at ip.
func (p *Provider) UpdateIP(ctx context.Context, domain provider.DomainConfig, ip netip.Addr) (provider.Outcome, error) {
	outcome, err := p.engine.Update(ctx, p.Client(domain.APIToken), domain, ip)
	if err != nil {
		return provider.Unchanged, provider.WrapError(ProviderType, "update", err)
	}
	return outcome, nil
}

// Ping checks that the endpoint accepts the domain's token.
func (p *Provider) Ping(ctx context.Context, domain provider.DomainConfig) error {
	if err := p.Client(domain.APIToken).Ping(ctx); err != nil {
		return provider.WrapError(ProviderType, "ping", err)
	}
	return nil
}
