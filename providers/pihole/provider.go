package pihole

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// ProviderType is the type tag that selects this provider in configuration.
const ProviderType = "pihole"

// logoutTimeout bounds the session cleanup after an operation.
const logoutTimeout = 5 * time.Second

// Provider implements provider.Provider for Pi-hole v6.
// The domain's API token is the Pi-hole password or app password.
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

// WithProviderHTTPClient sets a custom HTTP client for the provider.
func WithProviderHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// New creates a new Pi-hole provider instance.
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

// Type returns "pihole".
func (p *Provider) Type() string {
	return ProviderType
}

// Client returns an API client for password. The caller must Logout.
func (p *Provider) Client(password string) *Client {
	return NewClient(p.url, password, WithHTTPClient(p.httpClient), WithLogger(p.logger))
}

// UpdateIP points the dns.hosts entry of domain.Host at ip.
func (p *Provider) UpdateIP(ctx context.Context, domain provider.DomainConfig, ip netip.Addr) (provider.Outcome, error) {
	client := p.Client(domain.APIToken)
	defer p.logout(ctx, client)

	outcome, err := p.engine.Update(ctx, client, domain, ip)
	if err != nil {
		return provider.Unchanged, provider.WrapError(ProviderType, "update", err)
	}
	return outcome, nil
}

// Ping checks that the domain's password is accepted.
func (p *Provider) Ping(ctx context.Context, domain provider.DomainConfig) error {
	client := p.Client(domain.APIToken)
	defer p.logout(ctx, client)

	if err := client.Ping(ctx); err != nil {
		return provider.WrapError(ProviderType, "ping", err)
	}
	return nil
}

// logout runs even when ctx has expired so sessions are not leaked.
func (p *Provider) logout(ctx context.Context, client *Client) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
	defer cancel()
	client.Logout(ctx)
}
