// Package mock provides a scripted provider for tests and dry runs.
//
// Outcomes are queued with Script or ScriptError and consumed in order. When the
// queue is empty the provider returns its default outcome (Unchanged unless
// changed with WithDefault). Every call is recorded.
package mock

import (
	"context"
	"log/slog"
	"net/netip"
	"sync"

	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// ProviderType is the type tag that selects this provider in configuration.
const ProviderType = "mock"

// Call is one recorded UpdateIP invocation.
type Call struct {
	Domain provider.DomainConfig
	IP     netip.Addr
}

type step struct {
	outcome provider.Outcome
	err     error
}

// Provider is a provider.Provider that never talks to a backend.
type Provider struct {
	mu             sync.Mutex
	script         []step
	defaultOutcome provider.Outcome
	pingErr        error
	calls          []Call
	pings          int
	logger         *slog.Logger
}

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithDefault sets the outcome returned once the script is exhausted.
func WithDefault(outcome provider.Outcome) Option {
	return func(p *Provider) {
		p.defaultOutcome = outcome
	}
}

// New creates a mock provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		defaultOutcome: provider.Unchanged,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Factory returns a provider.Factory that creates a fresh mock provider.
// The setting "default" may be "changed" to make Changed the default outcome.
func Factory() provider.Factory {
	return func(cfg provider.FactoryConfig) (provider.Provider, error) {
		opts := []Option{WithLogger(cfg.HTTP.Logger)}
		if cfg.Settings["default"] == provider.Changed.String() {
			opts = append(opts, WithDefault(provider.Changed))
		}
		return New(opts...), nil
	}
}

// Script queues outcomes to be returned by subsequent UpdateIP calls.
func (p *Provider) Script(outcomes ...provider.Outcome) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, o := range outcomes {
		p.script = append(p.script, step{outcome: o})
	}
	return p
}

// ScriptError queues a failure behind any results already scripted.
func (p *Provider) ScriptError(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, step{outcome: provider.Unchanged, err: err})
	return p
}

// SetPingError sets the error returned by Ping.
func (p *Provider) SetPingError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pingErr = err
}

// Type returns "mock".
func (p *Provider) Type() string {
	return ProviderType
}

// UpdateIP records the call and returns the next scripted result.
func (p *Provider) UpdateIP(ctx context.Context, domain provider.DomainConfig, ip netip.Addr) (provider.Outcome, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Domain: domain, IP: ip})

	next := step{outcome: p.defaultOutcome}
	if len(p.script) > 0 {
		next = p.script[0]
		p.script = p.script[1:]
	}
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return provider.Unchanged, provider.WrapError(ProviderType, "update", provider.TransportError("%v", err))
	}

	p.logger.Debug("mock update",
		slog.String("host", domain.Host),
		slog.String("ip", ip.String()),
		slog.String("outcome", next.outcome.String()),
	)

	if next.err != nil {
		return provider.Unchanged, provider.WrapError(ProviderType, "update", next.err)
	}
	return next.outcome, nil
}

// Ping returns the configured ping error.
func (p *Provider) Ping(ctx context.Context, _ provider.DomainConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pings++
	if p.pingErr != nil {
		return provider.WrapError(ProviderType, "ping", p.pingErr)
	}
	return ctx.Err()
}

// Calls returns a copy of all recorded UpdateIP calls.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns the number of UpdateIP calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// PingCount returns the number of Ping calls.
func (p *Provider) PingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pings
}

// Reset clears the script and the recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = nil
	p.calls = nil
	p.pings = 0
	p.pingErr = nil
}
