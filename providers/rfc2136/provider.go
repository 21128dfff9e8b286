package rfc2136

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"gitlab.bluewillows.net/root/dyndns/internal/metrics"
	"gitlab.bluewillows.net/root/dyndns/pkg/dnsupdate"
	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// ProviderType is the type tag that selects this provider in configuration.
const ProviderType = "rfc2136"

// Provider implements provider.Provider for RFC 2136 Dynamic DNS servers.
type Provider struct {
	config *Config
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

// New creates a new RFC 2136 provider instance.
func New(config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		config: config,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.engine = provider.NewEngine(provider.WithEngineLogger(p.logger))

	return p, nil
}

// Type returns "rfc2136".
func (p *Provider) Type() string {
	return ProviderType
}

// client builds a dnsupdate client for the domain's zone, signed with its token.
func (p *Provider) client(domain provider.DomainConfig) (*dnsupdate.Client, error) {
	client, err := dnsupdate.NewClient(
		p.config.ClientConfig(domain.Zone.Name, domain.APIToken),
		dnsupdate.WithLogger(p.logger),
	)
	if err != nil {
		// The only per-domain input is the secret.
		return nil, fmt.Errorf("%w: %w: %v", provider.ErrTransport, provider.ErrUnauthorized, err)
	}
	return client, nil
}

// UpdateIP points the A/AAAA record of domain.Host at ip.
func (p *Provider) UpdateIP(ctx context.Context, domain provider.DomainConfig, ip netip.Addr) (provider.Outcome, error) {
	client, err := p.client(domain)
	if err != nil {
		return provider.Unchanged, provider.WrapError(ProviderType, "update", err)
	}

	outcome, err := p.engine.Update(ctx, zoneClient{client: client}, domain, ip)
	if err != nil {
		return provider.Unchanged, provider.WrapError(ProviderType, "update", err)
	}
	return outcome, nil
}

// Ping queries the zone's SOA record with the domain's key.
func (p *Provider) Ping(ctx context.Context, domain provider.DomainConfig) (err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "ping", start, err) }(time.Now())

	client, err := p.client(domain)
	if err != nil {
		return provider.WrapError(ProviderType, "ping", err)
	}
	if err := client.Ping(ctx); err != nil {
		return provider.WrapError(ProviderType, "ping", mapError(err, false))
	}
	return nil
}

// zoneClient adapts dnsupdate.Client to provider.RecordClient.
type zoneClient struct {
	client *dnsupdate.Client
}

func (z zoneClient) ListRecords(ctx context.Context, zone provider.Zone) (records []provider.Record, err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "list_records", start, err) }(time.Now())

	rrs, err := z.client.ListByAXFR(ctx)
	if err != nil {
		return nil, mapError(err, false)
	}

	records = make([]provider.Record, 0, len(rrs))
	for _, rr := range rrs {
		records = append(records, toRecord(rr, zone.Name))
	}
	return records, nil
}

func (z zoneClient) UpdateRecord(ctx context.Context, record provider.Record) (updated provider.Record, err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "update_record", start, err) }(time.Now())

	fqdn, recordType, oldValue, err := provider.ParseCompositeRecordID(record.ID)
	if err != nil {
		return provider.Record{}, fmt.Errorf("%w: %v", provider.ErrUpdateRejected, err)
	}

	rrtype, err := dnsupdate.StringToType(string(recordType))
	if err != nil {
		return provider.Record{}, fmt.Errorf("%w: %v", provider.ErrUpdateRejected, err)
	}

	ttl := uint32(DefaultTTL)
	if record.TTL != nil {
		ttl = *record.TTL
	}

	oldRR := dnsupdate.Record{Name: fqdn, Type: rrtype, TTL: ttl, RData: oldValue}
	newRR := dnsupdate.Record{Name: fqdn, Type: rrtype, TTL: ttl, RData: record.Value}

	if err := z.client.Replace(ctx, oldRR, newRR); err != nil {
		return provider.Record{}, mapError(err, true)
	}

	updated = record
	updated.ID = provider.CompositeRecordID(fqdn, recordType, record.Value)
	return updated, nil
}

// mapError translates dnsupdate errors into provider sentinels.
func mapError(err error, write bool) error {
	switch {
	case errors.Is(err, dnsupdate.ErrAuthenticationFailed):
		if write {
			return fmt.Errorf("%w: %w: %v", provider.ErrUpdateRejected, provider.ErrUnauthorized, err)
		}
		return fmt.Errorf("%w: %w: %v", provider.ErrTransport, provider.ErrUnauthorized, err)
	case write && (errors.Is(err, dnsupdate.ErrUpdateFailed) || errors.Is(err, dnsupdate.ErrZoneMismatch)):
		return fmt.Errorf("%w: %v", provider.ErrUpdateRejected, err)
	default:
		return fmt.Errorf("%w: %v", provider.ErrTransport, err)
	}
}

func toRecord(rr dnsupdate.Record, zone string) provider.Record {
	recordType := provider.RecordType(rr.TypeString())

	name := rr.Name
	if label, err := provider.RecordLabel(rr.Name, zone); err == nil {
		name = label
	}

	ttl := rr.TTL
	return provider.Record{
		Type:   recordType,
		ID:     provider.CompositeRecordID(rr.Name, recordType, rr.RData),
		ZoneID: zone,
		Name:   name,
		Value:  rr.RData,
		TTL:    &ttl,
	}
}
