// Package provider defines the interface that all DNS providers must implement
// and the backend-independent logic that decides whether a record needs a write.
package provider

import (
	"context"
	"net/netip"
)

// RecordType represents the type of DNS record.
type RecordType string

const (
	RecordTypeA     RecordType = "A"
	RecordTypeAAAA  RecordType = "AAAA"
	RecordTypeNS    RecordType = "NS"
	RecordTypeMX    RecordType = "MX"
	RecordTypeCNAME RecordType = "CNAME"
	RecordTypeRP    RecordType = "RP"
	RecordTypeTXT   RecordType = "TXT"
	RecordTypeSOA   RecordType = "SOA"
	RecordTypeHINFO RecordType = "HINFO"
	RecordTypeSRV   RecordType = "SRV"
	RecordTypeDANE  RecordType = "DANE"
	RecordTypeTLSA  RecordType = "TLSA"
	RecordTypeDS    RecordType = "DS"
	RecordTypeCAA   RecordType = "CAA"
)

// ApexLabel is the record name used for the zone apex.
const ApexLabel = "@"

// Zone identifies a provider-side DNS zone.
type Zone struct {
	ID   string
	Name string
}

// DomainConfig binds a host to the provider account and zone that serve it.
type DomainConfig struct {
	Provider string // provider type, e.g. "hetzner"
	APIToken string
	Host     string
	Zone     Zone
}

// Record is a DNS record as seen by a provider.
type Record struct {
	Type   RecordType
	ID     string // Provider-specific record identifier
	ZoneID string
	Name   string // Label relative to the zone, or "@" for the apex
	Value  string
	TTL    *uint32
}

// Outcome reports whether an update wrote to the provider.
type Outcome int

const (
	// Unchanged means the record already held the requested value.
	Unchanged Outcome = iota
	// Changed means the record was rewritten.
	Changed
)

func (o Outcome) String() string {
	if o == Changed {
		return "changed"
	}
	return "unchanged"
}

// Provider defines the capability the rest of the service programs against.
// Each backend (Hetzner, Cloudflare, ...) implements it once and is selected
// by DomainConfig.Provider.
type Provider interface {
	// Type returns the provider type (e.g., "hetzner", "mock").
	Type() string

	// UpdateIP points the A or AAAA record of domain.Host at ip.
	// It writes at most once and only when the stored value differs.
	UpdateIP(ctx context.Context, domain DomainConfig, ip netip.Addr) (Outcome, error)

	// Ping checks that the backend is reachable with the domain's credentials.
	Ping(ctx context.Context, domain DomainConfig) error
}

// RecordClient is the low-level access an adapter gives the Engine.
type RecordClient interface {
	// ListRecords returns every record in zone.
	ListRecords(ctx context.Context, zone Zone) ([]Record, error)

	// UpdateRecord replaces the record identified by record.ID.
	UpdateRecord(ctx context.Context, record Record) (Record, error)
}

// RecordTypeFor returns A for IPv4 (including IPv4-mapped IPv6) and AAAA otherwise.
func RecordTypeFor(ip netip.Addr) RecordType {
	if ip.Unmap().Is4() {
		return RecordTypeA
	}
	return RecordTypeAAAA
}
