package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
)

// Engine finds the record a domain points at and rewrites it only when the
// value differs from the requested address. It holds no state between calls:
// the zone is listed fresh every time.
type Engine struct {
	logger *slog.Logger
}

// EngineOption is a functional option for configuring the Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets a custom logger for the engine.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a new Engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Update points the A/AAAA record for domain.Host at ip using client.
//
// It performs one ListRecords call and at most one UpdateRecord call. A missing
// record is reported as ErrRecordNotFound; records are never created.
func (e *Engine) Update(ctx context.Context, client RecordClient, domain DomainConfig, ip netip.Addr) (Outcome, error) {
	if !ip.IsValid() {
		return Unchanged, ErrInvalidIP
	}
	ip = ip.Unmap()

	recordType := RecordTypeFor(ip)

	label, err := RecordLabel(domain.Host, domain.Zone.Name)
	if err != nil {
		return Unchanged, err
	}

	e.logger.Info("updating record",
		slog.String("host", domain.Host),
		slog.String("type", string(recordType)),
		slog.String("zone", domain.Zone.Name),
		slog.String("zone_id", domain.Zone.ID),
	)

	records, err := client.ListRecords(ctx, domain.Zone)
	if err != nil {
		return Unchanged, fmt.Errorf("listing records: %w", err)
	}

	record, ok := findRecord(records, label, recordType)
	if !ok {
		return Unchanged, fmt.Errorf("%w: no %s record named %q in zone %s",
			ErrRecordNotFound, recordType, label, domain.Zone.Name)
	}

	if sameAddress(record.Value, ip) {
		e.logger.Info("record does not need to be updated",
			slog.String("name", label),
			slog.String("type", string(recordType)),
			slog.String("zone", domain.Zone.Name),
			slog.String("value", record.Value),
		)
		return Unchanged, nil
	}

	updated := record
	updated.Value = ip.String()

	result, err := client.UpdateRecord(ctx, updated)
	if err != nil {
		return Unchanged, fmt.Errorf("updating record %s: %w", record.ID, err)
	}

	e.logger.Info("record updated",
		slog.String("name", label),
		slog.String("type", string(recordType)),
		slog.String("zone", domain.Zone.Name),
		slog.String("record_id", result.ID),
		slog.String("old_value", record.Value),
		slog.String("new_value", result.Value),
	)

	return Changed, nil
}

// findRecord returns the first record matching label and type.
func findRecord(records []Record, label string, recordType RecordType) (Record, bool) {
	for _, r := range records {
		if r.Type == recordType && strings.EqualFold(r.Name, label) {
			return r, true
		}
	}
	return Record{}, false
}

// sameAddress compares a stored record value with ip. Values that parse as
// addresses are compared as addresses so "2001:0db8::1" equals "2001:db8::1".
func sameAddress(value string, ip netip.Addr) bool {
	if stored, err := netip.ParseAddr(strings.TrimSpace(value)); err == nil {
		return stored.Unmap() == ip
	}
	return value == ip.String()
}
