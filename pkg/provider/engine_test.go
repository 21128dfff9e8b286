package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"strings"
	"testing"
)

// fakeRecordClient is an in-memory RecordClient that counts calls.
type fakeRecordClient struct {
	records   []Record
	listErr   error
	updateErr error

	listCalls   int
	updateCalls int
	lastZone    Zone
	lastUpdate  Record
}

func (f *fakeRecordClient) ListRecords(_ context.Context, zone Zone) ([]Record, error) {
	f.listCalls++
	f.lastZone = zone
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeRecordClient) UpdateRecord(_ context.Context, record Record) (Record, error) {
	f.updateCalls++
	f.lastUpdate = record
	if f.updateErr != nil {
		return Record{}, f.updateErr
	}
	for i := range f.records {
		if f.records[i].ID == record.ID {
			f.records[i] = record
		}
	}
	return record, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDomain() DomainConfig {
	return DomainConfig{
		Provider: "mock",
		APIToken: "token",
		Host:     "home.example.com",
		Zone:     Zone{ID: "zone-1", Name: "example.com"},
	}
}

func seedRecords() []Record {
	return []Record{
		{Type: RecordTypeNS, ID: "ns", ZoneID: "zone-1", Name: "@", Value: "ns1.example.com."},
		{Type: RecordTypeA, ID: "a-www", ZoneID: "zone-1", Name: "www", Value: "198.51.100.9"},
		{Type: RecordTypeA, ID: "a-home", ZoneID: "zone-1", Name: "home", Value: "192.0.2.1"},
		{Type: RecordTypeAAAA, ID: "aaaa-home", ZoneID: "zone-1", Name: "home", Value: "2001:db8::1"},
	}
}

func TestEngine_Update_Idempotence(t *testing.T) {
	client := &fakeRecordClient{records: seedRecords()}
	engine := NewEngine(WithEngineLogger(testLogger()))
	ctx := context.Background()

	// Same value: no write.
	outcome, err := engine.Update(ctx, client, testDomain(), netip.MustParseAddr("192.0.2.1"))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if outcome != Unchanged {
		t.Errorf("outcome = %v, want unchanged", outcome)
	}
	if client.updateCalls != 0 {
		t.Errorf("updateCalls = %d, want 0", client.updateCalls)
	}

	// New value: exactly one write.
	outcome, err = engine.Update(ctx, client, testDomain(), netip.MustParseAddr("192.0.2.2"))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if outcome != Changed {
		t.Errorf("outcome = %v, want changed", outcome)
	}
	if client.updateCalls != 1 {
		t.Fatalf("updateCalls = %d, want 1", client.updateCalls)
	}
	if client.lastUpdate.ID != "a-home" || client.lastUpdate.Value != "192.0.2.2" {
		t.Errorf("lastUpdate = %+v, want a-home -> 192.0.2.2", client.lastUpdate)
	}
	if client.lastUpdate.Type != RecordTypeA || client.lastUpdate.Name != "home" {
		t.Errorf("update changed identity fields: %+v", client.lastUpdate)
	}

	// Same new value again: no further write.
	outcome, err = engine.Update(ctx, client, testDomain(), netip.MustParseAddr("192.0.2.2"))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if outcome != Unchanged {
		t.Errorf("outcome = %v, want unchanged", outcome)
	}
	if client.updateCalls != 1 {
		t.Errorf("updateCalls = %d, want 1", client.updateCalls)
	}
	if client.listCalls != 3 {
		t.Errorf("listCalls = %d, want 3 (no caching)", client.listCalls)
	}
}

func TestEngine_Update_SelectsRecordType(t *testing.T) {
	tests := []struct {
		name   string
		ip     string
		wantID string
	}{
		{name: "ipv4 updates A", ip: "203.0.113.7", wantID: "a-home"},
		{name: "ipv6 updates AAAA", ip: "2001:db8::42", wantID: "aaaa-home"},
		{name: "ipv4-mapped updates A", ip: "::ffff:203.0.113.7", wantID: "a-home"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeRecordClient{records: seedRecords()}
			engine := NewEngine(WithEngineLogger(testLogger()))

			outcome, err := engine.Update(context.Background(), client, testDomain(), netip.MustParseAddr(tt.ip))
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if outcome != Changed {
				t.Errorf("outcome = %v, want changed", outcome)
			}
			if client.lastUpdate.ID != tt.wantID {
				t.Errorf("updated record %q, want %q", client.lastUpdate.ID, tt.wantID)
			}
			if strings.HasPrefix(client.lastUpdate.Value, "::ffff:") {
				t.Errorf("value %q was not unmapped", client.lastUpdate.Value)
			}
		})
	}
}

func TestEngine_Update_ApexAndCase(t *testing.T) {
	client := &fakeRecordClient{records: []Record{
		{Type: RecordTypeA, ID: "apex", Name: "@", Value: "192.0.2.1"},
	}}
	domain := testDomain()
	domain.Host = "Example.com."

	outcome, err := NewEngine().Update(context.Background(), client, domain, netip.MustParseAddr("192.0.2.9"))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if outcome != Changed || client.lastUpdate.ID != "apex" {
		t.Errorf("outcome = %v, updated %q; want changed apex", outcome, client.lastUpdate.ID)
	}

	client = &fakeRecordClient{records: []Record{
		{Type: RecordTypeA, ID: "upper", Name: "HOME", Value: "192.0.2.1"},
	}}
	outcome, err = NewEngine().Update(context.Background(), client, testDomain(), netip.MustParseAddr("192.0.2.1"))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if outcome != Unchanged {
		t.Errorf("outcome = %v, want unchanged for case-insensitive name", outcome)
	}
}

func TestEngine_Update_EquivalentIPv6Spelling(t *testing.T) {
	client := &fakeRecordClient{records: []Record{
		{Type: RecordTypeAAAA, ID: "v6", Name: "home", Value: "2001:0db8:0000::0001"},
	}}

	outcome, err := NewEngine().Update(context.Background(), client, testDomain(), netip.MustParseAddr("2001:db8::1"))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if outcome != Unchanged || client.updateCalls != 0 {
		t.Errorf("outcome = %v, updateCalls = %d; want unchanged with no write", outcome, client.updateCalls)
	}
}

func TestEngine_Update_FirstMatchWins(t *testing.T) {
	client := &fakeRecordClient{records: []Record{
		{Type: RecordTypeA, ID: "first", Name: "home", Value: "192.0.2.1"},
		{Type: RecordTypeA, ID: "second", Name: "home", Value: "192.0.2.2"},
	}}

	_, err := NewEngine().Update(context.Background(), client, testDomain(), netip.MustParseAddr("192.0.2.3"))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if client.lastUpdate.ID != "first" {
		t.Errorf("updated %q, want first", client.lastUpdate.ID)
	}
}

func TestEngine_Update_Errors(t *testing.T) {
	transportErr := TransportError("connection refused")
	rejectErr := errors.New("rejected")

	tests := []struct {
		name       string
		client     *fakeRecordClient
		domain     func() DomainConfig
		ip         netip.Addr
		wantErr    error
		wantWrites int
	}{
		{
			name:    "record missing",
			client:  &fakeRecordClient{records: []Record{{Type: RecordTypeA, ID: "x", Name: "www", Value: "192.0.2.1"}}},
			domain:  testDomain,
			ip:      netip.MustParseAddr("192.0.2.1"),
			wantErr: ErrRecordNotFound,
		},
		{
			name:    "only other type present",
			client:  &fakeRecordClient{records: []Record{{Type: RecordTypeA, ID: "x", Name: "home", Value: "192.0.2.1"}}},
			domain:  testDomain,
			ip:      netip.MustParseAddr("2001:db8::1"),
			wantErr: ErrRecordNotFound,
		},
		{
			name:   "host outside zone",
			client: &fakeRecordClient{records: seedRecords()},
			domain: func() DomainConfig {
				d := testDomain()
				d.Host = "home.example.org"
				return d
			},
			ip:      netip.MustParseAddr("192.0.2.1"),
			wantErr: ErrHostZoneMismatch,
		},
		{
			name:    "invalid ip",
			client:  &fakeRecordClient{records: seedRecords()},
			domain:  testDomain,
			ip:      netip.Addr{},
			wantErr: ErrInvalidIP,
		},
		{
			name:    "list fails",
			client:  &fakeRecordClient{listErr: transportErr},
			domain:  testDomain,
			ip:      netip.MustParseAddr("192.0.2.1"),
			wantErr: ErrTransport,
		},
		{
			name:       "update fails",
			client:     &fakeRecordClient{records: seedRecords(), updateErr: rejectErr},
			domain:     testDomain,
			ip:         netip.MustParseAddr("192.0.2.99"),
			wantErr:    rejectErr,
			wantWrites: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := NewEngine(WithEngineLogger(testLogger())).Update(context.Background(), tt.client, tt.domain(), tt.ip)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Update() error = %v, want %v", err, tt.wantErr)
			}
			if outcome != Unchanged {
				t.Errorf("outcome = %v, want unchanged on error", outcome)
			}
			if tt.client.updateCalls != tt.wantWrites {
				t.Errorf("updateCalls = %d, want %d", tt.client.updateCalls, tt.wantWrites)
			}
		})
	}
}

func TestRecordTypeFor(t *testing.T) {
	tests := map[string]RecordType{
		"192.0.2.0":        RecordTypeA,
		"::ffff:192.0.2.0": RecordTypeA,
		"2001:db8::1":      RecordTypeAAAA,
		"::1":              RecordTypeAAAA,
	}
	for ip, want := range tests {
		if got := RecordTypeFor(netip.MustParseAddr(ip)); got != want {
			t.Errorf("RecordTypeFor(%s) = %s, want %s", ip, got, want)
		}
	}
}

func TestOutcome_String(t *testing.T) {
	if Changed.String() != "changed" || Unchanged.String() != "unchanged" {
		t.Errorf("unexpected outcome strings: %s, %s", Changed, Unchanged)
	}
}
