package pihole

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePihole serves the subset of the v6 API used here.
type fakePihole struct {
	mu       sync.Mutex
	password string
	hosts    []string
	sessions map[string]bool
	issued   int
	puts     []string
	deletes  []string
}

func newFakePihole() *fakePihole {
	return &fakePihole{
		password: "app-password",
		hosts: []string{
			"192.0.2.1 home.example.com",
			"2001:db8::1 home.example.com",
			"192.0.2.10 example.com",
			"192.0.2.20 nas.example.com nas",
			"198.51.100.1 other.org",
		},
		sessions: map[string]bool{},
	}
}

func writeError(w http.ResponseWriter, status int, key, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"key": key, "message": message, "hint": nil},
	})
}

func (f *fakePihole) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/api/auth" {
		switch r.Method {
		case http.MethodPost:
			var req struct{ Password string }
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Password != f.password {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"session": map[string]any{"valid": false, "sid": nil, "validity": -1, "message": "password incorrect"},
				})
				return
			}
			f.issued++
			sid := "sid-" + strings.Repeat("x", f.issued)
			f.sessions[sid] = true
			_ = json.NewEncoder(w).Encode(map[string]any{
				"session": map[string]any{"valid": true, "sid": sid, "validity": 1800},
			})
		case http.MethodDelete:
			delete(f.sessions, r.Header.Get("X-FTL-SID"))
			w.WriteHeader(http.StatusGone)
		}
		return
	}

	if !f.sessions[r.Header.Get("X-FTL-SID")] {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	const prefix = "/api/config/dns/hosts"
	switch {
	case r.Method == http.MethodGet && r.URL.Path == prefix:
		_ = json.NewEncoder(w).Encode(map[string]any{
			"config": map[string]any{"dns": map[string]any{"hosts": f.hosts}},
		})
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, prefix+"/"):
		entry := strings.TrimPrefix(r.URL.Path, prefix+"/")
		f.puts = append(f.puts, entry)
		if slices.Contains(f.hosts, entry) {
			writeError(w, http.StatusBadRequest, "bad_request", "Item already present")
			return
		}
		f.hosts = append(f.hosts, entry)
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, prefix+"/"):
		entry := strings.TrimPrefix(r.URL.Path, prefix+"/")
		f.deletes = append(f.deletes, entry)
		i := slices.Index(f.hosts, entry)
		if i < 0 {
			writeError(w, http.StatusNotFound, "not_found", "Item not found")
			return
		}
		f.hosts = slices.Delete(f.hosts, i, i+1)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakePihole) state() (hosts []string, sessions int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.hosts), len(f.sessions)
}

var exampleZone = provider.Zone{ID: "example.com", Name: "example.com"}

func TestParseHostEntry(t *testing.T) {
	tests := []struct {
		entry string
		addr  string
		host  string
		ok    bool
	}{
		{"192.0.2.1 home.example.com", "192.0.2.1", "home.example.com", true},
		{"  2001:db8::1\tHome.Example.com. ", "2001:db8::1", "home.example.com", true},
		{"192.0.2.20 nas.example.com nas", "", "", false},
		{"home.example.com", "", "", false},
		{"not-an-ip home.example.com", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			addr, host, ok := parseHostEntry(tt.entry)
			if ok != tt.ok {
				t.Fatalf("parseHostEntry() ok = %v, want %v", ok, tt.ok)
			}
			if ok && (addr.String() != tt.addr || host != tt.host) {
				t.Errorf("parseHostEntry() = (%s, %s)", addr, host)
			}
		})
	}
}

func TestClient_ListRecords(t *testing.T) {
	fake := newFakePihole()
	server := httptest.NewServer(fake)
	defer server.Close()

	client := NewClient(server.URL, "app-password", WithLogger(testLogger()))
	records, err := client.ListRecords(context.Background(), exampleZone)
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	client.Logout(context.Background())

	if len(records) != 3 {
		t.Fatalf("expected 3 single-host in-zone records, got %d: %+v", len(records), records)
	}
	if r := records[0]; r.Name != "home" || r.Type != provider.RecordTypeA || r.ID != "192.0.2.1 home.example.com" {
		t.Errorf("unexpected record: %+v", r)
	}
	if r := records[1]; r.Type != provider.RecordTypeAAAA || r.Value != "2001:db8::1" {
		t.Errorf("unexpected record: %+v", r)
	}
	if records[2].Name != "@" {
		t.Errorf("apex name = %q", records[2].Name)
	}

	if _, sessions := fake.state(); sessions != 0 {
		t.Errorf("%d sessions left open after Logout", sessions)
	}
}

func TestClient_UpdateRecord(t *testing.T) {
	fake := newFakePihole()
	server := httptest.NewServer(fake)
	defer server.Close()

	client := NewClient(server.URL, "app-password", WithLogger(testLogger()))
	defer client.Logout(context.Background())

	updated, err := client.UpdateRecord(context.Background(), provider.Record{
		Type:  provider.RecordTypeA,
		ID:    "192.0.2.1 home.example.com",
		Value: "198.51.100.3",
	})
	if err != nil {
		t.Fatalf("UpdateRecord() error = %v", err)
	}
	if updated.ID != "198.51.100.3 home.example.com" || updated.Type != provider.RecordTypeA {
		t.Errorf("updated ID = %q", updated.ID)
	}

	hosts, _ := fake.state()
	if slices.Contains(hosts, "192.0.2.1 home.example.com") || !slices.Contains(hosts, "198.51.100.3 home.example.com") {
		t.Errorf("hosts after update = %v", hosts)
	}
}

func TestClient_UpdateRecord_StoredEntryText(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		value string
		want  string
	}{
		{"mixed case", "192.0.2.1 Home.Example.com", "198.51.100.3", "198.51.100.3 home.example.com"},
		{"extra spacing", "192.0.2.1  home.example.com", "198.51.100.3", "198.51.100.3 home.example.com"},
		{"expanded IPv6", "2001:0db8:0000::0001 home.example.com.", "2001:db8::2", "2001:db8::2 home.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakePihole()
			fake.hosts = []string{tt.entry}
			server := httptest.NewServer(fake)
			defer server.Close()

			client := NewClient(server.URL, "app-password", WithLogger(testLogger()))
			defer client.Logout(context.Background())

			records, err := client.ListRecords(context.Background(), exampleZone)
			if err != nil || len(records) != 1 {
				t.Fatalf("ListRecords() = %v, %v", records, err)
			}
			if records[0].ID != tt.entry {
				t.Errorf("record ID = %q, want stored entry %q", records[0].ID, tt.entry)
			}

			record := records[0]
			record.Value = tt.value
			if _, err := client.UpdateRecord(context.Background(), record); err != nil {
				t.Fatalf("UpdateRecord() error = %v", err)
			}

			hosts, _ := fake.state()
			if !slices.Equal(hosts, []string{tt.want}) {
				t.Errorf("hosts after update = %q, want [%q]", hosts, tt.want)
			}
		})
	}
}

func TestClient_UpdateRecord_Idempotent(t *testing.T) {
	fake := newFakePihole()
	fake.hosts = append(fake.hosts, "198.51.100.3 home.example.com")
	fake.hosts = slices.DeleteFunc(fake.hosts, func(h string) bool { return h == "192.0.2.1 home.example.com" })
	server := httptest.NewServer(fake)
	defer server.Close()

	client := NewClient(server.URL, "app-password", WithLogger(testLogger()))
	defer client.Logout(context.Background())

	// New entry already present and old entry gone: both steps tolerate it.
	if _, err := client.UpdateRecord(context.Background(), provider.Record{
		ID:    "192.0.2.1 home.example.com",
		Value: "198.51.100.3",
	}); err != nil {
		t.Fatalf("UpdateRecord() error = %v", err)
	}
}

func TestClient_UpdateRecord_Rejected(t *testing.T) {
	server := httptest.NewServer(newFakePihole())
	defer server.Close()

	client := NewClient(server.URL, "app-password", WithLogger(testLogger()))
	defer client.Logout(context.Background())

	tests := []struct {
		name  string
		id    string
		value string
	}{
		{"malformed id", "garbage", "192.0.2.2"},
		{"family mismatch", "192.0.2.1 home.example.com", "2001:db8::2"},
		{"multi-host entry", "192.0.2.20 nas.example.com nas", "192.0.2.21"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.UpdateRecord(context.Background(), provider.Record{ID: tt.id, Value: tt.value})
			if !errors.Is(err, provider.ErrUpdateRejected) {
				t.Errorf("expected ErrUpdateRejected, got %v", err)
			}
		})
	}
}

func TestClient_WrongPassword(t *testing.T) {
	server := httptest.NewServer(newFakePihole())
	defer server.Close()

	_, err := NewClient(server.URL, "nope", WithLogger(testLogger())).ListRecords(context.Background(), exampleZone)
	if !errors.Is(err, provider.ErrUnauthorized) || !errors.Is(err, provider.ErrTransport) {
		t.Errorf("expected unauthorized transport error, got %v", err)
	}
}

func TestClient_NoPassword(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth" {
			_, _ = w.Write([]byte(`{"session":{"valid":true,"sid":null,"validity":-1}}`))
			return
		}
		if r.Header.Get("X-FTL-SID") != "" {
			t.Error("unexpected SID header")
		}
		_, _ = w.Write([]byte(`{"config":{"dns":{"hosts":["192.0.2.1 home.example.com"]}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", WithLogger(testLogger()))
	records, err := client.ListRecords(context.Background(), exampleZone)
	if err != nil || len(records) != 1 {
		t.Errorf("ListRecords() = %v, %v", records, err)
	}
	client.Logout(context.Background())
}
