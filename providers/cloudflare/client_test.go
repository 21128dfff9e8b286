package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// successResponse creates a successful Cloudflare API response.
func successResponse(result any) map[string]any {
	return map[string]any{
		"success":  true,
		"errors":   []any{},
		"messages": []any{},
		"result":   result,
	}
}

// pagedResponse creates a successful list response with pagination info.
func pagedResponse(result any, page, totalPages int) map[string]any {
	resp := successResponse(result)
	resp["result_info"] = map[string]any{
		"page":        page,
		"per_page":    pageSize,
		"total_pages": totalPages,
	}
	return resp
}

// errorResponse creates an error Cloudflare API response.
func errorResponse(code int, message string) map[string]any {
	return map[string]any{
		"success": false,
		"errors": []map[string]any{
			{"code": code, "message": message},
		},
		"messages": []any{},
		"result":   nil,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(serverURL string) *Client {
	return NewClient("test-token", WithAPIEndpoint(serverURL), WithLogger(testLogger()))
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-token")

	if client.apiEndpoint != DefaultAPIEndpoint {
		t.Errorf("expected apiEndpoint %s, got %s", DefaultAPIEndpoint, client.apiEndpoint)
	}
	if client.token != "test-token" {
		t.Errorf("expected token test-token, got %s", client.token)
	}
	if client.httpClient == nil {
		t.Error("expected httpClient to be initialized")
	}
	if client.logger == nil {
		t.Error("expected logger to be initialized")
	}
}

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/tokens/verify" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(errorResponse(1000, "Invalid API Token"))
			return
		}
		_ = json.NewEncoder(w).Encode(successResponse(map[string]any{"id": "token-id", "status": "active"}))
	}))
	defer server.Close()

	if err := newTestClient(server.URL).Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	bad := NewClient("wrong", WithAPIEndpoint(server.URL), WithLogger(testLogger()))
	err := bad.Ping(context.Background())
	if !errors.Is(err, provider.ErrUnauthorized) {
		t.Errorf("Ping() with bad token error = %v, want unauthorized", err)
	}
}

func TestClient_GetZoneID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") == "example.com" {
			_ = json.NewEncoder(w).Encode(successResponse([]map[string]any{
				{"id": "zone-123", "name": "example.com", "status": "active"},
			}))
			return
		}
		_ = json.NewEncoder(w).Encode(successResponse([]any{}))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	id, err := client.GetZoneID(context.Background(), "example.com.")
	if err != nil {
		t.Fatalf("GetZoneID() error = %v", err)
	}
	if id != "zone-123" {
		t.Errorf("expected zone-123, got %s", id)
	}

	if _, err := client.GetZoneID(context.Background(), "missing.org"); !errors.Is(err, provider.ErrRecordNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestClient_ListRecords_Paginates(t *testing.T) {
	var pages atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/zones/zone-123/dns_records" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("per_page") != "100" {
			t.Errorf("expected per_page=100, got %s", r.URL.Query().Get("per_page"))
		}
		pages.Add(1)
		switch r.URL.Query().Get("page") {
		case "1":
			_ = json.NewEncoder(w).Encode(pagedResponse([]map[string]any{
				{"id": "r1", "type": "A", "name": "example.com", "content": "192.0.2.1", "ttl": 1, "zone_id": "zone-123"},
				{"id": "r2", "type": "A", "name": "home.example.com", "content": "192.0.2.2", "ttl": 300, "zone_id": "zone-123"},
			}, 1, 2))
		case "2":
			_ = json.NewEncoder(w).Encode(pagedResponse([]map[string]any{
				{"id": "r3", "type": "AAAA", "name": "home.example.com", "content": "2001:db8::1", "ttl": 300},
			}, 2, 2))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	records, err := newTestClient(server.URL).ListRecords(context.Background(), provider.Zone{ID: "zone-123", Name: "example.com"})
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}

	if n := pages.Load(); n != 2 {
		t.Errorf("expected 2 page requests, got %d", n)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Name != "@" {
		t.Errorf("apex name = %q, want @", records[0].Name)
	}
	if records[1].Name != "home" || records[1].Value != "192.0.2.2" || *records[1].TTL != 300 {
		t.Errorf("unexpected record: %+v", records[1])
	}
	if records[2].ZoneID != "zone-123" || records[2].Type != provider.RecordTypeAAAA {
		t.Errorf("unexpected record: %+v", records[2])
	}
}

func TestClient_UpdateRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		if r.URL.Path != "/zones/zone-123/dns_records/r2" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body) != 1 || body["content"] != "198.51.100.7" {
			t.Errorf("expected content-only body, got %v", body)
		}

		_ = json.NewEncoder(w).Encode(successResponse(map[string]any{
			"id": "r2", "type": "A", "name": "home.example.com", "content": "198.51.100.7", "proxied": true,
		}))
	}))
	defer server.Close()

	updated, err := newTestClient(server.URL).UpdateRecord(context.Background(), provider.Record{
		Type: provider.RecordTypeA, ID: "r2", ZoneID: "zone-123", Name: "home", Value: "198.51.100.7",
	})
	if err != nil {
		t.Fatalf("UpdateRecord() error = %v", err)
	}
	if updated.Value != "198.51.100.7" || updated.Name != "home" {
		t.Errorf("unexpected updated record: %+v", updated)
	}
}

func TestClient_UpdateRecord_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]any
	}{
		{"http error", http.StatusBadRequest, errorResponse(9005, "Content for A record is invalid")},
		{"success false", http.StatusOK, errorResponse(9005, "Content for A record is invalid")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).UpdateRecord(context.Background(), provider.Record{
				ID: "r2", ZoneID: "zone-123", Value: "bogus",
			})
			if !errors.Is(err, provider.ErrUpdateRejected) {
				t.Errorf("expected ErrUpdateRejected, got %v", err)
			}
		})
	}
}

func TestClient_RateLimiting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(errorResponse(10000, "Rate limited"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ListRecords(context.Background(), provider.Zone{ID: "z", Name: "example.com"})
	if !errors.Is(err, provider.ErrTransport) {
		t.Errorf("expected transport error for rate limiting, got %v", err)
	}
}
