// Package hetzner implements the dyndns provider interface for Hetzner DNS.
package hetzner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/dyndns/internal/metrics"
	"gitlab.bluewillows.net/root/dyndns/pkg/httputil"
	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

const (
	// DefaultAPIEndpoint is the base URL for the Hetzner DNS API.
	DefaultAPIEndpoint = "https://dns.hetzner.com/api/v1"

	// authHeader carries the API token on every request.
	authHeader = "Auth-API-Token"
)

// apiZone represents a zone from the Hetzner API.
type apiZone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// zonesResponse wraps the zones list response.
type zonesResponse struct {
	Zones []apiZone `json:"zones"`
}

// apiRecord represents a DNS record from the Hetzner API.
type apiRecord struct {
	Type   string  `json:"type"`
	ID     string  `json:"id"`
	ZoneID string  `json:"zone_id"`
	Name   string  `json:"name"`
	Value  string  `json:"value"`
	TTL    *uint32 `json:"ttl,omitempty"`
}

// recordsResponse wraps the records list response.
type recordsResponse struct {
	Records []apiRecord `json:"records"`
}

// recordResponse wraps a single record response.
type recordResponse struct {
	Record apiRecord `json:"record"`
}

// Client is a Hetzner DNS API client bound to one API token.
type Client struct {
	apiEndpoint string
	token       string
	httpClient  *http.Client
	logger      *slog.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAPIEndpoint sets a custom API endpoint (useful for testing).
func WithAPIEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.apiEndpoint = strings.TrimSuffix(endpoint, "/")
		}
	}
}

// NewClient creates a new Hetzner DNS API client.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		apiEndpoint: DefaultAPIEndpoint,
		token:       token,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = httputil.NewClient(&httputil.ClientConfig{Logger: c.logger})
	}

	return c
}

// doRequest performs an HTTP request against the API and decodes the JSON
// response into out when out is non-nil.
func (c *Client) doRequest(ctx context.Context, method, path string, body, out any) error {
	reqURL := c.apiEndpoint + path

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set(authHeader, c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.TransportError("executing request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.TransportError("reading response body: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(method, resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return provider.TransportError("parsing response JSON: %v", err)
	}

	return nil
}

// statusError maps a non-2xx response to the provider error sentinels.
func statusError(method string, code int, body []byte) error {
	msg := fmt.Sprintf("unexpected status code %d: %s", code, httputil.BodySnippet(body))

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %w: %s", provider.ErrTransport, provider.ErrUnauthorized, msg)
	case method == http.MethodPut:
		return fmt.Errorf("%w: %s", provider.ErrUpdateRejected, msg)
	default:
		return provider.TransportError("%s", msg)
	}
}

// ListZones returns all zones visible to the token.
func (c *Client) ListZones(ctx context.Context) (zones []provider.Zone, err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "list_zones", start, err) }(time.Now())

	var resp zonesResponse
	if err := c.doRequest(ctx, http.MethodGet, "/zones", nil, &resp); err != nil {
		return nil, fmt.Errorf("listing zones: %w", err)
	}

	zones = make([]provider.Zone, 0, len(resp.Zones))
	for _, z := range resp.Zones {
		zones = append(zones, provider.Zone{ID: z.ID, Name: z.Name})
	}

	c.logger.Debug("received zones", slog.Int("count", len(zones)))

	return zones, nil
}

// ZoneID finds the ID of the zone called name. A missing zone wraps ErrRecordNotFound.
func (c *Client) ZoneID(ctx context.Context, name string) (string, error) {
	zones, err := c.ListZones(ctx)
	if err != nil {
		return "", err
	}
	for _, z := range zones {
		if strings.EqualFold(strings.TrimSuffix(z.Name, "."), strings.TrimSuffix(name, ".")) {
			return z.ID, nil
		}
	}
	return "", fmt.Errorf("%w: zone %s", provider.ErrRecordNotFound, name)
}

// ListRecords returns every record in the zone with the given ID.
func (c *Client) ListRecords(ctx context.Context, zoneID string) (records []provider.Record, err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "list_records", start, err) }(time.Now())

	params := url.Values{}
	params.Set("zone_id", zoneID)

	var resp recordsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/records?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	records = make([]provider.Record, 0, len(resp.Records))
	for _, r := range resp.Records {
		records = append(records, r.toRecord())
	}

	c.logger.Debug("received records",
		slog.String("zone_id", zoneID),
		slog.Int("count", len(records)),
	)

	return records, nil
}

// UpdateRecord replaces the record with record.ID and returns the record as stored by the API.
func (c *Client) UpdateRecord(ctx context.Context, record provider.Record) (updated provider.Record, err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "update_record", start, err) }(time.Now())

	if record.ID == "" {
		return provider.Record{}, fmt.Errorf("%w: record has no ID", provider.ErrUpdateRejected)
	}

	var resp recordResponse
	path := "/records/" + url.PathEscape(record.ID)
	if err := c.doRequest(ctx, http.MethodPut, path, fromRecord(record), &resp); err != nil {
		return provider.Record{}, fmt.Errorf("updating record: %w", err)
	}

	updated = resp.Record.toRecord()

	c.logger.Info("updated DNS record",
		slog.String("record_id", updated.ID),
		slog.String("zone_id", updated.ZoneID),
		slog.String("name", updated.Name),
		slog.String("type", string(updated.Type)),
		slog.String("value", updated.Value),
	)

	return updated, nil
}

func (r apiRecord) toRecord() provider.Record {
	return provider.Record{
		Type:   provider.RecordType(strings.ToUpper(r.Type)),
		ID:     r.ID,
		ZoneID: r.ZoneID,
		Name:   r.Name,
		Value:  r.Value,
		TTL:    r.TTL,
	}
}

func fromRecord(r provider.Record) apiRecord {
	return apiRecord{
		Type:   string(r.Type),
		ID:     r.ID,
		ZoneID: r.ZoneID,
		Name:   r.Name,
		Value:  r.Value,
		TTL:    r.TTL,
	}
}

// zoneClient adapts Client to provider.RecordClient.
type zoneClient struct {
	client *Client
}

func (z zoneClient) ListRecords(ctx context.Context, zone provider.Zone) ([]provider.Record, error) {
	zoneID := zone.ID
	if zoneID == "" {
		id, err := z.client.ZoneID(ctx, zone.Name)
		if err != nil {
			return nil, err
		}
		zoneID = id
	}
	return z.client.ListRecords(ctx, zoneID)
}

func (z zoneClient) UpdateRecord(ctx context.Context, record provider.Record) (provider.Record, error) {
	return z.client.UpdateRecord(ctx, record)
}
