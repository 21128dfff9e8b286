// Package cloudflare implements the dyndns provider interface for Cloudflare DNS.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/dyndns/internal/metrics"
	"gitlab.bluewillows.net/root/dyndns/pkg/httputil"
	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

const (
	// DefaultAPIEndpoint is the base URL for Cloudflare API v4.
	DefaultAPIEndpoint = "https://api.cloudflare.com/client/v4"

	// pageSize is the largest page the records endpoint accepts.
	pageSize = 100
)

// apiError represents an error from the Cloudflare API.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// resultInfo carries pagination details.
type resultInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
	Count      int `json:"count"`
	TotalCount int `json:"total_count"`
}

// apiResponse is the standard Cloudflare API response wrapper.
type apiResponse struct {
	Success    bool            `json:"success"`
	Errors     []apiError      `json:"errors"`
	Result     json.RawMessage `json:"result"`
	ResultInfo *resultInfo     `json:"result_info,omitempty"`
}

// zoneResult represents a zone from the Cloudflare API.
type zoneResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// dnsRecord represents a DNS record from the Cloudflare API.
type dnsRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
	ZoneID  string `json:"zone_id"`
}

// patchRecordRequest changes only the record content, so proxying, TTL and
// comments set in the dashboard survive an update.
type patchRecordRequest struct {
	Content string `json:"content"`
}

// Client is a Cloudflare DNS API client bound to one API token.
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

// NewClient creates a new Cloudflare API client.
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

// doRequest performs an HTTP request to the Cloudflare API and unwraps the envelope.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*apiResponse, error) {
	reqURL := c.apiEndpoint + path

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.TransportError("executing request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.TransportError("reading response body: %v", err)
	}

	var apiResp apiResponse
	decodeErr := json.Unmarshal(respBody, &apiResp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := httputil.BodySnippet(respBody)
		if decodeErr == nil && len(apiResp.Errors) > 0 {
			detail = fmt.Sprintf("%s (code: %d)", apiResp.Errors[0].Message, apiResp.Errors[0].Code)
		}
		msg := fmt.Sprintf("unexpected status code %d: %s", resp.StatusCode, detail)

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: %w: %s", provider.ErrTransport, provider.ErrUnauthorized, msg)
		case method == http.MethodPatch || method == http.MethodPut:
			return nil, fmt.Errorf("%w: %s", provider.ErrUpdateRejected, msg)
		default:
			return nil, provider.TransportError("%s", msg)
		}
	}

	if decodeErr != nil {
		return nil, provider.TransportError("parsing response JSON: %v", decodeErr)
	}

	if !apiResp.Success {
		msg := "API request failed with unknown error"
		if len(apiResp.Errors) > 0 {
			msg = fmt.Sprintf("API error: %s (code: %d)", apiResp.Errors[0].Message, apiResp.Errors[0].Code)
		}
		if method == http.MethodPatch || method == http.MethodPut {
			return nil, fmt.Errorf("%w: %s", provider.ErrUpdateRejected, msg)
		}
		return nil, provider.TransportError("%s", msg)
	}

	return &apiResp, nil
}

// Ping checks that the token is valid.
// Uses the /user/tokens/verify endpoint which is lightweight.
func (c *Client) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "ping", start, err) }(time.Now())

	if _, err := c.doRequest(ctx, http.MethodGet, "/user/tokens/verify", nil); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// GetZoneID returns the zone ID for a zone name.
func (c *Client) GetZoneID(ctx context.Context, zoneName string) (id string, err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "get_zone_id", start, err) }(time.Now())

	params := url.Values{}
	params.Set("name", strings.TrimSuffix(zoneName, "."))

	resp, err := c.doRequest(ctx, http.MethodGet, "/zones?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("looking up zone %s: %w", zoneName, err)
	}

	var zones []zoneResult
	if err := json.Unmarshal(resp.Result, &zones); err != nil {
		return "", provider.TransportError("parsing zones response: %v", err)
	}

	if len(zones) == 0 {
		return "", fmt.Errorf("%w: no zone found for %s", provider.ErrRecordNotFound, zoneName)
	}

	c.logger.Debug("found zone",
		slog.String("zone", zoneName),
		slog.String("zone_id", zones[0].ID),
	)

	return zones[0].ID, nil
}

// ListRecords returns all DNS records in zone, following pagination.
// Record names are converted from FQDNs to labels relative to zone.Name.
func (c *Client) ListRecords(ctx context.Context, zone provider.Zone) (records []provider.Record, err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "list_records", start, err) }(time.Now())

	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("per_page", strconv.Itoa(pageSize))
		params.Set("page", strconv.Itoa(page))

		path := fmt.Sprintf("/zones/%s/dns_records?%s", url.PathEscape(zone.ID), params.Encode())
		resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, fmt.Errorf("listing records: %w", err)
		}

		var batch []dnsRecord
		if err := json.Unmarshal(resp.Result, &batch); err != nil {
			return nil, provider.TransportError("parsing records response: %v", err)
		}

		for _, r := range batch {
			records = append(records, toRecord(r, zone))
		}

		if resp.ResultInfo == nil || page >= resp.ResultInfo.TotalPages || len(batch) == 0 {
			break
		}
	}

	c.logger.Debug("listed records",
		slog.String("zone_id", zone.ID),
		slog.Int("count", len(records)),
	)

	return records, nil
}

// UpdateRecord sets the content of an existing record.
func (c *Client) UpdateRecord(ctx context.Context, record provider.Record) (updated provider.Record, err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "update_record", start, err) }(time.Now())

	if record.ID == "" || record.ZoneID == "" {
		return provider.Record{}, fmt.Errorf("%w: record needs both ID and zone ID", provider.ErrUpdateRejected)
	}

	path := fmt.Sprintf("/zones/%s/dns_records/%s", url.PathEscape(record.ZoneID), url.PathEscape(record.ID))
	resp, err := c.doRequest(ctx, http.MethodPatch, path, patchRecordRequest{Content: record.Value})
	if err != nil {
		return provider.Record{}, fmt.Errorf("updating record: %w", err)
	}

	var r dnsRecord
	if err := json.Unmarshal(resp.Result, &r); err != nil {
		return provider.Record{}, provider.TransportError("parsing update response: %v", err)
	}

	updated = record
	updated.Value = r.Content

	c.logger.Info("updated DNS record",
		slog.String("zone_id", record.ZoneID),
		slog.String("record_id", record.ID),
		slog.String("name", r.Name),
		slog.String("type", r.Type),
		slog.String("content", r.Content),
	)

	return updated, nil
}

func toRecord(r dnsRecord, zone provider.Zone) provider.Record {
	name := r.Name
	if label, err := provider.RecordLabel(r.Name, zone.Name); err == nil {
		name = label
	}

	rec := provider.Record{
		Type:   provider.RecordType(r.Type),
		ID:     r.ID,
		ZoneID: r.ZoneID,
		Name:   name,
		Value:  r.Content,
	}
	if rec.ZoneID == "" {
		rec.ZoneID = zone.ID
	}
	if r.TTL > 0 {
		ttl := uint32(r.TTL)
		rec.TTL = &ttl
	}
	return rec
}
