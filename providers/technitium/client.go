// Package technitium implements the dyndns provider interface for Technitium DNS Server.
package technitium

import (
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

// API status values returned in the response envelope.
const (
	statusOK           = "ok"
	statusError        = "error"
	statusInvalidToken = "invalid-token"
)

// apiRecord represents a DNS record from the Technitium API.
type apiRecord struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	TTL      int      `json:"ttl"`
	RData    apiRData `json:"rData"`
	Disabled bool     `json:"disabled"`
}

// apiRData contains the record-specific data from Technitium.
type apiRData struct {
	IPAddress string `json:"ipAddress,omitempty"` // A and AAAA records
	CName     string `json:"cname,omitempty"`
	Text      string `json:"text,omitempty"`
}

// apiResponse is the standard Technitium API response wrapper.
type apiResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Response     json.RawMessage `json:"response,omitempty"`
}

// zoneInfo contains zone metadata from the API response.
type zoneInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Disabled bool   `json:"disabled"`
}

// zoneRecordsResponse is the listZone response from zones/records/get.
type zoneRecordsResponse struct {
	Zone    zoneInfo    `json:"zone"`
	Records []apiRecord `json:"records"`
}

// updateResponse is the response from zones/records/update.
type updateResponse struct {
	Zone          zoneInfo  `json:"zone"`
	UpdatedRecord apiRecord `json:"updatedRecord"`
}

// Client is a Technitium DNS Server API client bound to one API token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
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

// NewClient creates a new Technitium API client.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = httputil.NewClient(&httputil.ClientConfig{Logger: c.logger})
	}

	return c
}

// doRequest performs a GET request to the Technitium API.
// The token travels as a query parameter; httputil redacts it from debug logs.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, write bool) (*apiResponse, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("token", c.token)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error carries the full URL including the token.
		return nil, provider.TransportError("executing request to %s: %v", endpoint, unwrapURLError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.TransportError("reading response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("unexpected status code %d: %s", resp.StatusCode, httputil.BodySnippet(body))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %w: %s", provider.ErrTransport, provider.ErrUnauthorized, msg)
		}
		return nil, provider.TransportError("%s", msg)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, provider.TransportError("parsing response JSON: %v", err)
	}

	switch apiResp.Status {
	case statusOK:
		return &apiResp, nil
	case statusInvalidToken:
		return nil, fmt.Errorf("%w: %w: %s", provider.ErrTransport, provider.ErrUnauthorized, apiResp.ErrorMessage)
	default:
		if write {
			return nil, fmt.Errorf("%w: API error: %s", provider.ErrUpdateRejected, apiResp.ErrorMessage)
		}
		return nil, provider.TransportError("API error (%s): %s", apiResp.Status, apiResp.ErrorMessage)
	}
}

func unwrapURLError(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return ue.Err
	}
	return err
}

// Ping checks that the token is valid.
// Uses the /api/user/session/get endpoint which is lightweight.
func (c *Client) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "ping", start, err) }(time.Now())

	if _, err := c.doRequest(ctx, "/api/user/session/get", nil, false); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// ListZoneRecords retrieves all records in a zone.
// Record names are converted to labels relative to zone and IDs are composite.
func (c *Client) ListZoneRecords(ctx context.Context, zone string) (records []provider.Record, err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "list_records", start, err) }(time.Now())

	params := url.Values{}
	params.Set("zone", zone)
	params.Set("domain", zone)
	params.Set("listZone", "true")

	apiResp, err := c.doRequest(ctx, "/api/zones/records/get", params, false)
	if err != nil {
		return nil, fmt.Errorf("listing zone %s: %w", zone, err)
	}

	var result zoneRecordsResponse
	if err := json.Unmarshal(apiResp.Response, &result); err != nil {
		return nil, provider.TransportError("parsing zone records response: %v", err)
	}

	records = make([]provider.Record, 0, len(result.Records))
	for _, r := range result.Records {
		if r.Disabled {
			continue
		}
		records = append(records, toRecord(r, zone))
	}

	c.logger.Debug("listed zone records",
		slog.String("zone", zone),
		slog.Int("count", len(records)),
	)

	return records, nil
}

// UpdateRecord replaces the address of the record identified by record.ID.
func (c *Client) UpdateRecord(ctx context.Context, zone string, record provider.Record) (updated provider.Record, err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "update_record", start, err) }(time.Now())

	fqdn, recordType, oldValue, err := provider.ParseCompositeRecordID(record.ID)
	if err != nil {
		return provider.Record{}, fmt.Errorf("%w: %v", provider.ErrUpdateRejected, err)
	}
	if recordType != provider.RecordTypeA && recordType != provider.RecordTypeAAAA {
		return provider.Record{}, fmt.Errorf("%w: cannot update %s record", provider.ErrUpdateRejected, recordType)
	}

	params := url.Values{}
	params.Set("zone", zone)
	params.Set("domain", fqdn)
	params.Set("type", string(recordType))
	params.Set("ipAddress", oldValue)
	params.Set("newIpAddress", record.Value)
	if record.TTL != nil {
		params.Set("ttl", strconv.FormatUint(uint64(*record.TTL), 10))
	}

	apiResp, err := c.doRequest(ctx, "/api/zones/records/update", params, true)
	if err != nil {
		return provider.Record{}, fmt.Errorf("updating %s record for %s: %w", recordType, fqdn, err)
	}

	updated = record
	updated.ID = provider.CompositeRecordID(fqdn, recordType, record.Value)

	var result updateResponse
	if err := json.Unmarshal(apiResp.Response, &result); err == nil && result.UpdatedRecord.RData.IPAddress != "" {
		updated = toRecord(result.UpdatedRecord, zone)
	}

	c.logger.Info("updated DNS record",
		slog.String("zone", zone),
		slog.String("hostname", fqdn),
		slog.String("type", string(recordType)),
		slog.String("old_value", oldValue),
		slog.String("new_value", updated.Value),
	)

	return updated, nil
}

func toRecord(r apiRecord, zone string) provider.Record {
	value := r.RData.IPAddress
	switch {
	case r.RData.CName != "":
		value = r.RData.CName
	case r.RData.Text != "":
		value = r.RData.Text
	}

	name := r.Name
	if label, err := provider.RecordLabel(r.Name, zone); err == nil {
		name = label
	}

	rec := provider.Record{
		Type:   provider.RecordType(strings.ToUpper(r.Type)),
		ID:     provider.CompositeRecordID(r.Name, provider.RecordType(strings.ToUpper(r.Type)), value),
		ZoneID: zone,
		Name:   name,
		Value:  value,
	}
	if r.TTL > 0 {
		ttl := uint32(r.TTL)
		rec.TTL = &ttl
	}
	return rec
}

// zoneClient adapts Client to provider.RecordClient for one zone.
type zoneClient struct {
	client *Client
}

func (z zoneClient) ListRecords(ctx context.Context, zone provider.Zone) ([]provider.Record, error) {
	return z.client.ListZoneRecords(ctx, zone.Name)
}

func (z zoneClient) UpdateRecord(ctx context.Context, record provider.Record) (provider.Record, error) {
	return z.client.UpdateRecord(ctx, record.ZoneID, record)
}
