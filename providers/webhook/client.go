// Package webhook implements the dyndns provider interface for HTTP endpoints
// that manage records on behalf of some other DNS system.
//
// The endpoint contract:
//
//	GET  /ping                 200 when the token is accepted
//	GET  /list?zone=<zone>     JSON array of RecordResponse
//	POST /update               UpdateRequest, answered with 200 or 204
//
// 401/403 mean a bad token; 404 or 409 on /update mean the old value is gone.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

// RecordResponse represents a single DNS record returned by the webhook.
type RecordResponse struct {
	Hostname string `json:"hostname"`
	Type     string `json:"type"`
	Value    string `json:"value"`
	TTL      int    `json:"ttl,omitempty"`
}

// UpdateRequest is the request body for update operations.
type UpdateRequest struct {
	Hostname string `json:"hostname"`
	Type     string `json:"type"`
	OldValue string `json:"old_value"`
	Value    string `json:"value"`
	TTL      int    `json:"ttl,omitempty"`
}

// ErrorResponse is the expected error response format from webhooks.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Client is a webhook HTTP client bound to one token.
type Client struct {
	baseURL    string
	authHeader string
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

// WithAuthHeader sets the header that carries the token.
func WithAuthHeader(header string) ClientOption {
	return func(c *Client) {
		if header != "" {
			c.authHeader = header
		}
	}
}

// NewClient creates a new webhook client. An empty token sends no auth header.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		authHeader: DefaultAuthHeader,
		token:      token,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = httputil.NewClient(&httputil.ClientConfig{Logger: c.logger})
	}

	return c
}

// doRequest performs one request and maps failures onto provider errors.
// Non-2xx answers are returned as *statusError wrapped in ErrTransport.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		value := c.token
		if c.authHeader == DefaultAuthHeader {
			value = "Bearer " + c.token
		}
		req.Header.Set(c.authHeader, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.TransportError("executing request to %s: %v", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.TransportError("reading response body: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &statusError{code: resp.StatusCode, detail: errorDetail(respBody)}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %w: %w", provider.ErrTransport, provider.ErrUnauthorized, se)
		}
		return nil, fmt.Errorf("%w: %w", provider.ErrTransport, se)
	}

	return respBody, nil
}

// statusError is a non-2xx answer from the webhook.
type statusError struct {
	code   int
	detail string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.detail)
}

// errorDetail prefers the ErrorResponse message over the raw body.
func errorDetail(body []byte) string {
	var errResp ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		if errResp.Message != "" {
			return errResp.Error + ": " + errResp.Message
		}
		return errResp.Error
	}
	return httputil.BodySnippet(body)
}

// Ping checks connectivity to the webhook endpoint.
func (c *Client) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "ping", start, err) }(time.Now())

	if _, err := c.doRequest(ctx, http.MethodGet, "/ping", nil); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// ListRecords retrieves the records of zone from the webhook.
// Hostnames are converted to labels; records outside the zone are dropped.
func (c *Client) ListRecords(ctx context.Context, zone provider.Zone) (records []provider.Record, err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "list_records", start, err) }(time.Now())

	body, err := c.doRequest(ctx, http.MethodGet, "/list?"+url.Values{"zone": {zone.Name}}.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}

	var items []RecordResponse
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, provider.TransportError("parsing list response: %v", err)
	}

	for _, item := range items {
		label, err := provider.RecordLabel(item.Hostname, zone.Name)
		if err != nil {
			continue
		}
		recordType := provider.RecordType(strings.ToUpper(item.Type))
		record := provider.Record{
			Type:   recordType,
			ID:     provider.CompositeRecordID(item.Hostname, recordType, item.Value),
			ZoneID: zone.ID,
			Name:   label,
			Value:  item.Value,
		}
		if item.TTL > 0 {
			ttl := uint32(item.TTL)
			record.TTL = &ttl
		}
		records = append(records, record)
	}

	c.logger.Debug("listed records from webhook",
		slog.String("zone", zone.Name),
		slog.Int("count", len(records)),
	)

	return records, nil
}

// UpdateRecord asks the webhook to move the record named by record.ID to record.Value.
func (c *Client) UpdateRecord(ctx context.Context, record provider.Record) (updated provider.Record, err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "update_record", start, err) }(time.Now())

	hostname, recordType, oldValue, err := provider.ParseCompositeRecordID(record.ID)
	if err != nil {
		return provider.Record{}, fmt.Errorf("%w: %w", provider.ErrUpdateRejected, err)
	}

	req := UpdateRequest{
		Hostname: hostname,
		Type:     string(recordType),
		OldValue: oldValue,
		Value:    record.Value,
	}
	if record.TTL != nil {
		req.TTL = int(*record.TTL)
	}

	if _, err := c.doRequest(ctx, http.MethodPost, "/update", req); err != nil {
		var se *statusError
		if errors.As(err, &se) && (se.code == http.StatusNotFound || se.code == http.StatusConflict) {
			return provider.Record{}, fmt.Errorf("%w: %w", provider.ErrUpdateRejected, se)
		}
		return provider.Record{}, fmt.Errorf("update failed: %w", err)
	}

	c.logger.Info("updated record via webhook",
		slog.String("hostname", hostname),
		slog.String("type", string(recordType)),
		slog.String("value", record.Value),
	)

	updated = record
	updated.ID = provider.CompositeRecordID(hostname, recordType, record.Value)
	return updated, nil
}
