package pihole

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/dyndns/internal/metrics"
	"gitlab.bluewillows.net/root/dyndns/pkg/httputil"
	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

const hostsPath = "/api/config/dns/hosts"

// sessionResponse represents the auth response from Pi-hole v6.
type sessionResponse struct {
	Session struct {
		Valid    bool   `json:"valid"`
		SID      string `json:"sid"`
		Validity int    `json:"validity"`
		Message  string `json:"message"`
	} `json:"session"`
}

// hostsResponse is the answer to GET /api/config/dns/hosts.
type hostsResponse struct {
	Config struct {
		DNS struct {
			Hosts []string `json:"hosts"`
		} `json:"dns"`
	} `json:"config"`
}

// errorResponse is Pi-hole's error envelope.
type errorResponse struct {
	Error struct {
		Key     string `json:"key"`
		Message string `json:"message"`
		Hint    any    `json:"hint"`
	} `json:"error"`
}

// apiError is a non-2xx answer from the Pi-hole API.
type apiError struct {
	status  int
	key     string
	message string
}

func (e *apiError) Error() string {
	if e.key != "" {
		return fmt.Sprintf("API error (status %d): %s: %s", e.status, e.key, e.message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.status, e.message)
}

// Client talks to the Pi-hole v6 REST API with one password.
// It logs in lazily on first use and holds the session until Logout.
// A Client is meant for one operation and is not safe for concurrent use.
type Client struct {
	baseURL    string
	password   string
	httpClient *http.Client
	logger     *slog.Logger

	sid      string
	loggedIn bool
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

// NewClient creates a new Pi-hole v6 API client.
func NewClient(baseURL, password string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		password: password,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = httputil.NewClient(&httputil.ClientConfig{Logger: c.logger})
	}

	return c
}

// login obtains a session ID. A Pi-hole without a password answers with a
// valid session and no SID.
func (c *Client) login(ctx context.Context) (err error) {
	if c.loggedIn {
		return nil
	}
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "login", start, err) }(time.Now())

	payload, err := json.Marshal(struct {
		Password string `json:"password"`
	}{Password: c.password})
	if err != nil {
		return fmt.Errorf("marshaling auth request: %w", err)
	}

	body, err := c.send(ctx, http.MethodPost, "/api/auth", payload, "")
	if err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}

	var session sessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return provider.TransportError("parsing auth response: %v", err)
	}
	if !session.Session.Valid {
		msg := session.Session.Message
		if msg == "" {
			msg = "invalid credentials"
		}
		return fmt.Errorf("%w: %w: %s", provider.ErrTransport, provider.ErrUnauthorized, msg)
	}

	c.sid = session.Session.SID
	c.loggedIn = true

	c.logger.Debug("authenticated with Pi-hole",
		slog.Int("validity_seconds", session.Session.Validity))

	return nil
}

// Logout ends the session. Pi-hole caps concurrent sessions, so every
// Client that logged in should be logged out.
func (c *Client) Logout(ctx context.Context) {
	if !c.loggedIn || c.sid == "" {
		return
	}
	if _, err := c.send(ctx, http.MethodDelete, "/api/auth", nil, c.sid); err != nil {
		c.logger.Debug("Pi-hole logout failed", slog.String("error", err.Error()))
	}
	c.sid = ""
	c.loggedIn = false
}

// doRequest performs an authenticated request.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}
	return c.send(ctx, method, path, nil, c.sid)
}

// send performs one request and maps failures onto provider errors.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, sid string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sid != "" {
		req.Header.Set("X-FTL-SID", sid)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.TransportError("executing request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.TransportError("reading response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ae := &apiError{status: resp.StatusCode, message: httputil.BodySnippet(body)}
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Error.Key != "" {
			ae.key = er.Error.Key
			ae.message = er.Error.Message
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %w: %w", provider.ErrTransport, provider.ErrUnauthorized, ae)
		}
		return nil, fmt.Errorf("%w: %w", provider.ErrTransport, ae)
	}

	return body, nil
}

// Ping checks that the password is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.login(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// ListRecords returns the single-host dns.hosts entries inside zone.
// Entries naming several hosts are skipped since one of them cannot be
// moved without touching the others.
func (c *Client) ListRecords(ctx context.Context, zone provider.Zone) (records []provider.Record, err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "list_records", start, err) }(time.Now())

	body, err := c.doRequest(ctx, http.MethodGet, hostsPath)
	if err != nil {
		return nil, fmt.Errorf("listing hosts: %w", err)
	}

	var resp hostsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, provider.TransportError("parsing hosts response: %v", err)
	}

	for _, entry := range resp.Config.DNS.Hosts {
		addr, host, ok := parseHostEntry(entry)
		if !ok {
			continue
		}
		label, err := provider.RecordLabel(host, zone.Name)
		if err != nil {
			continue
		}
		records = append(records, provider.Record{
			Type:   provider.RecordTypeFor(addr),
			ID:     entry,
			ZoneID: zone.ID,
			Name:   label,
			Value:  addr.String(),
		})
	}

	c.logger.Debug("listed Pi-hole hosts",
		slog.String("zone", zone.Name),
		slog.Int("count", len(records)),
	)

	return records, nil
}

// UpdateRecord adds the entry for the new address, then removes the old one.
// The host resolves to both addresses for a moment rather than to none.
// record.ID is the dns.hosts element as stored, so the old entry is deleted
// by its exact text even when it differs in case or spacing from ours.
func (c *Client) UpdateRecord(ctx context.Context, record provider.Record) (updated provider.Record, err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "update_record", start, err) }(time.Now())

	oldAddr, host, ok := parseHostEntry(record.ID)
	if !ok {
		return provider.Record{}, fmt.Errorf("%w: invalid record ID %q", provider.ErrUpdateRejected, record.ID)
	}
	recordType := provider.RecordTypeFor(oldAddr)
	newAddr, err := netip.ParseAddr(record.Value)
	if err != nil || provider.RecordTypeFor(newAddr) != recordType {
		return provider.Record{}, fmt.Errorf("%w: %q is not a valid %s value", provider.ErrUpdateRejected, record.Value, recordType)
	}
	newEntry := newAddr.String() + " " + host

	if _, err := c.doRequest(ctx, http.MethodPut, entryPath(newEntry)); err != nil {
		var ae *apiError
		switch {
		case errors.As(err, &ae) && isAlreadyPresent(ae):
		case errors.As(err, &ae) && ae.status == http.StatusBadRequest:
			return provider.Record{}, fmt.Errorf("%w: adding host entry: %w", provider.ErrUpdateRejected, err)
		default:
			return provider.Record{}, fmt.Errorf("adding host entry: %w", err)
		}
	}

	if _, err := c.doRequest(ctx, http.MethodDelete, entryPath(record.ID)); err != nil {
		var ae *apiError
		if !errors.As(err, &ae) || ae.status != http.StatusNotFound {
			return provider.Record{}, fmt.Errorf("removing old host entry: %w", err)
		}
		c.logger.Debug("old host entry already gone", slog.String("entry", record.ID))
	}

	c.logger.Info("updated Pi-hole host entry",
		slog.String("host", host),
		slog.String("old_value", oldAddr.String()),
		slog.String("new_value", newAddr.String()),
	)

	updated = record
	updated.Type = recordType
	updated.Value = newAddr.String()
	updated.ID = newEntry
	return updated, nil
}

// entryPath addresses one "IP HOSTNAME" element of dns.hosts.
func entryPath(entry string) string {
	return hostsPath + "/" + url.PathEscape(entry)
}

func isAlreadyPresent(ae *apiError) bool {
	return ae.status == http.StatusBadRequest && strings.Contains(strings.ToLower(ae.message), "already present")
}

// parseHostEntry accepts "IP HOSTNAME" with exactly one hostname.
func parseHostEntry(entry string) (netip.Addr, string, bool) {
	fields := strings.Fields(entry)
	if len(fields) != 2 {
		return netip.Addr{}, "", false
	}
	addr, err := netip.ParseAddr(fields[0])
	if err != nil || addr.Zone() != "" {
		return netip.Addr{}, "", false
	}
	return addr.Unmap(), strings.ToLower(strings.TrimSuffix(fields[1], ".")), true
}
