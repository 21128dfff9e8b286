package dnsupdate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Sentinel errors for RFC 2136 operations.
var (
	// ErrUpdateFailed is returned when the server answers an UPDATE with a failure rcode.
	ErrUpdateFailed = errors.New("dns update failed")

	// ErrAuthenticationFailed is returned when the server rejects the TSIG signature.
	ErrAuthenticationFailed = errors.New("tsig authentication failed")

	// ErrConnectionFailed is returned when the server cannot be reached or answers garbage.
	ErrConnectionFailed = errors.New("connection to dns server failed")

	// ErrZoneMismatch is returned when a record name is outside the configured zone.
	ErrZoneMismatch = errors.New("record name does not match configured zone")

	// ErrAXFRFailed is returned when a zone transfer is refused or breaks off.
	ErrAXFRFailed = errors.New("zone transfer (AXFR) failed")
)

// Client handles RFC 2136 updates and AXFR listing for one zone.
// It holds no connection state and is safe for concurrent use.
type Client struct {
	config    *Config
	zone      string
	tsig      *TSIG
	logger    *slog.Logger
	dnsClient *dns.Client
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithLogger sets a custom logger for the DNS update client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new RFC 2136 client with the given configuration.
func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tsig, err := TSIGFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("invalid TSIG configuration: %w", err)
	}

	c := &Client{
		config: config,
		zone:   dns.Fqdn(strings.ToLower(config.Zone)),
		tsig:   tsig,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.dnsClient = &dns.Client{
		Net:        "udp",
		Timeout:    config.GetTimeout(),
		TsigSecret: tsig.secrets(),
	}
	if config.UseTCP {
		c.dnsClient.Net = "tcp"
	}

	return c, nil
}

// Zone returns the fully qualified zone name.
func (c *Client) Zone() string {
	return c.zone
}

// Server returns the server address with port.
func (c *Client) Server() string {
	return c.config.ServerAddr()
}

// Ping verifies connectivity to the DNS server by querying the zone's SOA record.
func (c *Client) Ping(ctx context.Context) error {
	msg := new(dns.Msg)
	msg.SetQuestion(c.zone, dns.TypeSOA)
	msg.RecursionDesired = false
	c.tsig.ApplyToMessage(msg)

	resp, rtt, err := c.exchange(ctx, msg)
	if err != nil {
		return err
	}

	if resp.Rcode != dns.RcodeSuccess {
		if resp.Rcode == dns.RcodeNotAuth && c.tsig != nil {
			return fmt.Errorf("%w: server returned %s", ErrAuthenticationFailed, dns.RcodeToString[resp.Rcode])
		}
		return fmt.Errorf("%w: server returned %s", ErrConnectionFailed, dns.RcodeToString[resp.Rcode])
	}

	c.logger.Debug("DNS server ping successful",
		slog.String("server", c.Server()),
		slog.String("zone", c.zone),
		slog.Duration("rtt", rtt),
	)

	return nil
}

// ListByAXFR transfers the zone and returns every supported record in it.
// SOA and NS records are skipped. The server must allow transfers to this client.
func (c *Client) ListByAXFR(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	timeout := c.config.GetTimeout()
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	transfer := &dns.Transfer{
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		TsigSecret:   c.tsig.secrets(),
	}

	msg := new(dns.Msg)
	msg.SetAxfr(c.zone)
	c.tsig.ApplyToMessage(msg)

	env, err := transfer.In(msg, c.Server())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAXFRFailed, err)
	}

	var (
		records []Record
		xfrErr  error
	)
	for e := range env {
		// The channel must be drained so the transfer goroutine exits.
		if e.Error != nil {
			if xfrErr == nil {
				xfrErr = e.Error
			}
			continue
		}

		for _, rr := range e.RR {
			header := rr.Header()
			if header.Rrtype == dns.TypeSOA || header.Rrtype == dns.TypeNS {
				continue
			}

			record, err := RecordFromRR(rr)
			if err != nil {
				c.logger.Debug("skipping unsupported record type",
					slog.String("type", dns.TypeToString[header.Rrtype]),
					slog.String("name", header.Name),
				)
				continue
			}
			records = append(records, record)
		}
	}

	if xfrErr != nil {
		err := fmt.Errorf("%w: %w", ErrAXFRFailed, xfrErr)
		// A transfer failure carries only the rcode; a signed SOA query
		// tells a rejected key apart from a transfer policy refusal.
		if c.tsig != nil {
			if pingErr := c.Ping(ctx); errors.Is(pingErr, ErrAuthenticationFailed) {
				return nil, fmt.Errorf("%w: %w", err, ErrAuthenticationFailed)
			}
		}
		return nil, err
	}

	c.logger.Debug("AXFR zone transfer complete",
		slog.String("zone", c.zone),
		slog.Int("records", len(records)),
	)

	return records, nil
}

// Replace removes oldRecord and inserts newRecord in one UPDATE message.
func (c *Client) Replace(ctx context.Context, oldRecord, newRecord Record) error {
	if err := c.validateRecord(oldRecord); err != nil {
		return fmt.Errorf("invalid old record: %w", err)
	}
	if err := c.validateRecord(newRecord); err != nil {
		return fmt.Errorf("invalid new record: %w", err)
	}

	oldRR, err := oldRecord.ToRR()
	if err != nil {
		return fmt.Errorf("%w: invalid old record: %w", ErrUpdateFailed, err)
	}

	newRR, err := newRecord.ToRR()
	if err != nil {
		return fmt.Errorf("%w: invalid new record: %w", ErrUpdateFailed, err)
	}

	msg := new(dns.Msg)
	msg.SetUpdate(c.zone)
	msg.Remove([]dns.RR{oldRR})
	msg.Insert([]dns.RR{newRR})
	c.tsig.ApplyToMessage(msg)

	c.logger.Debug("sending DNS update",
		slog.String("name", newRecord.Name),
		slog.String("type", newRecord.TypeString()),
		slog.String("old_rdata", oldRecord.RData),
		slog.String("new_rdata", newRecord.RData),
	)

	resp, _, err := c.exchange(ctx, msg)
	if err != nil {
		return err
	}

	return c.checkResponse(resp)
}

// exchange sends msg and returns the response. Failures wrap ErrConnectionFailed.
func (c *Client) exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, time.Duration, error) {
	resp, rtt, err := c.dnsClient.ExchangeContext(ctx, msg, c.Server())
	if err != nil {
		if errors.Is(err, dns.ErrSig) || errors.Is(err, dns.ErrSecret) {
			return nil, 0, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
		}
		return nil, 0, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if resp == nil {
		return nil, 0, fmt.Errorf("%w: no response from server", ErrConnectionFailed)
	}
	return resp, rtt, nil
}

// checkResponse maps an UPDATE response code to an error.
func (c *Client) checkResponse(resp *dns.Msg) error {
	switch resp.Rcode {
	case dns.RcodeSuccess:
		return nil

	case dns.RcodeNotAuth:
		if c.tsig != nil {
			return fmt.Errorf("%w: %w: %s", ErrUpdateFailed, ErrAuthenticationFailed, dns.RcodeToString[resp.Rcode])
		}
		return fmt.Errorf("%w: server not authoritative for zone %s", ErrUpdateFailed, c.zone)

	case dns.RcodeRefused:
		return fmt.Errorf("%w: update refused (check server policy or TSIG configuration)", ErrUpdateFailed)

	case dns.RcodeNotZone:
		return fmt.Errorf("%w: %w", ErrUpdateFailed, ErrZoneMismatch)

	default:
		return fmt.Errorf("%w: %s", ErrUpdateFailed, dns.RcodeToString[resp.Rcode])
	}
}

func (c *Client) validateRecord(record Record) error {
	if record.Name == "" {
		return errors.New("record name is required")
	}
	if !dns.IsSubDomain(c.zone, dns.Fqdn(record.Name)) {
		return fmt.Errorf("%w: %s not in zone %s", ErrZoneMismatch, record.Name, c.zone)
	}
	return nil
}
