// Package httputil provides the HTTP client shared by the API-based DNS providers.
package httputil

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default HTTP client configuration values.
const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is used when no custom user agent is specified.
	DefaultUserAgent = "dyndns/1.0"
)

// sensitiveParams are query parameters whose values never reach the logs.
var sensitiveParams = []string{"token", "password", "api_token"}

// ClientConfig contains configuration for creating an HTTP client.
type ClientConfig struct {
	// Timeout is the HTTP client timeout. Defaults to 30 seconds.
	Timeout time.Duration

	// TLSSkipVerify controls whether to skip TLS certificate verification.
	// Only for self-signed test servers.
	TLSSkipVerify bool

	// UserAgent is the User-Agent header to set on requests.
	// Defaults to DefaultUserAgent if not specified.
	UserAgent string

	// Logger enables debug logging for HTTP requests.
	// If nil, no debug logging is performed.
	Logger *slog.Logger
}

// userAgentTransport wraps an http.RoundTripper to add the User-Agent header
// and log requests at debug level with credentials redacted.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
	logger    *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	if t.logger == nil {
		return t.base.RoundTrip(req)
	}

	target := RedactURL(req.URL)
	start := time.Now()

	t.logger.Debug("HTTP request",
		slog.String("method", req.Method),
		slog.String("url", target),
	)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Debug("HTTP request failed",
			slog.String("method", req.Method),
			slog.String("url", target),
			slog.String("error", err.Error()),
		)
		return resp, err
	}

	t.logger.Debug("HTTP response",
		slog.String("method", req.Method),
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	return resp, nil
}

// RedactURL renders u with the values of credential query parameters replaced.
func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	if u.RawQuery == "" {
		return u.String()
	}

	q := u.Query()
	changed := false
	for key := range q {
		for _, s := range sensitiveParams {
			if strings.EqualFold(key, s) {
				q.Set(key, "REDACTED")
				changed = true
			}
		}
	}
	if !changed {
		return u.String()
	}

	redacted := *u
	redacted.RawQuery = q.Encode()
	return redacted.String()
}

// NewClient creates an HTTP client with the specified configuration.
// If cfg is nil, defaults are used (30s timeout, TLS verification enabled).
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	var baseTransport http.RoundTripper = http.DefaultTransport

	if cfg.TLSSkipVerify {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // explicitly requested per provider
		}
		baseTransport = tr
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &userAgentTransport{
			base:      baseTransport,
			userAgent: userAgent,
			logger:    cfg.Logger,
		},
	}
}

// DefaultClient returns a new HTTP client with default settings.
// Equivalent to NewClient(nil).
func DefaultClient() *http.Client {
	return NewClient(nil)
}

// maxBodySnippet bounds how much of an error response ends up in error messages.
const maxBodySnippet = 256

// BodySnippet returns body as a trimmed string of at most 256 bytes, for error messages.
func BodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodySnippet {
		return s[:maxBodySnippet] + "..."
	}
	return s
}
