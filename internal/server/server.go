// Package server provides the dynamic DNS update endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/miekg/dns"

	"gitlab.bluewillows.net/root/dyndns/internal/auth"
	"gitlab.bluewillows.net/root/dyndns/internal/metrics"
	"gitlab.bluewillows.net/root/dyndns/internal/updater"
	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// Response bodies for rejected requests.
const (
	msgMissingParam = "Missing required parameter: "
	msgInvalidHost  = "Invalid host"
	msgInvalidUser  = "Invalid user"
	msgInvalidDom   = "Invalid domain"
	msgInvalidIPv4  = "Invalid IPv4 address"
	msgInvalidIPv6  = "Invalid IPv6 address"
	msgNoIP         = "No IP address specified"
)

// Authenticator resolves credentials to the domain they may update.
type Authenticator interface {
	Authenticate(user, password, host string) (provider.DomainConfig, error)
}

// Dispatcher applies addresses to a domain.
type Dispatcher interface {
	Dispatch(ctx context.Context, req updater.Request) updater.Results
}

// Server serves GET /update.
type Server struct {
	addr       string
	engine     *gin.Engine
	server     *http.Server
	listener   net.Listener
	auth       Authenticator
	dispatcher Dispatcher
	logger     *slog.Logger
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an update server listening on addr.
func New(addr string, authenticator Authenticator, dispatcher Dispatcher, opts ...Option) *Server {
	s := &Server{
		addr:       addr,
		auth:       authenticator,
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.observe)
	s.engine.GET("/update", s.handleUpdate)

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// observe counts responses and logs them at debug without the query string.
func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	status := c.Writer.Status()
	metrics.HTTPRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	s.logger.Debug("request served",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	)
}

func (s *Server) handleUpdate(c *gin.Context) {
	params := make(map[string]string, 3)
	for _, name := range []string{"user", "password", "host"} {
		v, ok := c.GetQuery(name)
		if !ok {
			c.String(http.StatusUnprocessableEntity, msgMissingParam+name)
			return
		}
		params[name] = v
	}

	host := params["host"]
	if _, ok := dns.IsDomainName(host); !ok || host == "" {
		c.String(http.StatusBadRequest, msgInvalidHost)
		return
	}

	domain, err := s.auth.Authenticate(params["user"], params["password"], host)
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		c.String(http.StatusUnauthorized, msgInvalidUser)
		return
	case err != nil:
		c.String(http.StatusBadRequest, msgInvalidDom)
		return
	}

	req := updater.Request{Domain: domain}

	if v := c.Query("ip"); v != "" {
		addr, err := netip.ParseAddr(v)
		if err != nil || !addr.Is4() {
			c.String(http.StatusBadRequest, msgInvalidIPv4)
			return
		}
		req.IPv4 = addr
	}

	if v := c.Query("ip6"); v != "" {
		addr, err := netip.ParseAddr(v)
		if err != nil || !addr.Is6() || addr.Is4In6() || addr.Zone() != "" {
			c.String(http.StatusBadRequest, msgInvalidIPv6)
			return
		}
		req.IPv6 = addr
	}

	if !req.IPv4.IsValid() && !req.IPv6.IsValid() {
		c.String(http.StatusOK, msgNoIP)
		return
	}

	s.logger.Info("received update",
		slog.String("user", params["user"]),
		slog.String("host", domain.Host),
		slog.String("ipv4", addrOrEmpty(req.IPv4)),
		slog.String("ipv6", addrOrEmpty(req.IPv6)),
	)

	results := s.dispatcher.Dispatch(c.Request.Context(), req)

	status := http.StatusOK
	if results.Failed() {
		status = http.StatusInternalServerError
	}
	c.String(status, results.Body())
}

func addrOrEmpty(a netip.Addr) string {
	if !a.IsValid() {
		return "<empty>"
	}
	return a.String()
}

// Start binds the listen address and serves in a goroutine.
// A bind failure is returned to the caller.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("update server starting", slog.String("addr", ln.Addr().String()))
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("update server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the update server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
