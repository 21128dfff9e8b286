package sshutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Sentinel errors for SSH operations.
var (
	// ErrAuthenticationFailed is returned when the server rejects our credentials.
	ErrAuthenticationFailed = errors.New("ssh authentication failed")

	// ErrConnectionFailed is returned when the server cannot be reached or the handshake breaks.
	ErrConnectionFailed = errors.New("ssh connection failed")

	// ErrHostKeyMismatch is returned when the server's key is not in the known_hosts file.
	ErrHostKeyMismatch = errors.New("ssh host key verification failed")
)

// Client dials SSH sessions to one server. It is safe for concurrent use.
type Client struct {
	config    *Config
	sshConfig *ssh.ClientConfig
	logger    *slog.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithLogger sets a custom logger for the SSH client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new SSH client with the given configuration.
// Keys and the known_hosts file are read here, so a bad path fails early.
func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{
		config: config,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	sshConfig, err := c.buildSSHConfig()
	if err != nil {
		return nil, err
	}
	c.sshConfig = sshConfig

	return c, nil
}

// Address returns the server address in host:port form.
func (c *Client) Address() string {
	return c.config.Address()
}

// Open dials the server and starts an SFTP channel on the new connection.
// The caller must Close the session.
func (c *Client) Open(ctx context.Context) (*Session, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	sftpClient, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: starting sftp subsystem: %w", ErrConnectionFailed, err)
	}

	c.logger.Debug("SSH session opened", slog.String("address", c.Address()))

	return &Session{conn: conn, sftp: sftpClient, logger: c.logger}, nil
}

func (c *Client) dial(ctx context.Context) (*ssh.Client, error) {
	timeout := c.config.GetTimeout()
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := c.Address()
	netConn, err := (&net.Dialer{Timeout: timeout}).DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %w", ErrConnectionFailed, addr, err)
	}

	// The handshake itself is not context aware; bound it with a deadline.
	if deadline, ok := dialCtx.Deadline(); ok {
		_ = netConn.SetDeadline(deadline)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, c.sshConfig)
	if err != nil {
		_ = netConn.Close()
		var keyErr *knownhosts.KeyError
		switch {
		case errors.As(err, &keyErr):
			return nil, fmt.Errorf("%w: %w", ErrHostKeyMismatch, err)
		case isAuthError(err):
			return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
		default:
			return nil, fmt.Errorf("%w: handshake with %s: %w", ErrConnectionFailed, addr, err)
		}
	}
	_ = netConn.SetDeadline(time.Time{})

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// buildSSHConfig creates the ssh.ClientConfig from our Config.
func (c *Client) buildSSHConfig() (*ssh.ClientConfig, error) {
	authMethods, err := c.buildAuthMethods()
	if err != nil {
		return nil, fmt.Errorf("building auth methods: %w", err)
	}

	hostKeyCallback, err := c.buildHostKeyCallback()
	if err != nil {
		return nil, fmt.Errorf("building host key callback: %w", err)
	}

	return &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.config.GetTimeout(),
	}, nil
}

// buildAuthMethods creates authentication methods from the config.
// Keys are offered before the password.
func (c *Client) buildAuthMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if c.config.KeyFile != "" {
		keyData, err := os.ReadFile(c.config.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file %s: %w", c.config.KeyFile, err)
		}

		signer, err := c.parsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parsing key from file: %w", err)
		}

		methods = append(methods, ssh.PublicKeys(signer))
	}

	if c.config.KeyData != "" {
		signer, err := c.parsePrivateKey([]byte(c.config.KeyData))
		if err != nil {
			return nil, fmt.Errorf("parsing key data: %w", err)
		}

		methods = append(methods, ssh.PublicKeys(signer))
	}

	if c.config.Password != "" {
		methods = append(methods, ssh.Password(c.config.Password))
	}

	if len(methods) == 0 {
		return nil, errors.New("no authentication methods configured")
	}

	return methods, nil
}

// parsePrivateKey parses a private key, handling encrypted keys if a passphrase is provided.
func (c *Client) parsePrivateKey(keyData []byte) (ssh.Signer, error) {
	if c.config.KeyPassphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(c.config.KeyPassphrase))
	}
	return ssh.ParsePrivateKey(keyData)
}

func (c *Client) buildHostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.config.KnownHostsFile != "" {
		return knownhosts.New(c.config.KnownHostsFile)
	}

	c.logger.Warn("host key verification disabled, set known_hosts to enable it",
		slog.String("host", c.config.Host),
	)
	return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // no known_hosts configured
}

// isAuthError checks if a handshake error is an authentication failure.
func isAuthError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "unable to authenticate") ||
		strings.Contains(errStr, "no supported methods")
}
