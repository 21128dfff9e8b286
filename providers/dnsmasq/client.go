package dnsmasq

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gitlab.bluewillows.net/root/dyndns/internal/metrics"
	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
	"gitlab.bluewillows.net/root/dyndns/pkg/sshutil"
)

// addressPrefix starts the only directive this package reads and writes.
const addressPrefix = "address=/"

// defaultFileMode applies when the records file mode cannot be read.
const defaultFileMode os.FileMode = 0o644

// conn is one open view of the host holding the records file.
type conn interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	Stat(path string) (os.FileInfo, error)
	Run(ctx context.Context, command string) error
	Close() error
}

// localConn operates on the local filesystem.
type localConn struct {
	logger *slog.Logger
}

func (localConn) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes through a temporary file and renames it over path.
func (localConn) WriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary file: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

func (localConn) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (c localConn) Run(ctx context.Context, command string) error {
	c.logger.Debug("executing command", slog.String("command", command))
	output, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	if err != nil {
		return fmt.Errorf("command failed: %w, output: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (localConn) Close() error {
	return nil
}

// Client reads and rewrites the dnsmasq records file.
// Read-modify-write cycles are serialized per Client.
type Client struct {
	path          string
	reloadCommand string
	remote        string
	open          func(ctx context.Context) (conn, error)
	logger        *slog.Logger
	mu            sync.Mutex
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the records file described by config.
func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		path:          config.ConfigFilePath(),
		reloadCommand: config.ReloadCommand,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if !config.IsRemote() {
		c.open = func(context.Context) (conn, error) {
			return localConn{logger: c.logger}, nil
		}
		return c, nil
	}

	sshClient, err := sshutil.NewClient(config.SSH, sshutil.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}
	c.remote = sshClient.Address()
	c.open = func(ctx context.Context) (conn, error) {
		session, err := sshClient.Open(ctx)
		if err != nil {
			return nil, err
		}
		return session, nil
	}

	return c, nil
}

// ConfigFilePath returns the path of the records file.
func (c *Client) ConfigFilePath() string {
	return c.path
}

// Ping checks that the records file exists and is a regular file.
func (c *Client) Ping(ctx context.Context) error {
	cn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = cn.Close() }()

	info, err := cn.Stat(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return provider.TransportError("config file does not exist: %s", c.path)
		}
		return provider.TransportError("checking config file: %v", err)
	}
	if !info.Mode().IsRegular() {
		return provider.TransportError("config path is not a regular file: %s", c.path)
	}

	return nil
}

// ListRecords returns the single-domain A/AAAA address lines that fall
// inside zone. A missing records file is an empty list.
func (c *Client) ListRecords(ctx context.Context, zone provider.Zone) (records []provider.Record, err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "list_records", start, err) }(time.Now())

	c.mu.Lock()
	defer c.mu.Unlock()

	cn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cn.Close() }()

	content, err := cn.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.logger.Debug("config file does not exist, returning empty list",
				slog.String("path", c.path))
			return nil, nil
		}
		return nil, provider.TransportError("reading config file: %v", err)
	}

	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	for scanner.Scan() {
		entry, ok := parseAddressLine(scanner.Text())
		if !ok {
			continue
		}
		label, err := provider.RecordLabel(entry.host, zone.Name)
		if err != nil {
			continue
		}
		value := entry.addr.String()
		records = append(records, provider.Record{
			Type:   provider.RecordTypeFor(entry.addr),
			ID:     provider.CompositeRecordID(entry.host, provider.RecordTypeFor(entry.addr), value),
			ZoneID: zone.ID,
			Name:   label,
			Value:  value,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, provider.TransportError("scanning config file: %v", err)
	}

	return records, nil
}

// UpdateRecord replaces the address line named by record.ID with one
// pointing at record.Value, then runs the reload command.
func (c *Client) UpdateRecord(ctx context.Context, record provider.Record) (updated provider.Record, err error) {
	defer func(start time.Time) { metrics.ObserveProviderAPI(ProviderType, "update_record", start, err) }(time.Now())

	host, recordType, oldValue, err := provider.ParseCompositeRecordID(record.ID)
	if err != nil {
		return provider.Record{}, fmt.Errorf("%w: %w", provider.ErrUpdateRejected, err)
	}
	oldAddr, err := netip.ParseAddr(oldValue)
	if err != nil {
		return provider.Record{}, fmt.Errorf("%w: record %s has no address value", provider.ErrUpdateRejected, record.ID)
	}
	newAddr, err := netip.ParseAddr(record.Value)
	if err != nil || provider.RecordTypeFor(newAddr) != recordType || recordType != provider.RecordTypeFor(oldAddr) {
		return provider.Record{}, fmt.Errorf("%w: %q is not a valid %s value", provider.ErrUpdateRejected, record.Value, recordType)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cn, err := c.connect(ctx)
	if err != nil {
		return provider.Record{}, err
	}
	defer func() { _ = cn.Close() }()

	content, err := cn.ReadFile(c.path)
	if err != nil {
		return provider.Record{}, provider.TransportError("reading config file: %v", err)
	}

	mode := defaultFileMode
	if info, err := cn.Stat(c.path); err == nil {
		mode = info.Mode().Perm()
	}

	lines := strings.SplitAfter(string(content), "\n")
	replaced := false
	for i, line := range lines {
		entry, ok := parseAddressLine(line)
		if !ok || !strings.EqualFold(entry.host, host) || entry.addr != oldAddr {
			continue
		}
		newline := ""
		if strings.HasSuffix(line, "\n") {
			newline = "\n"
		}
		lines[i] = formatAddressLine(entry.host, newAddr) + newline
		replaced = true
		break
	}
	if !replaced {
		return provider.Record{}, fmt.Errorf("%w: no address line for %s with value %s", provider.ErrUpdateRejected, host, oldValue)
	}

	if err := cn.WriteFile(c.path, []byte(strings.Join(lines, "")), mode); err != nil {
		return provider.Record{}, provider.TransportError("writing config file: %v", err)
	}

	c.logger.Debug("address line rewritten",
		slog.String("path", c.path),
		slog.String("host", host),
		slog.String("old_value", oldValue),
		slog.String("new_value", newAddr.String()),
	)

	if c.reloadCommand != "" {
		if err := cn.Run(ctx, c.reloadCommand); err != nil {
			return provider.Record{}, provider.TransportError("reloading dnsmasq: %v", err)
		}
	}

	updated = record
	updated.Value = newAddr.String()
	updated.ID = provider.CompositeRecordID(host, recordType, updated.Value)
	return updated, nil
}

// connect opens the transport and maps SSH failures onto provider errors.
func (c *Client) connect(ctx context.Context) (conn, error) {
	cn, err := c.open(ctx)
	if err == nil {
		return cn, nil
	}
	if errors.Is(err, sshutil.ErrAuthenticationFailed) {
		return nil, fmt.Errorf("%w: %w", provider.ErrUnauthorized, provider.TransportError("ssh %s: %v", c.remote, err))
	}
	return nil, provider.TransportError("ssh %s: %v", c.remote, err)
}

// addressEntry is one parsed address=/host/ip line.
type addressEntry struct {
	host string
	addr netip.Addr
}

// parseAddressLine accepts address=/host/ip with exactly one host and a
// literal IP. Wildcard, multi-domain and blocking forms are ignored.
func parseAddressLine(line string) (addressEntry, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, addressPrefix) {
		return addressEntry{}, false
	}

	parts := strings.Split(strings.TrimPrefix(line, addressPrefix), "/")
	if len(parts) != 2 || parts[0] == "" || strings.HasPrefix(parts[0], "#") {
		return addressEntry{}, false
	}

	addr, err := netip.ParseAddr(parts[1])
	if err != nil || addr.Zone() != "" {
		return addressEntry{}, false
	}

	return addressEntry{host: strings.ToLower(parts[0]), addr: addr.Unmap()}, true
}

func formatAddressLine(host string, addr netip.Addr) string {
	return addressPrefix + host + "/" + addr.String()
}
