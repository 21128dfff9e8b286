// Package updater runs the per-version provider updates of one request
// concurrently, bounded by a process-wide limit and a per-request timeout.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"gitlab.bluewillows.net/root/dyndns/internal/metrics"
	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// Defaults for the dispatcher limits.
const (
	DefaultRequestTimeout       = 15 * time.Second
	DefaultMaxConcurrentUpdates = 16
)

// Request describes the addresses to apply to one domain.
// An invalid (zero) address means that version was not supplied.
type Request struct {
	Domain provider.DomainConfig
	IPv4   netip.Addr
	IPv6   netip.Addr
}

// Dispatcher resolves providers from the registry and runs updates.
type Dispatcher struct {
	providers *provider.Registry
	sem       *semaphore.Weighted
	timeout   time.Duration
	logger    *slog.Logger
}

// Option is a functional option for configuring the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRequestTimeout bounds each provider update. Non-positive values are ignored.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithMaxConcurrentUpdates limits provider updates in flight across all requests.
// Non-positive values are ignored.
func WithMaxConcurrentUpdates(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// New creates a Dispatcher backed by registry.
func New(registry *provider.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		providers: registry,
		sem:       semaphore.NewWeighted(DefaultMaxConcurrentUpdates),
		timeout:   DefaultRequestTimeout,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Dispatch updates every supplied IP version of req.Domain and returns
// the results IPv4 first. It never returns an error: failures are results.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Results {
	type job struct {
		version IPVersion
		ip      netip.Addr
	}

	var jobs []job
	if req.IPv4.IsValid() {
		jobs = append(jobs, job{IPv4, req.IPv4})
	}
	if req.IPv6.IsValid() {
		jobs = append(jobs, job{IPv6, req.IPv6})
	}

	results := make(Results, len(jobs))

	var g errgroup.Group
	for i, j := range jobs {
		g.Go(func() error {
			results[i] = d.update(ctx, req.Domain, j.version, j.ip)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) update(ctx context.Context, domain provider.DomainConfig, version IPVersion, ip netip.Addr) Result {
	start := time.Now()
	res := Result{
		Version:  version,
		Provider: domain.Provider,
		Host:     domain.Host,
		IP:       ip,
	}

	outcome, err := d.call(ctx, domain, ip)
	res.Duration = time.Since(start)

	switch {
	case err != nil:
		res.Status = StatusFailed
		res.Err = err
		d.logger.Error("DNS update failed",
			slog.String("provider", domain.Provider),
			slog.String("host", domain.Host),
			slog.String("ip_version", version.String()),
			slog.String("error", err.Error()),
		)
	case outcome == provider.Changed:
		res.Status = StatusChanged
	default:
		res.Status = StatusUnchanged
	}

	metrics.ObserveUpdate(domain.Provider, version.Label(), string(res.Status), res.Duration)

	return res
}

func (d *Dispatcher) call(ctx context.Context, domain provider.DomainConfig, ip netip.Addr) (provider.Outcome, error) {
	p, err := d.providers.Lookup(domain.Provider)
	if err != nil {
		return provider.Unchanged, err
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return provider.Unchanged, provider.WrapError(p.Type(), "update",
			provider.TransportError("waiting for an update slot: %v", err))
	}
	defer d.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	outcome, err := p.UpdateIP(ctx, domain, ip)
	if err != nil && !provider.IsTransport(err) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: update timed out after %s: %w", provider.ErrTransport, d.timeout, err)
	}
	return outcome, err
}
