// Package metrics provides Prometheus metrics for dyndns.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "dyndns"

// Result label values for UpdatesTotal.
const (
	ResultChanged   = "changed"
	ResultUnchanged = "unchanged"
	ResultError     = "error"
)

var (
	// BuildInfo exposes the running version as labels on a constant 1.
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "build_info",
			Help:      "Build information about the running binary.",
		},
		[]string{"version", "go_version"},
	)

	// UpdatesTotal counts record updates per provider, IP version and result.
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "updates_total",
			Help:      "Total number of record update attempts.",
		},
		[]string{"provider", "ip_version", "result"},
	)

	// UpdateDuration tracks the time spent on one record update, including provider I/O.
	UpdateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "update_duration_seconds",
			Help:      "Duration of record updates in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		},
		[]string{"provider"},
	)

	// ProviderAPIRequestsTotal counts calls made to provider backends.
	ProviderAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "provider_api_requests_total",
			Help:      "Total number of provider API requests.",
		},
		[]string{"provider", "operation", "status"},
	)

	// ProviderAPIDuration tracks provider API latency.
	ProviderAPIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "provider_api_duration_seconds",
			Help:      "Duration of provider API requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	// ProviderHealthy is 1 when the last readiness ping of a provider succeeded.
	ProviderHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "provider_healthy",
			Help:      "Whether the provider answered the last readiness check (1) or not (0).",
		},
		[]string{"provider"},
	)

	// AuthFailuresTotal counts rejected update requests by reason.
	AuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "auth_failures_total",
			Help:      "Total number of rejected authentication attempts.",
		},
		[]string{"reason"},
	)

	// HTTPRequestsTotal counts /update responses by status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of update requests by response status.",
		},
		[]string{"status"},
	)
)

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// ObserveProviderAPI records one provider API call started at start.
func ObserveProviderAPI(provider, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ProviderAPIRequestsTotal.WithLabelValues(provider, operation, status).Inc()
	ProviderAPIDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}

// ObserveUpdate records the result of one record update.
func ObserveUpdate(provider, ipVersion, result string, d time.Duration) {
	UpdatesTotal.WithLabelValues(provider, ipVersion, result).Inc()
	UpdateDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// SetProviderHealthy records the readiness state of a provider.
func SetProviderHealthy(provider string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	ProviderHealthy.WithLabelValues(provider).Set(v)
}
