package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetBuildInfo(t *testing.T) {
	BuildInfo.Reset()

	SetBuildInfo("v1.0.0", "go1.24")

	count := testutil.CollectAndCount(BuildInfo)
	if count != 1 {
		t.Errorf("expected 1 metric, got %d", count)
	}

	value := testutil.ToFloat64(BuildInfo.WithLabelValues("v1.0.0", "go1.24"))
	if value != 1 {
		t.Errorf("expected value 1, got %f", value)
	}
}

func TestObserveUpdate(t *testing.T) {
	UpdatesTotal.Reset()
	UpdateDuration.Reset()

	ObserveUpdate("hetzner", "ipv4", ResultChanged, 120*time.Millisecond)
	ObserveUpdate("hetzner", "ipv4", ResultUnchanged, 80*time.Millisecond)
	ObserveUpdate("hetzner", "ipv6", ResultError, time.Second)

	if v := testutil.ToFloat64(UpdatesTotal.WithLabelValues("hetzner", "ipv4", ResultChanged)); v != 1 {
		t.Errorf("expected 1 changed ipv4 update, got %f", v)
	}
	if v := testutil.ToFloat64(UpdatesTotal.WithLabelValues("hetzner", "ipv6", ResultError)); v != 1 {
		t.Errorf("expected 1 failed ipv6 update, got %f", v)
	}
	if n := testutil.CollectAndCount(UpdatesTotal); n != 3 {
		t.Errorf("expected 3 series, got %d", n)
	}
	if n := testutil.CollectAndCount(UpdateDuration); n != 1 {
		t.Errorf("expected 1 histogram series, got %d", n)
	}
}

func TestObserveProviderAPI(t *testing.T) {
	ProviderAPIRequestsTotal.Reset()
	ProviderAPIDuration.Reset()

	start := time.Now()
	ObserveProviderAPI("cloudflare", "list_records", start, nil)
	ObserveProviderAPI("cloudflare", "list_records", start, nil)
	ObserveProviderAPI("cloudflare", "update_record", start, errors.New("boom"))

	if v := testutil.ToFloat64(ProviderAPIRequestsTotal.WithLabelValues("cloudflare", "list_records", "success")); v != 2 {
		t.Errorf("expected 2 successful list calls, got %f", v)
	}
	if v := testutil.ToFloat64(ProviderAPIRequestsTotal.WithLabelValues("cloudflare", "update_record", "error")); v != 1 {
		t.Errorf("expected 1 failed update call, got %f", v)
	}
}

func TestSetProviderHealthy(t *testing.T) {
	ProviderHealthy.Reset()

	SetProviderHealthy("rfc2136", true)
	if v := testutil.ToFloat64(ProviderHealthy.WithLabelValues("rfc2136")); v != 1 {
		t.Errorf("expected healthy=1, got %f", v)
	}

	SetProviderHealthy("rfc2136", false)
	if v := testutil.ToFloat64(ProviderHealthy.WithLabelValues("rfc2136")); v != 0 {
		t.Errorf("expected healthy=0, got %f", v)
	}
}

func TestMetricNames(t *testing.T) {
	collectors := map[string]prometheus.Collector{
		"dyndns_build_info":                    BuildInfo,
		"dyndns_updates_total":                 UpdatesTotal,
		"dyndns_update_duration_seconds":       UpdateDuration,
		"dyndns_provider_api_requests_total":   ProviderAPIRequestsTotal,
		"dyndns_provider_api_duration_seconds": ProviderAPIDuration,
		"dyndns_provider_healthy":              ProviderHealthy,
		"dyndns_auth_failures_total":           AuthFailuresTotal,
		"dyndns_http_requests_total":           HTTPRequestsTotal,
	}

	AuthFailuresTotal.WithLabelValues("bad_password").Inc()
	HTTPRequestsTotal.WithLabelValues("200").Inc()

	for name, c := range collectors {
		ch := make(chan *prometheus.Desc, 1)
		c.Describe(ch)
		desc := (<-ch).String()
		if !strings.Contains(desc, `"`+name+`"`) {
			t.Errorf("collector descriptor %s does not carry name %s", desc, name)
		}
	}
}
