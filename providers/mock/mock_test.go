package mock

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"

	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

func domain() provider.DomainConfig {
	return provider.DomainConfig{
		Provider: ProviderType,
		Host:     "example.com",
		Zone:     provider.Zone{ID: "testzoneid", Name: "testzone"},
	}
}

func TestProvider_Script(t *testing.T) {
	boom := errors.New("boom")
	p := New().Script(provider.Changed).ScriptError(boom)
	ctx := context.Background()
	ip := netip.MustParseAddr("192.0.2.0")

	outcome, err := p.UpdateIP(ctx, domain(), ip)
	if err != nil || outcome != provider.Changed {
		t.Fatalf("first call = (%v, %v), want (changed, nil)", outcome, err)
	}

	outcome, err = p.UpdateIP(ctx, domain(), ip)
	if !errors.Is(err, boom) || outcome != provider.Unchanged {
		t.Fatalf("second call = (%v, %v), want (unchanged, boom)", outcome, err)
	}
	var pe *provider.ProviderError
	if !errors.As(err, &pe) || pe.Provider != ProviderType {
		t.Errorf("expected ProviderError, got %T", err)
	}

	outcome, err = p.UpdateIP(ctx, domain(), ip)
	if err != nil || outcome != provider.Unchanged {
		t.Fatalf("exhausted script = (%v, %v), want default unchanged", outcome, err)
	}

	if p.CallCount() != 3 {
		t.Errorf("CallCount() = %d, want 3", p.CallCount())
	}
	calls := p.Calls()
	if calls[0].IP != ip || calls[0].Domain.Host != "example.com" {
		t.Errorf("unexpected recorded call: %+v", calls[0])
	}
}

func TestProvider_Default(t *testing.T) {
	p := New(WithDefault(provider.Changed))
	outcome, _ := p.UpdateIP(context.Background(), domain(), netip.MustParseAddr("::1"))
	if outcome != provider.Changed {
		t.Errorf("outcome = %v, want changed", outcome)
	}
}

func TestProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().UpdateIP(ctx, domain(), netip.MustParseAddr("192.0.2.0"))
	if !provider.IsTransport(err) {
		t.Errorf("error = %v, want transport error", err)
	}
}

func TestProvider_Ping(t *testing.T) {
	p := New()
	if err := p.Ping(context.Background(), domain()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	p.SetPingError(provider.ErrUnauthorized)
	if err := p.Ping(context.Background(), domain()); !provider.IsUnauthorized(err) {
		t.Errorf("Ping() error = %v, want unauthorized", err)
	}
	if p.PingCount() != 2 {
		t.Errorf("PingCount() = %d, want 2", p.PingCount())
	}

	p.Reset()
	if p.PingCount() != 0 || p.CallCount() != 0 {
		t.Error("Reset() did not clear counters")
	}
}

func TestProvider_Concurrent(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.UpdateIP(context.Background(), domain(), netip.MustParseAddr("192.0.2.0"))
		}()
	}
	wg.Wait()

	if p.CallCount() != 50 {
		t.Errorf("CallCount() = %d, want 50", p.CallCount())
	}
}

func TestFactory(t *testing.T) {
	p, err := Factory()(provider.FactoryConfig{Type: ProviderType, Settings: map[string]string{"default": "changed"}})
	if err != nil {
		t.Fatalf("Factory() error = %v", err)
	}
	if p.Type() != "mock" {
		t.Errorf("Type() = %q", p.Type())
	}
	outcome, _ := p.UpdateIP(context.Background(), domain(), netip.MustParseAddr("192.0.2.0"))
	if outcome != provider.Changed {
		t.Errorf("outcome = %v, want changed from default setting", outcome)
	}
}
