package provider

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"
)

// stubProvider implements Provider for registry tests.
type stubProvider struct {
	typeName string
	settings map[string]string
}

func (s *stubProvider) Type() string { return s.typeName }
func (s *stubProvider) UpdateIP(context.Context, DomainConfig, netip.Addr) (Outcome, error) {
	return Unchanged, nil
}
func (s *stubProvider) Ping(context.Context, DomainConfig) error { return nil }

func stubFactory(cfg FactoryConfig) (Provider, error) {
	return &stubProvider{typeName: cfg.Type, settings: cfg.Settings}, nil
}

func TestRegistry_CreateInstance(t *testing.T) {
	r := NewRegistry(testLogger())

	var got FactoryConfig
	r.RegisterFactory("hetzner", func(cfg FactoryConfig) (Provider, error) {
		got = cfg
		return stubFactory(cfg)
	})

	err := r.CreateInstance(FactoryConfig{
		Type:     "Hetzner",
		Settings: map[string]string{"endpoint": "http://localhost"},
		HTTP:     HTTPConfig{Timeout: 5 * time.Second},
	})
	if err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}

	if got.Type != "hetzner" {
		t.Errorf("factory saw type %q, want hetzner", got.Type)
	}
	if got.Settings["endpoint"] != "http://localhost" {
		t.Errorf("factory saw settings %v", got.Settings)
	}
	if got.HTTP.Logger == nil {
		t.Error("factory should receive the registry logger when none is set")
	}

	p, ok := r.Get("HETZNER")
	if !ok {
		t.Fatal("Get() did not find hetzner")
	}
	if p.Type() != "hetzner" {
		t.Errorf("Type() = %q", p.Type())
	}
}

func TestRegistry_CreateInstance_UnknownType(t *testing.T) {
	r := NewRegistry(testLogger())

	err := r.CreateInstance(FactoryConfig{Type: "unknown"})
	if !errors.Is(err, ErrUnknownProviderType) {
		t.Errorf("error = %v, want ErrUnknownProviderType", err)
	}
}

func TestRegistry_CreateInstance_FactoryError(t *testing.T) {
	r := NewRegistry(testLogger())

	factoryErr := errors.New("factory initialization failed")
	r.RegisterFactory("failing", func(FactoryConfig) (Provider, error) {
		return nil, factoryErr
	})

	err := r.CreateInstance(FactoryConfig{Type: "failing"})
	if !errors.Is(err, factoryErr) {
		t.Errorf("error = %v, want wrapped factory error", err)
	}
	if _, ok := r.Get("failing"); ok {
		t.Error("failed instance should not be registered")
	}
}

func TestRegistry_RegisterFactory_Overwrite(t *testing.T) {
	r := NewRegistry(nil)

	firstCalled := false
	r.RegisterFactory("test", func(cfg FactoryConfig) (Provider, error) {
		firstCalled = true
		return stubFactory(cfg)
	})
	r.RegisterFactory("test", stubFactory)

	if err := r.CreateInstance(FactoryConfig{Type: "test"}); err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}
	if firstCalled {
		t.Error("first factory was called, but second should have overwritten it")
	}
}

func TestRegistry_TypesAndAll(t *testing.T) {
	r := NewRegistry(testLogger())
	r.RegisterFactory("rfc2136", stubFactory)
	r.RegisterFactory("cloudflare", stubFactory)
	r.RegisterFactory("mock", stubFactory)

	types := r.Types()
	want := []string{"cloudflare", "mock", "rfc2136"}
	if len(types) != len(want) {
		t.Fatalf("Types() = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("Types()[%d] = %q, want %q", i, types[i], want[i])
		}
	}

	if len(r.All()) != 0 {
		t.Error("All() should be empty before instances are created")
	}

	for _, typ := range []string{"mock", "cloudflare"} {
		if err := r.CreateInstance(FactoryConfig{Type: typ}); err != nil {
			t.Fatalf("CreateInstance(%s) error = %v", typ, err)
		}
	}

	all := r.All()
	if len(all) != 2 || all[0].Type() != "cloudflare" || all[1].Type() != "mock" {
		t.Errorf("All() returned unexpected providers: %v", all)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry(testLogger())
	r.RegisterFactory("mock", stubFactory)
	_ = r.CreateInstance(FactoryConfig{Type: "mock"})

	if _, err := r.Lookup("mock"); err != nil {
		t.Errorf("Lookup(mock) error = %v", err)
	}
	if _, err := r.Lookup("hetzner"); !errors.Is(err, ErrUnknownProviderType) {
		t.Errorf("Lookup(hetzner) error = %v, want ErrUnknownProviderType", err)
	}
}
