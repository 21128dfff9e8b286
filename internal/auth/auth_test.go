package auth

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/crypto/bcrypt"

	"gitlab.bluewillows.net/root/dyndns/internal/metrics"
	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hashedpassword"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}

	return New([]User{
		{
			Name:     "test",
			Password: "testpassword",
			Domains: []provider.DomainConfig{
				{Provider: "mock", Host: "example.com", Zone: provider.Zone{ID: "testzoneid", Name: "testzone"}},
				{Provider: "hetzner", APIToken: "tok", Host: "home.example.org", Zone: provider.Zone{ID: "z2", Name: "example.org"}},
			},
		},
		{
			Name:     "hashed",
			Password: string(hash),
			Domains:  []provider.DomainConfig{{Provider: "mock", Host: "h.example.net", Zone: provider.Zone{Name: "example.net"}}},
		},
	}, WithLogger(testLogger()))
}

func TestAuthenticate(t *testing.T) {
	a := testAuthenticator(t)

	tests := []struct {
		name     string
		user     string
		password string
		host     string
		wantHost string
		wantErr  error
	}{
		{"plain password", "test", "testpassword", "example.com", "example.com", nil},
		{"second domain", "test", "testpassword", "home.example.org", "home.example.org", nil},
		{"host case and dot", "test", "testpassword", "HOME.Example.org.", "home.example.org", nil},
		{"bcrypt password", "hashed", "hashedpassword", "h.example.net", "h.example.net", nil},
		{"wrong password", "test", "wrong", "example.com", "", ErrUnauthorized},
		{"wrong bcrypt password", "hashed", "testpassword", "h.example.net", "", ErrUnauthorized},
		{"unknown user", "nobody", "testpassword", "example.com", "", ErrUnauthorized},
		{"empty password", "test", "", "example.com", "", ErrUnauthorized},
		{"foreign domain", "test", "testpassword", "h.example.net", "", ErrDomainNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			domain, err := a.Authenticate(tt.user, tt.password, tt.host)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if domain.Host != tt.wantHost {
				t.Errorf("Host = %q, want %q", domain.Host, tt.wantHost)
			}
		})
	}
}

func TestAuthenticate_ReturnsDomainConfig(t *testing.T) {
	domain, err := testAuthenticator(t).Authenticate("test", "testpassword", "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if domain.Provider != "mock" || domain.Zone.ID != "testzoneid" || domain.Zone.Name != "testzone" {
		t.Errorf("domain = %+v", domain)
	}
}

func TestAuthenticate_Metrics(t *testing.T) {
	a := testAuthenticator(t)
	counter := metrics.AuthFailuresTotal.WithLabelValues(ReasonBadPassword)
	before := testutil.ToFloat64(counter)

	_, _ = a.Authenticate("test", "nope", "example.com")

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("auth_failures_total{reason=bad_password} delta = %v, want 1", got)
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !IsHashed(hash) {
		t.Errorf("hash %q not recognised as bcrypt", hash)
	}
	if !CheckPassword(hash, "s3cret") || CheckPassword(hash, "other") {
		t.Error("CheckPassword() disagrees with HashPassword()")
	}

	if _, err := HashPassword(""); err == nil {
		t.Error("expected error for empty password")
	}
}

func TestIsHashed(t *testing.T) {
	tests := map[string]bool{
		"$2a$10$abcdefghijklmnopqrstuv": true,
		"$2b$10$abcdefghijklmnopqrstuv": true,
		"$2y$10$abcdefghijklmnopqrstuv": true,
		"plain":                         false,
		"$1$md5crypt":                   false,
	}
	for in, want := range tests {
		if got := IsHashed(in); got != want {
			t.Errorf("IsHashed(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_UnknownUserHashCost(t *testing.T) {
	a := testAuthenticator(t)
	if a.dummyHash == nil {
		t.Fatal("expected a comparison hash when bcrypt passwords are configured")
	}
	if cost, err := bcrypt.Cost(a.dummyHash); err != nil || cost != bcrypt.MinCost {
		t.Errorf("comparison hash cost = %d, %v; want %d", cost, err, bcrypt.MinCost)
	}

	if _, err := a.Authenticate("nobody", "hashedpassword", "h.example.net"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("unknown user error = %v, want ErrUnauthorized", err)
	}

	plain := New([]User{{Name: "test", Password: "testpassword"}}, WithLogger(testLogger()))
	if plain.dummyHash != nil {
		t.Error("plain-text passwords need no comparison hash")
	}
}
