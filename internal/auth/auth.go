// Package auth resolves update credentials to the domain they may change.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"gitlab.bluewillows.net/root/dyndns/internal/metrics"
	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// Sentinel errors for authentication.
var (
	// ErrUnauthorized covers both an unknown user and a wrong password.
	ErrUnauthorized = errors.New("invalid user")

	// ErrDomainNotFound is returned when the user does not own the host.
	ErrDomainNotFound = errors.New("invalid domain")
)

// Reason label values for metrics.AuthFailuresTotal.
const (
	ReasonUnknownUser   = "unknown_user"
	ReasonBadPassword   = "bad_password"
	ReasonUnknownDomain = "unknown_domain"
)

// User is an account that may update the hosts of its domains.
type User struct {
	Name string

	// Password is either a bcrypt hash or a plain-text password.
	Password string

	Domains []provider.DomainConfig
}

// Authenticator checks credentials against a fixed set of users.
// It is read-only after construction and safe for concurrent use.
type Authenticator struct {
	users  map[string]User
	logger *slog.Logger

	// dummyHash is compared for unknown users so they take as long as a
	// known user with a wrong password.
	dummyHash []byte
}

// Option is a functional option for configuring the Authenticator.
type Option func(*Authenticator)

// WithLogger sets a custom logger for the authenticator.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Authenticator for users. Later duplicates of a name replace earlier ones.
func New(users []User, opts ...Option) *Authenticator {
	a := &Authenticator{
		users:  make(map[string]User, len(users)),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	for _, u := range users {
		a.users[u.Name] = u
	}
	a.dummyHash = dummyHashFor(users)

	return a
}

// dummyHashFor returns a hash at the cost of the first bcrypt password, or
// nil when every password is plain text.
func dummyHashFor(users []User) []byte {
	for _, u := range users {
		if !IsHashed(u.Password) {
			continue
		}
		cost, err := bcrypt.Cost([]byte(u.Password))
		if err != nil {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte("unknown user"), cost)
		if err != nil {
			return nil
		}
		return hash
	}
	return nil
}

// Authenticate verifies user and password and returns the domain for host.
func (a *Authenticator) Authenticate(user, password, host string) (provider.DomainConfig, error) {
	u, ok := a.users[user]
	if !ok {
		if a.dummyHash != nil {
			_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
		}
		a.fail(ReasonUnknownUser, user)
		return provider.DomainConfig{}, ErrUnauthorized
	}

	if !CheckPassword(u.Password, password) {
		a.fail(ReasonBadPassword, user)
		return provider.DomainConfig{}, ErrUnauthorized
	}

	want := normalizeHost(host)
	for _, d := range u.Domains {
		if normalizeHost(d.Host) == want {
			return d, nil
		}
	}

	a.fail(ReasonUnknownDomain, user)
	return provider.DomainConfig{}, fmt.Errorf("%w: %s", ErrDomainNotFound, host)
}

func (a *Authenticator) fail(reason, user string) {
	metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	a.logger.Warn("authentication failed",
		slog.String("user", user),
		slog.String("reason", reason),
	)
}

// IsHashed reports whether stored looks like a bcrypt hash.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

// CheckPassword compares given against a bcrypt hash or plain-text password.
func CheckPassword(stored, given string) bool {
	if IsHashed(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

// HashPassword returns a bcrypt hash of plain at the default cost.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func normalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}
