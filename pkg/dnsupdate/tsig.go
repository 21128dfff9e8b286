package dnsupdate

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// tsigFudge is the permitted clock skew in seconds.
const tsigFudge = 300

// TSIG is a Transaction Signature key.
type TSIG struct {
	// Name is the fully qualified key name, e.g. "dyndns.".
	Name string

	// Secret is the base64-encoded shared secret.
	Secret string

	// Algorithm is the miekg/dns algorithm name, e.g. dns.HmacSHA256.
	Algorithm string
}

// NewTSIG validates and normalizes a key.
func NewTSIG(name, secret, algorithm string) (*TSIG, error) {
	if _, err := base64.StdEncoding.DecodeString(secret); err != nil {
		return nil, fmt.Errorf("tsig secret is not valid base64: %w", err)
	}

	alg := normalizeAlgorithm(algorithm)
	if !isValidAlgorithm(alg) {
		return nil, fmt.Errorf("unsupported tsig algorithm: %s", algorithm)
	}

	return &TSIG{
		Name:      dns.Fqdn(strings.ToLower(name)),
		Secret:    secret,
		Algorithm: alg,
	}, nil
}

// TSIGFromConfig returns nil when the config carries no key.
func TSIGFromConfig(config *Config) (*TSIG, error) {
	if !config.HasTSIG() {
		return nil, nil //nolint:nilnil // unsigned operation
	}
	return NewTSIG(config.TSIGKeyName, config.TSIGSecret, config.TSIGAlgorithm)
}

// secrets returns the key map used by dns.Client and dns.Transfer.
func (t *TSIG) secrets() map[string]string {
	if t == nil {
		return nil
	}
	return map[string]string{t.Name: t.Secret}
}

// ApplyToMessage adds a TSIG record to msg. Call it last.
func (t *TSIG) ApplyToMessage(msg *dns.Msg) {
	if t == nil {
		return
	}
	msg.SetTsig(t.Name, t.Algorithm, tsigFudge, 0)
}

func normalizeAlgorithm(alg string) string {
	switch strings.ToLower(strings.TrimSpace(alg)) {
	case "":
		return DefaultTSIGAlgorithm
	case "hmac-md5", "md5", dns.HmacMD5:
		return dns.HmacMD5
	case "hmac-sha256", "sha256", dns.HmacSHA256:
		return dns.HmacSHA256
	case "hmac-sha512", "sha512", dns.HmacSHA512:
		return dns.HmacSHA512
	default:
		return alg
	}
}

func isValidAlgorithm(alg string) bool {
	switch alg {
	case dns.HmacMD5, dns.HmacSHA256, dns.HmacSHA512:
		return true
	default:
		return false
	}
}
