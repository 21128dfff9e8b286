package provider

import (
	"fmt"
	"strings"
)

// RecordLabel derives the record name for host inside zoneName.
//
//	RecordLabel("sub.example.com", "example.com") -> "sub"
//	RecordLabel("example.com", "example.com")     -> "@"
//	RecordLabel("other.com", "example.com")       -> ErrHostZoneMismatch
//
// Names are compared case-insensitively and a trailing root dot is ignored.
// The suffix must start at a label boundary, so "myexample.com" is not in "example.com".
func RecordLabel(host, zoneName string) (string, error) {
	h := normalizeName(host)
	z := normalizeName(zoneName)

	if h == "" || z == "" {
		return "", fmt.Errorf("%w: host %q, zone %q", ErrHostZoneMismatch, host, zoneName)
	}

	if h == z {
		return ApexLabel, nil
	}

	label, ok := strings.CutSuffix(h, "."+z)
	if !ok || label == "" {
		return "", fmt.Errorf("%w: host %q, zone %q", ErrHostZoneMismatch, host, zoneName)
	}

	return label, nil
}

// HostInZone reports whether host is zoneName or a name below it.
func HostInZone(host, zoneName string) bool {
	_, err := RecordLabel(host, zoneName)
	return err == nil
}

// FQDN joins a record label and a zone name into a fully-qualified name without trailing dot.
func FQDN(label, zoneName string) string {
	z := normalizeName(zoneName)
	if label == "" || label == ApexLabel {
		return z
	}
	return strings.ToLower(label) + "." + z
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
}
